package bitmap

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddContainsRemove(t *testing.T) {
	b := New()
	assert.True(t, b.Add(5))
	assert.False(t, b.Add(5))
	assert.True(t, b.Contains(5))
	assert.True(t, b.Remove(5))
	assert.False(t, b.Contains(5))
	assert.False(t, b.Remove(5))
}

func TestToSliceAscending(t *testing.T) {
	b := Of(70000, 3, 65536, 2, 100)
	assert.Equal(t, []uint32{2, 3, 100, 65536, 70000}, b.ToSlice())
}

func TestUnionIntersectionDifference(t *testing.T) {
	a := Of(1, 2, 3, 70000)
	b := Of(2, 3, 4, 70001)

	assert.Equal(t, []uint32{1, 2, 3, 4, 70000, 70001}, a.Union(b).ToSlice())
	assert.Equal(t, []uint32{2, 3}, a.Intersection(b).ToSlice())
	assert.Equal(t, []uint32{1, 70000}, a.Difference(b).ToSlice())
}

func TestComplement(t *testing.T) {
	universe := Of(1, 2, 3, 4, 5)
	tagged := Of(2, 4)
	assert.Equal(t, []uint32{1, 3, 5}, tagged.Complement(universe).ToSlice())
}

func TestDenseContainerPromotion(t *testing.T) {
	b := New()
	for i := uint32(0); i < ContainerConversionThreshold+100; i++ {
		b.Add(i)
	}
	assert.Equal(t, ContainerConversionThreshold+100, b.Cardinality())
	assert.True(t, b.Contains(0))
	assert.True(t, b.Contains(ContainerConversionThreshold+50))
	assert.False(t, b.Contains(ContainerConversionThreshold+100))
}

func TestMergeOpsAreAssociativeWithinKey(t *testing.T) {
	a := New()
	a.Apply(MergeOp{Set: true, Value: 1}, MergeOp{Set: true, Value: 2}, MergeOp{Set: false, Value: 1})

	b := New()
	b.Apply(MergeOp{Set: true, Value: 2}, MergeOp{Set: true, Value: 1}, MergeOp{Set: false, Value: 1})

	assert.Equal(t, a.ToSlice(), b.ToSlice())
}

func TestSerializeRoundTrip(t *testing.T) {
	b := Of(1, 2, 70000)
	for i := uint32(1000); i < 1000+ContainerConversionThreshold+10; i++ {
		b.Add(i)
	}
	var buf bytes.Buffer
	require.NoError(t, b.Serialize(&buf))

	got, err := Deserialize(&buf)
	require.NoError(t, err)
	assert.Equal(t, b.ToSlice(), got.ToSlice())
	assert.Equal(t, b.Cardinality(), got.Cardinality())
}
