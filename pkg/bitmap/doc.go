// Package bitmap implements a compressed, roaring-style bitmap of
// document ids. It backs every bitmap-indexed structure in pkg/store:
// the per-(account,collection) document-id set, per-(account,
// collection,field,tag) tag bitmaps, and full-text posting lists.
//
// A Bitmap partitions its uint32 domain into 65536-wide chunks keyed by
// the value's high 16 bits. Each chunk is either an ArrayContainer
// (sorted slice, cheap for sparse chunks) or a BitmapContainer (a dense
// 65536-bit word array), promoting from array to dense once a chunk's
// cardinality passes ContainerConversionThreshold — the same two-
// container split and threshold used by the reference roaring bitmap
// design this package is adapted from.
package bitmap
