package fulltext

import (
	"sort"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
	"github.com/coremail/engine/pkg/bitmap"
	"github.com/coremail/engine/pkg/ids"
	"github.com/coremail/engine/pkg/store"
)

// minTokenLength drops single-character fragments, which match nearly
// everything and bloat posting lists without improving recall.
const minTokenLength = 2

// Tokenize splits text into the distinct, case-folded terms the posting
// index stores: maximal runs of letters and digits, lowercased, with
// duplicates removed. The result is sorted so index writes derived from
// it are deterministic.
func Tokenize(text string) []string {
	seen := make(map[string]struct{})
	var tokens []string
	var current strings.Builder
	flush := func() {
		if current.Len() >= minTokenLength {
			token := strings.ToLower(current.String())
			if _, dup := seen[token]; !dup {
				seen[token] = struct{}{}
				tokens = append(tokens, token)
			}
		}
		current.Reset()
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			current.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	sort.Strings(tokens)
	return tokens
}

// TermID maps a token to its 64-bit posting-list key.
func TermID(token string) ids.TermId {
	return xxhash.Sum64String(token)
}

// Index stages set-bit merges adding doc to the posting list of every
// term in text.
func Index(b *store.WriteBatch, account ids.AccountId, collection ids.Collection, field uint8, doc ids.DocumentId, text string) {
	for _, token := range Tokenize(text) {
		key := store.PostingKey(account, collection, field, TermID(token))
		b.MergeBitmap(store.BucketBitmaps, key, bitmap.MergeOp{Set: true, Value: uint32(doc)})
	}
}

// Unindex stages clear-bit merges removing doc from the posting list of
// every term in text. Callers pass the text that was indexed, so the
// same tokenization removes exactly the bits Index set.
func Unindex(b *store.WriteBatch, account ids.AccountId, collection ids.Collection, field uint8, doc ids.DocumentId, text string) {
	for _, token := range Tokenize(text) {
		key := store.PostingKey(account, collection, field, TermID(token))
		b.MergeBitmap(store.BucketBitmaps, key, bitmap.MergeOp{Set: false, Value: uint32(doc)})
	}
}

// Search resolves a free-text query against one field's posting lists:
// the result is the set of documents containing every term of the
// query (AND semantics). An empty query matches nothing.
func Search(s *store.Store, account ids.AccountId, collection ids.Collection, field uint8, query string) (*bitmap.Bitmap, error) {
	tokens := Tokenize(query)
	if len(tokens) == 0 {
		return bitmap.New(), nil
	}
	var result *bitmap.Bitmap
	for _, token := range tokens {
		bm, err := s.GetBitmap(store.BucketBitmaps, store.PostingKey(account, collection, field, TermID(token)))
		if err != nil {
			return nil, err
		}
		if result == nil {
			result = bm
		} else {
			result = result.Intersection(bm)
		}
		if result.IsEmpty() {
			return result, nil
		}
	}
	return result, nil
}
