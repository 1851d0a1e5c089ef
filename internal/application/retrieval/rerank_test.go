package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rogan-afk/NutriNephra/internal/domain/entity"
)

func textCand(id, payload string, sim float64) Candidate {
	return Candidate{
		ContentID:  id,
		Modality:   entity.ModalityText,
		Similarity: sim,
		Unit:       &entity.ContentUnit{ID: id, Modality: entity.ModalityText, Payload: payload},
	}
}

func TestRerankEmptyInput(t *testing.T) {
	r := NewLexicalReranker()

	out := r.Rerank(context.Background(), "sodium limits", nil, 5)
	require.NotNil(t, out)
	assert.Empty(t, out)
}

func TestRerankIsPermutation(t *testing.T) {
	r := NewLexicalReranker()
	in := []Candidate{
		textCand("a", "sodium restriction guidance", 0.5),
		textCand("b", "potassium in fruit", 0.4),
		textCand("c", "fluid intake rules", 0.3),
	}

	out := r.Rerank(context.Background(), "sodium restriction", in, 10)
	require.Len(t, out, 3)

	seen := map[string]bool{}
	for _, rc := range out {
		assert.False(t, seen[rc.ContentID], "duplicate id %s", rc.ContentID)
		seen[rc.ContentID] = true
	}
	assert.True(t, seen["a"] && seen["b"] && seen["c"])
}

func TestRerankPrefersLexicalOverlap(t *testing.T) {
	r := NewLexicalReranker()
	in := []Candidate{
		textCand("other", "vitamin d supplementation in winter", 0.9),
		textCand("match", "daily sodium restriction below two grams", 0.1),
	}

	out := r.Rerank(context.Background(), "sodium restriction limits", in, 10)
	require.Len(t, out, 2)
	assert.Equal(t, "match", out[0].ContentID)
}

func TestRerankStableOnTies(t *testing.T) {
	r := NewLexicalReranker()
	in := []Candidate{
		textCand("first", "same payload text", 0.5),
		textCand("second", "same payload text", 0.5),
	}

	out := r.Rerank(context.Background(), "unrelated query terms", in, 10)
	require.Len(t, out, 2)
	assert.Equal(t, "first", out[0].ContentID)
	assert.Equal(t, "second", out[1].ContentID)
}

func TestRerankTruncatesToTopK(t *testing.T) {
	r := NewLexicalReranker()
	in := []Candidate{
		textCand("a", "sodium one", 0.9),
		textCand("b", "sodium two", 0.8),
		textCand("c", "sodium three", 0.7),
	}

	out := r.Rerank(context.Background(), "sodium", in, 2)
	assert.Len(t, out, 2)
}

func TestRerankImageFallsBackToSimilarity(t *testing.T) {
	r := NewLexicalReranker()
	img := Candidate{
		ContentID:  "img",
		Modality:   entity.ModalityImage,
		Similarity: 0.95,
		Unit:       &entity.ContentUnit{ID: "img", Modality: entity.ModalityImage, Payload: "aGVsbG8="},
	}
	in := []Candidate{
		textCand("txt", "nothing relevant here", 0.1),
		img,
	}

	out := r.Rerank(context.Background(), "unmatched terms", in, 10)
	require.Len(t, out, 2)
	assert.Equal(t, "img", out[0].ContentID)
}
