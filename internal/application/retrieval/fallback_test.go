package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rogan-afk/NutriNephra/internal/domain/entity"
)

type fakeLister struct {
	units []*entity.ContentUnit
}

func (f *fakeLister) All() []*entity.ContentUnit { return f.units }

func TestKeywordFallbackRanksByTermHits(t *testing.T) {
	lister := &fakeLister{units: []*entity.ContentUnit{
		{ID: "u1", Modality: entity.ModalityText, Payload: "sodium restriction lowers blood pressure"},
		{ID: "u2", Modality: entity.ModalityText, Payload: "vitamin d in winter"},
		{ID: "u3", Modality: entity.ModalityTable, Payload: "sodium content per restriction tier"},
	}}
	f := NewKeywordFallback(lister, 4)

	out := f.Search(context.Background(), "sodium restriction")
	require.Len(t, out, 2)
	// u1 与 u3 均命中两词，同分按 id 升序
	assert.Equal(t, "u1", out[0].ContentID)
	assert.Equal(t, "u3", out[1].ContentID)
	assert.Equal(t, 1.0, out[0].Similarity)
}

func TestKeywordFallbackSkipsImages(t *testing.T) {
	lister := &fakeLister{units: []*entity.ContentUnit{
		{ID: "img", Modality: entity.ModalityImage, Payload: "c29kaXVt"},
		{ID: "txt", Modality: entity.ModalityText, Payload: "sodium guidance"},
	}}
	f := NewKeywordFallback(lister, 4)

	out := f.Search(context.Background(), "sodium")
	require.Len(t, out, 1)
	assert.Equal(t, "txt", out[0].ContentID)
}

func TestKeywordFallbackTruncatesToK(t *testing.T) {
	lister := &fakeLister{units: []*entity.ContentUnit{
		{ID: "a", Modality: entity.ModalityText, Payload: "sodium one"},
		{ID: "b", Modality: entity.ModalityText, Payload: "sodium two"},
		{ID: "c", Modality: entity.ModalityText, Payload: "sodium three"},
	}}
	f := NewKeywordFallback(lister, 2)

	out := f.Search(context.Background(), "sodium")
	assert.Len(t, out, 2)
}

func TestKeywordFallbackNoMatches(t *testing.T) {
	lister := &fakeLister{units: []*entity.ContentUnit{
		{ID: "a", Modality: entity.ModalityText, Payload: "vitamin d in winter"},
	}}
	f := NewKeywordFallback(lister, 4)

	assert.Empty(t, f.Search(context.Background(), "sodium"))
	assert.Empty(t, f.Search(context.Background(), "of"))
}
