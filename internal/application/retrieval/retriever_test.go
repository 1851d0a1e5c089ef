package retrieval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rogan-afk/NutriNephra/internal/domain/entity"
)

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{0.1, 0.2, 0.3}
	}
	return out, nil
}

type fakeIndex struct {
	hits     map[entity.Modality][]*IndexHit
	errs     map[entity.Modality]error
	inserted []*IndexRecord
	delay    time.Duration
}

func (f *fakeIndex) EnsureCollection(context.Context) error { return nil }

func (f *fakeIndex) Search(ctx context.Context, _ []float32, _ int, m entity.Modality) ([]*IndexHit, error) {
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if err := f.errs[m]; err != nil {
		return nil, err
	}
	return f.hits[m], nil
}

func (f *fakeIndex) Insert(_ context.Context, records []*IndexRecord) error {
	f.inserted = append(f.inserted, records...)
	return nil
}

func (f *fakeIndex) Count(context.Context) (int64, error) { return int64(len(f.inserted)), nil }

type fakeStore struct {
	units map[string]*entity.ContentUnit
}

func newFakeStore(ids ...string) *fakeStore {
	s := &fakeStore{units: map[string]*entity.ContentUnit{}}
	for _, id := range ids {
		s.units[id] = &entity.ContentUnit{ID: id, Modality: entity.ModalityText, Payload: "payload " + id}
	}
	return s
}

func (s *fakeStore) GetByID(_ context.Context, id string) (*entity.ContentUnit, error) {
	u, ok := s.units[id]
	if !ok {
		return nil, ErrUnitNotFound
	}
	return u, nil
}

func (s *fakeStore) GetMany(_ context.Context, ids []string) (map[string]*entity.ContentUnit, error) {
	out := map[string]*entity.ContentUnit{}
	for _, id := range ids {
		if u, ok := s.units[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (s *fakeStore) Len() int    { return len(s.units) }
func (s *fakeStore) Ready() bool { return len(s.units) > 0 }

func fastRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 2, Initial: time.Millisecond, Max: 2 * time.Millisecond, Multiplier: 2.0}
}

func TestRetrieveDedupKeepsHighestScore(t *testing.T) {
	index := &fakeIndex{hits: map[entity.Modality][]*IndexHit{
		entity.ModalityText:  {{ContentID: "a", Modality: entity.ModalityText, Similarity: 0.4}},
		entity.ModalityTable: {{ContentID: "a", Modality: entity.ModalityText, Similarity: 0.9}},
	}}
	r := NewRetriever(&fakeEmbedder{}, index, newFakeStore("a"), nil, fastRetry())

	res, err := r.Retrieve(context.Background(), "potassium limits", 5)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "a", res.Candidates[0].ContentID)
	assert.Equal(t, 0.9, res.Candidates[0].Similarity)
}

func TestRetrieveDropsDanglingReferences(t *testing.T) {
	index := &fakeIndex{hits: map[entity.Modality][]*IndexHit{
		entity.ModalityText: {
			{ContentID: "a", Modality: entity.ModalityText, Similarity: 0.8},
			{ContentID: "ghost", Modality: entity.ModalityText, Similarity: 0.7},
		},
	}}
	r := NewRetriever(&fakeEmbedder{}, index, newFakeStore("a"), nil, fastRetry())

	res, err := r.Retrieve(context.Background(), "sodium", 5)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "a", res.Candidates[0].ContentID)
	assert.Equal(t, 1, res.Dropped)
	assert.Equal(t, 2, res.Hits)
}

func TestRetrieveSortsBySimilarity(t *testing.T) {
	index := &fakeIndex{hits: map[entity.Modality][]*IndexHit{
		entity.ModalityText: {
			{ContentID: "low", Modality: entity.ModalityText, Similarity: 0.2},
			{ContentID: "high", Modality: entity.ModalityText, Similarity: 0.9},
			{ContentID: "mid", Modality: entity.ModalityText, Similarity: 0.5},
		},
	}}
	r := NewRetriever(&fakeEmbedder{}, index, newFakeStore("low", "high", "mid"), nil, fastRetry())

	res, err := r.Retrieve(context.Background(), "protein", 5)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 3)
	assert.Equal(t, "high", res.Candidates[0].ContentID)
	assert.Equal(t, "mid", res.Candidates[1].ContentID)
	assert.Equal(t, "low", res.Candidates[2].ContentID)
}

func TestRetrieveDegradesSingleModality(t *testing.T) {
	index := &fakeIndex{
		hits: map[entity.Modality][]*IndexHit{
			entity.ModalityText: {{ContentID: "a", Modality: entity.ModalityText, Similarity: 0.8}},
		},
		errs: map[entity.Modality]error{
			entity.ModalityTable: errors.New("collection offline"),
		},
	}
	r := NewRetriever(&fakeEmbedder{}, index, newFakeStore("a"), nil, fastRetry())

	res, err := r.Retrieve(context.Background(), "fiber", 5)
	require.NoError(t, err)
	assert.Len(t, res.Candidates, 1)
}

func TestRetrieveAllModalitiesFailing(t *testing.T) {
	boom := errors.New("milvus unreachable")
	index := &fakeIndex{errs: map[entity.Modality]error{
		entity.ModalityText:  boom,
		entity.ModalityTable: boom,
		entity.ModalityImage: boom,
	}}
	r := NewRetriever(&fakeEmbedder{}, index, newFakeStore(), nil, fastRetry())

	_, err := r.Retrieve(context.Background(), "fluid limits", 5)
	assert.ErrorIs(t, err, ErrIndexUnavailable)
}

func TestRetrieveEmbeddingFailure(t *testing.T) {
	r := NewRetriever(&fakeEmbedder{err: errors.New("provider down")}, &fakeIndex{}, newFakeStore(), nil, fastRetry())

	_, err := r.Retrieve(context.Background(), "calcium", 5)
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
}

func TestRetrieveEmptyQuery(t *testing.T) {
	r := NewRetriever(&fakeEmbedder{}, &fakeIndex{}, newFakeStore(), nil, fastRetry())

	res, err := r.Retrieve(context.Background(), "   ", 5)
	require.NoError(t, err)
	assert.Empty(t, res.Candidates)
}

func TestIndexerSkipsUnitsWithoutSummary(t *testing.T) {
	index := &fakeIndex{}
	ix := NewIndexer(&fakeEmbedder{}, index, 2)

	units := []*entity.ContentUnit{
		{ID: "a", Modality: entity.ModalityText, Payload: "alpha"},
		{ID: "b", Modality: entity.ModalityTable, Payload: "beta"},
		{ID: "c", Modality: entity.ModalityText, Payload: "gamma"},
	}
	summaries := []*entity.SummaryRecord{
		{ID: "a", SummaryText: "about alpha"},
		{ID: "c", SummaryText: "about gamma"},
	}

	n, err := ix.Run(context.Background(), units, summaries)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, index.inserted, 2)
	assert.Equal(t, "a", index.inserted[0].ContentID)
	assert.NotEmpty(t, index.inserted[0].Vector)
}
