package answer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rogan-afk/NutriNephra/internal/application/retrieval"
	"github.com/Rogan-afk/NutriNephra/internal/domain/entity"
)

// fakeGen 按顺序返回预设响应
type fakeGen struct {
	responses []string
	errs      []error
	calls     int
}

func (f *fakeGen) Generate(_ context.Context, _ Prompt) (string, error) {
	i := f.calls
	f.calls++
	var resp string
	if i < len(f.responses) {
		resp = f.responses[i]
	}
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return resp, err
}

func fastComposerOpts() ComposerOptions {
	return ComposerOptions{
		MaxOutputChars: 2400,
		Retry:          retrieval.RetryPolicy{MaxAttempts: 3, Initial: time.Millisecond, Max: 2 * time.Millisecond, Multiplier: 2.0},
	}
}

func rankedText(id, ref, payload string, sim float64) retrieval.RankedCandidate {
	return retrieval.RankedCandidate{
		Candidate: retrieval.Candidate{
			ContentID:  id,
			Modality:   entity.ModalityText,
			Similarity: sim,
			Unit:       &entity.ContentUnit{ID: id, Modality: entity.ModalityText, Payload: payload, SourceRef: ref},
		},
		Relevance: sim,
	}
}

func TestComposeInsufficientEvidenceIsDeterministic(t *testing.T) {
	gen := &fakeGen{}

	for _, c := range []Composer{
		NewAnswerOnly(gen, fastComposerOpts()),
		NewAgenticWithSources(gen, fastComposerOpts()),
	} {
		res, err := c.Compose(context.Background(), "rare nutrient question", nil)
		require.NoError(t, err)
		assert.True(t, res.Insufficient)
		assert.Equal(t, InsufficientEvidence, res.Answer)
		assert.Empty(t, res.Citations)
	}
	// 无证据时不触发生成调用
	assert.Equal(t, 0, gen.calls)
}

func TestComposeAnswerOnlyHasNoCitations(t *testing.T) {
	gen := &fakeGen{responses: []string{"Limit sodium to under two grams daily. Choose fresh vegetables."}}
	c := NewAnswerOnly(gen, fastComposerOpts())

	ranked := []retrieval.RankedCandidate{
		rankedText("a", "guide.md#0", "sodium guidance text", 0.9),
	}
	res, err := c.Compose(context.Background(), "how much sodium", ranked)
	require.NoError(t, err)
	assert.Equal(t, ModeAnswerOnly, res.Mode)
	assert.NotNil(t, res.Citations)
	assert.Empty(t, res.Citations)
	assert.True(t, strings.HasSuffix(res.Answer, fixedNote))
}

func TestComposeAgenticCitationsFollowContextOrder(t *testing.T) {
	gen := &fakeGen{responses: []string{"Sodium matters [2]. Potassium too [1]."}}
	c := NewAgenticWithSources(gen, fastComposerOpts())

	img := retrieval.RankedCandidate{
		Candidate: retrieval.Candidate{
			ContentID:  "img",
			Modality:   entity.ModalityImage,
			Similarity: 0.7,
			Unit:       &entity.ContentUnit{ID: "img", Modality: entity.ModalityImage, Payload: "aGVsbG8=", SourceRef: "fig.png#0"},
		},
		Relevance: 0.7,
	}
	ranked := []retrieval.RankedCandidate{
		rankedText("a", "guide.md#0", "sodium guidance text", 0.9),
		rankedText("b", "tables.md#3", "potassium table", 0.8),
		img,
	}

	res, err := c.Compose(context.Background(), "sodium and potassium", ranked)
	require.NoError(t, err)
	require.Len(t, res.Citations, 3)

	// 引用顺序由送入上下文的顺序决定，与模型输出中的标记顺序无关
	assert.Equal(t, "a", res.Citations[0].ContentID)
	assert.Equal(t, "b", res.Citations[1].ContentID)
	assert.Equal(t, "img", res.Citations[2].ContentID)
	assert.Equal(t, "guide.md#0", res.Citations[0].SourceRef)
	assert.NotEmpty(t, res.Citations[0].Snippet)
	assert.Empty(t, res.Citations[2].Snippet)
}

func TestComposeAgenticCitationsAreUnique(t *testing.T) {
	gen := &fakeGen{responses: []string{"Answer text."}}
	c := NewAgenticWithSources(gen, fastComposerOpts())

	ranked := []retrieval.RankedCandidate{
		rankedText("a", "guide.md#0", "sodium guidance", 0.9),
		rankedText("b", "guide.md#1", "more guidance", 0.8),
	}
	res, err := c.Compose(context.Background(), "sodium", ranked)
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, cit := range res.Citations {
		assert.False(t, seen[cit.ContentID])
		seen[cit.ContentID] = true
	}
}

func TestComposeRetriesThenSucceeds(t *testing.T) {
	gen := &fakeGen{
		responses: []string{"", "", "Limit sodium daily."},
		errs:      []error{errors.New("rate limited"), errors.New("rate limited"), nil},
	}
	c := NewAnswerOnly(gen, fastComposerOpts())

	res, err := c.Compose(context.Background(), "sodium", []retrieval.RankedCandidate{
		rankedText("a", "guide.md#0", "sodium guidance", 0.9),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, gen.calls)
	assert.Contains(t, res.Answer, "Limit sodium daily")
}

func TestComposeRetriesExhausted(t *testing.T) {
	boom := errors.New("provider down")
	gen := &fakeGen{errs: []error{boom, boom, boom}}
	c := NewAnswerOnly(gen, fastComposerOpts())

	_, err := c.Compose(context.Background(), "sodium", []retrieval.RankedCandidate{
		rankedText("a", "guide.md#0", "sodium guidance", 0.9),
	})
	assert.ErrorIs(t, err, ErrGenerationUnavailable)
	assert.Equal(t, 3, gen.calls)
}

func TestComposeEmptyResponseCountsAsFailure(t *testing.T) {
	// 无错误但响应为空同样视为失败并重试
	gen := &fakeGen{responses: []string{"", "Limit sodium daily."}}
	c := NewAnswerOnly(gen, fastComposerOpts())

	res, err := c.Compose(context.Background(), "sodium", []retrieval.RankedCandidate{
		rankedText("a", "guide.md#0", "sodium guidance", 0.9),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, gen.calls)
	assert.Contains(t, res.Answer, "Limit sodium daily")
}
