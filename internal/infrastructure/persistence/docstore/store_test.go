package docstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rogan-afk/NutriNephra/internal/application/retrieval"
	"github.com/Rogan-afk/NutriNephra/internal/domain/entity"
)

func sampleUnits() []*entity.ContentUnit {
	return []*entity.ContentUnit{
		{ID: "u1", Modality: entity.ModalityText, Payload: "sodium guidance", SourceRef: "texts.json#0"},
		{ID: "u2", Modality: entity.ModalityTable, Payload: "potassium table", SourceRef: "tables.json#0"},
	}
}

func TestStoreNotReadyUntilSwapped(t *testing.T) {
	s := NewStore()
	assert.False(t, s.Ready())
	assert.Equal(t, 0, s.Len())

	s.Swap(sampleUnits())
	assert.True(t, s.Ready())
	assert.Equal(t, 2, s.Len())
	assert.False(t, s.LoadedAt().IsZero())
}

func TestStoreGetByID(t *testing.T) {
	s := NewStore()
	s.Swap(sampleUnits())

	u, err := s.GetByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "sodium guidance", u.Payload)

	_, err = s.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, retrieval.ErrUnitNotFound)
}

func TestStoreGetManySkipsMissing(t *testing.T) {
	s := NewStore()
	s.Swap(sampleUnits())

	out, err := s.GetMany(context.Background(), []string{"u1", "ghost", "u2"})
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.NotContains(t, out, "ghost")
}

func TestStoreAll(t *testing.T) {
	s := NewStore()
	s.Swap(sampleUnits())

	all := s.All()
	assert.Len(t, all, 2)
	ids := map[string]bool{}
	for _, u := range all {
		ids[u.ID] = true
	}
	assert.True(t, ids["u1"] && ids["u2"])
}

func TestStoreSwapReplacesAll(t *testing.T) {
	s := NewStore()
	s.Swap(sampleUnits())

	s.Swap([]*entity.ContentUnit{
		{ID: "u3", Modality: entity.ModalityText, Payload: "fluid limits"},
	})
	assert.Equal(t, 1, s.Len())

	_, err := s.GetByID(context.Background(), "u1")
	assert.ErrorIs(t, err, retrieval.ErrUnitNotFound)
}

func TestSnapshotRoundtrip(t *testing.T) {
	dir := t.TempDir()
	snap := &Snapshot{
		Units: sampleUnits(),
		Summaries: []*entity.SummaryRecord{
			{ID: "u1", SummaryText: "about sodium"},
			{ID: "u2", SummaryText: "about potassium"},
		},
	}

	require.NoError(t, WriteSnapshot(dir, snap))

	loaded, err := LoadSnapshot(dir)
	require.NoError(t, err)
	require.Len(t, loaded.Units, 2)
	require.Len(t, loaded.Summaries, 2)
	assert.Equal(t, "u1", loaded.Units[0].ID)
	assert.Equal(t, "about potassium", loaded.Summaries[1].SummaryText)
}

func TestLoadSnapshotMissingDir(t *testing.T) {
	_, err := LoadSnapshot(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func writeRaw(t *testing.T, dir, name string, items []string) {
	t.Helper()
	data, err := json.Marshal(items)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func TestBuildSnapshotAlignsPayloadsAndSummaries(t *testing.T) {
	dir := t.TempDir()
	writeRaw(t, dir, "texts.json", []string{"text a", "text b", "text c"})
	// 摘要比负载少一条，多出的负载丢弃
	writeRaw(t, dir, "text_summaries.json", []string{"sum a", "sum b"})
	writeRaw(t, dir, "tables.json", []string{"table a"})
	writeRaw(t, dir, "table_summaries.json", []string{"table sum a"})

	snap, err := BuildSnapshot(dir)
	require.NoError(t, err)
	require.Len(t, snap.Units, 3)
	require.Len(t, snap.Summaries, 3)

	// id 在构建时一次性分配，负载与摘要共用同一 id
	for i := range snap.Units {
		assert.NotEmpty(t, snap.Units[i].ID)
		assert.Equal(t, snap.Units[i].ID, snap.Summaries[i].ID)
	}
	assert.Equal(t, entity.ModalityText, snap.Units[0].Modality)
	assert.Equal(t, "texts.json#0", snap.Units[0].SourceRef)
	assert.Equal(t, entity.ModalityTable, snap.Units[2].Modality)
}

func TestBuildSnapshotSkipsMissingModalities(t *testing.T) {
	dir := t.TempDir()
	writeRaw(t, dir, "texts.json", []string{"text a"})
	writeRaw(t, dir, "text_summaries.json", []string{"sum a"})

	snap, err := BuildSnapshot(dir)
	require.NoError(t, err)
	assert.Len(t, snap.Units, 1)
}

func TestBuildSnapshotEmptyDir(t *testing.T) {
	_, err := BuildSnapshot(t.TempDir())
	assert.Error(t, err)
}
