package docstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/Rogan-afk/NutriNephra/internal/domain/entity"
)

// 快照文件名
const (
	unitsFile     = "content_units.json"
	summariesFile = "summaries.json"
)

// 原始产物文件名，模态与摘要按下标对齐
var rawArtifacts = []struct {
	modality  entity.Modality
	payloads  string
	summaries string
}{
	{entity.ModalityText, "texts.json", "text_summaries.json"},
	{entity.ModalityTable, "tables.json", "table_summaries.json"},
	{entity.ModalityImage, "images.json", "image_summaries.json"},
}

// Snapshot ingest 产出的完整快照
type Snapshot struct {
	Units     []*entity.ContentUnit
	Summaries []*entity.SummaryRecord
}

// LoadSnapshot 从目录读取快照（服务启动时调用）
func LoadSnapshot(dir string) (*Snapshot, error) {
	var units []*entity.ContentUnit
	if err := readJSON(filepath.Join(dir, unitsFile), &units); err != nil {
		return nil, fmt.Errorf("load content units: %w", err)
	}
	var summaries []*entity.SummaryRecord
	if err := readJSON(filepath.Join(dir, summariesFile), &summaries); err != nil {
		return nil, fmt.Errorf("load summaries: %w", err)
	}
	return &Snapshot{Units: units, Summaries: summaries}, nil
}

// WriteSnapshot 写出快照（ingest 结束时调用）
func WriteSnapshot(dir string, snap *Snapshot) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, unitsFile), snap.Units); err != nil {
		return fmt.Errorf("write content units: %w", err)
	}
	if err := writeJSON(filepath.Join(dir, summariesFile), snap.Summaries); err != nil {
		return fmt.Errorf("write summaries: %w", err)
	}
	return nil
}

// BuildSnapshot 从原始产物目录构建快照：
// 每个模态的负载与摘要按下标对齐，长度取两者较小值，id 在此一次性分配。
func BuildSnapshot(rawDir string) (*Snapshot, error) {
	snap := &Snapshot{}
	for _, a := range rawArtifacts {
		var payloads, summaries []string
		if err := readJSON(filepath.Join(rawDir, a.payloads), &payloads); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("load %s: %w", a.payloads, err)
		}
		if err := readJSON(filepath.Join(rawDir, a.summaries), &summaries); err != nil {
			return nil, fmt.Errorf("load %s: %w", a.summaries, err)
		}
		n := len(payloads)
		if len(summaries) < n {
			n = len(summaries)
		}
		for i := 0; i < n; i++ {
			id := uuid.NewString()
			snap.Units = append(snap.Units, &entity.ContentUnit{
				ID:        id,
				Modality:  a.modality,
				Payload:   payloads[i],
				SourceRef: fmt.Sprintf("%s#%d", a.payloads, i),
			})
			snap.Summaries = append(snap.Summaries, &entity.SummaryRecord{
				ID:          id,
				SummaryText: summaries[i],
			})
		}
	}
	if len(snap.Units) == 0 {
		return nil, fmt.Errorf("no raw artifacts found in %s", rawDir)
	}
	return snap, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
