package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"reviewdash/internal"
	"reviewdash/internal/config"
	"reviewdash/internal/storage"
)

func TestSmokeXLSXImportToExport(t *testing.T) {
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	require.NoError(t, err)
	defer db.Close()

	cfg, _ := config.Load()
	cfg.ArchiveDir = filepath.Join(tmp, "raw")
	cfg.DisplayTimezone = "UTC"
	cfg.ReviewedMarkers = []string{internal.ReviewedMarker, internal.ReviewedMarkerEN}

	input := filepath.Join(tmp, "review.xlsx")
	require.NoError(t, os.WriteFile(input, mkXLSX(map[string][][]any{
		"Sheet1": {
			{"task_id", "project_path", "content", "gmt_create", "images", "checked_label", "project_name", "store_code"},
			{"T1", "a/b/algoX", `[{"label":1,"content":"looks fine"}]`, "2024-03-05T10:00:00Z", "https./example.com/x.jpg", "", "Audit", "S1"},
			{"T2", "a/b/algoY", `[{"label":0,"content":"defect found"}]`, "2024-03-06", "", "", "Audit", "S2"},
			{"T3", "a/b/algoZ", "", "", "", internal.ReviewedMarker, "Audit", "S3"},
		},
	}), 0o644))

	proc := NewProcessingService(db, cfg)
	res, err := proc.ProcessFile(input, "")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.Kept)
	assert.False(t, res.Duplicate)

	again, err := proc.ProcessFile(input, "xlsx")
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.Equal(t, res.ImportID, again.ImportID)

	runs, err := db.CountRuns(res.ImportID)
	require.NoError(t, err)
	assert.Equal(t, 1, runs)

	rows, err := db.GetReviewRows(res.ImportID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, internal.OutputRecord{
		GmtCreate:       "2024-03-05",
		TaskID:          "T1",
		ProjectName:     "Audit",
		AlgorithmName:   "algoX",
		ImageLink:       "https://example.com/x.jpg",
		ImageThumbnail:  "https://example.com/x.jpg",
		DetectionResult: internal.ResultQualified,
		Description:     "looks fine",
		StoreCode:       "S1",
	}, rows[0])
	assert.Equal(t, internal.ResultUnqualified, rows[1].DetectionResult)
	assert.Equal(t, "https://picsum.photos/800/600?random=T2", rows[1].ImageLink)

	xlsxOut := filepath.Join(tmp, "out", "result.xlsx")
	count, err := proc.ExportImport(res.ImportID, xlsxOut)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	f, err := excelize.OpenFile(xlsxOut)
	require.NoError(t, err)
	defer f.Close()
	grid, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	require.Len(t, grid, 3)
	assert.Equal(t, internal.OutputColumns, grid[0])
	assert.Equal(t, rows[1].Values(), grid[2])

	jsonOut := filepath.Join(tmp, "out", "result.json")
	_, err = proc.ExportImport(res.ImportID, jsonOut)
	require.NoError(t, err)
	blob, err := os.ReadFile(jsonOut)
	require.NoError(t, err)
	var exported []map[string]string
	require.NoError(t, json.Unmarshal(blob, &exported))
	require.Len(t, exported, 2)
	assert.Equal(t, "algoY", exported[1]["算法名称"])

	imp, err := db.MustImportByID(res.ImportID)
	require.NoError(t, err)
	assert.Equal(t, "exported", imp.Status)

	_, err = proc.ExportImport(res.ImportID, filepath.Join(tmp, "out", "result.csv"))
	assert.Error(t, err)
	_, err = proc.ExportImport(9999, xlsxOut)
	assert.Error(t, err)
}

func TestProcessSourceSkipsBrokenFiles(t *testing.T) {
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	require.NoError(t, err)
	defer db.Close()

	cfg, _ := config.Load()
	cfg.ArchiveDir = filepath.Join(tmp, "raw")
	cfg.DisplayTimezone = "UTC"

	inbox := filepath.Join(tmp, "inbox")
	require.NoError(t, os.MkdirAll(inbox, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "a.xlsx"), []byte("broken"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "b.json"), []byte(`[{"task_id":"T1"},{"task_id":"T2"}]`), 0o644))

	proc := NewProcessingService(db, cfg)
	files, kept, err := proc.ProcessSource(dirSource(inbox), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, files)
	assert.Equal(t, 2, kept)

	files, _, err = proc.ProcessSource(dirSource(inbox), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, files)
}

func TestReprocessImportAppliesCurrentMarkers(t *testing.T) {
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	require.NoError(t, err)
	defer db.Close()

	cfg, _ := config.Load()
	cfg.ArchiveDir = filepath.Join(tmp, "raw")
	cfg.DisplayTimezone = "UTC"
	cfg.ReviewedMarkers = []string{internal.ReviewedMarker}

	input := filepath.Join(tmp, "rows.json")
	require.NoError(t, os.WriteFile(input, []byte(`[
  {"task_id": "T1", "checked_label": "已检查无误"},
  {"task_id": "T2", "checked_label": "ok"}
]`), 0o644))

	res, err := NewProcessingService(db, cfg).ProcessFile(input, "")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Kept)
	_, err = NewProcessingService(db, cfg).ExportImport(res.ImportID, filepath.Join(tmp, "out", "a.json"))
	require.NoError(t, err)

	cfg.ReviewedMarkers = []string{internal.ReviewedMarker, "ok"}
	again, err := NewProcessingService(db, cfg).ReprocessImport(res.ImportID)
	require.NoError(t, err)
	assert.Equal(t, res.ImportID, again.ImportID)
	assert.Equal(t, 2, again.Total)
	assert.Equal(t, 0, again.Kept)

	rows, err := db.GetReviewRows(res.ImportID)
	require.NoError(t, err)
	assert.Empty(t, rows)

	imp, err := db.MustImportByID(res.ImportID)
	require.NoError(t, err)
	assert.Equal(t, "imported", imp.Status)
	assert.Equal(t, 0, imp.KeptRows)

	runs, err := db.CountRuns(res.ImportID)
	require.NoError(t, err)
	assert.Equal(t, 2, runs)

	_, err = NewProcessingService(db, cfg).ReprocessImport(9999)
	assert.Error(t, err)
}
