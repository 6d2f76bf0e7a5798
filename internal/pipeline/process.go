package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"reviewdash/internal"
	"reviewdash/internal/config"
	"reviewdash/internal/intake"
	"reviewdash/internal/storage"
)

type ProcessingService struct {
	db          *storage.DB
	cfg         config.Config
	archive     *intake.ArchiveService
	transformer *Transformer
}

func NewProcessingService(db *storage.DB, cfg config.Config) *ProcessingService {
	return &ProcessingService{
		db:          db,
		cfg:         cfg,
		archive:     intake.NewArchiveService(cfg.ArchiveDir),
		transformer: NewTransformer(cfg),
	}
}

type ProcessResult struct {
	ImportID  int
	Total     int
	Kept      int
	Duplicate bool
}

// ProcessFile archives, extracts, transforms and stores one source file. A
// file whose content was imported before is reported as Duplicate.
func (s *ProcessingService) ProcessFile(path, inputType string) (ProcessResult, error) {
	start := time.Now()
	sourceType, err := resolveSourceType(inputType, path)
	if err != nil {
		return ProcessResult{}, err
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return ProcessResult{}, err
	}

	archived, err := s.archive.Store(filepath.Base(path), blob)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("archive %s: %w", path, err)
	}
	existing, err := s.db.GetImportByHash(archived.Hash)
	if err != nil {
		return ProcessResult{}, err
	}
	if existing != nil {
		return ProcessResult{ImportID: existing.ID, Total: existing.TotalRows, Kept: existing.KeptRows, Duplicate: true}, nil
	}

	rows, err := extractRowsFromBlob(sourceType, blob)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("extract %s: %w", path, err)
	}
	extractedAt := time.Now()

	out := s.transformer.Transform(rows)
	imp, err := s.db.CreateImport(string(sourceType), filepath.Base(path), archived.Hash, archived.Path, len(rows), out)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("store %s: %w", path, err)
	}

	_ = s.db.InsertRun(traceID(), imp.ID,
		map[string]float64{
			"extractMs": float64(extractedAt.Sub(start).Milliseconds()),
			"totalMs":   float64(time.Since(start).Milliseconds()),
		},
		map[string]int{"total": len(rows), "kept": len(out), "filtered": len(rows) - len(out)},
	)
	log.Infof("import %d from %s: rows=%d kept=%d", imp.ID, filepath.Base(path), len(rows), len(out))

	return ProcessResult{ImportID: imp.ID, Total: len(rows), Kept: len(out)}, nil
}

// ProcessSource processes up to limit files listed by src, skipping ones
// already imported. Files that fail to process are logged and left in place.
func (s *ProcessingService) ProcessSource(src intake.Source, limit int) (int, int, error) {
	files, err := src.List()
	if err != nil {
		return 0, 0, err
	}
	processedFiles := 0
	processedRows := 0
	for _, file := range files {
		if limit > 0 && processedFiles >= limit {
			break
		}
		res, err := s.ProcessFile(file.Path, string(file.Type))
		if err != nil {
			log.Errorf("process %s failed: %v", file.Name, err)
			continue
		}
		if res.Duplicate {
			continue
		}
		processedFiles++
		processedRows += res.Kept
	}
	return processedFiles, processedRows, nil
}

// ReprocessImport re-extracts the archived raw file of an import with the
// current transformer settings and replaces its stored rows.
func (s *ProcessingService) ReprocessImport(importID int) (ProcessResult, error) {
	start := time.Now()
	imp, err := s.db.MustImportByID(importID)
	if err != nil {
		return ProcessResult{}, err
	}
	blob, err := os.ReadFile(imp.RawRef)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("read archived %s: %w", imp.RawRef, err)
	}
	rows, err := extractRowsFromBlob(internal.SourceType(imp.SourceType), blob)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("extract %s: %w", imp.SourceName, err)
	}
	out := s.transformer.Transform(rows)
	if err := s.db.ReplaceReviewRows(imp.ID, len(rows), out); err != nil {
		return ProcessResult{}, err
	}
	if err := s.db.UpdateImportStatus(imp.ID, "imported"); err != nil {
		return ProcessResult{}, err
	}

	_ = s.db.InsertRun(traceID(), imp.ID,
		map[string]float64{"totalMs": float64(time.Since(start).Milliseconds())},
		map[string]int{"total": len(rows), "kept": len(out), "filtered": len(rows) - len(out)},
	)
	log.Infof("reprocessed import %d: rows=%d kept=%d", imp.ID, len(rows), len(out))

	return ProcessResult{ImportID: imp.ID, Total: len(rows), Kept: len(out)}, nil
}

// ExportImport writes the stored rows of an import to outputPath and marks
// the import exported.
func (s *ProcessingService) ExportImport(importID int, outputPath string) (int, error) {
	if _, err := s.db.MustImportByID(importID); err != nil {
		return 0, err
	}
	rows, err := s.db.GetReviewRows(importID)
	if err != nil {
		return 0, err
	}
	if err := ExportRows(rows, outputPath); err != nil {
		return 0, err
	}
	if err := s.db.UpdateImportStatus(importID, "exported"); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func traceID() string {
	return uuid.NewString()
}
