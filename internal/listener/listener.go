package listener

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/teltech/logger"

	"reviewdash/internal/config"
	"reviewdash/internal/intake"
	"reviewdash/internal/pipeline"
	"reviewdash/internal/storage"
)

var log *logger.Log

func init() {
	log = logger.New()
}

const lastScanKey = "listener.last_scan"

type Service struct {
	db  *storage.DB
	cfg config.Config
}

func NewService(db *storage.DB, cfg config.Config) *Service {
	return &Service{db: db, cfg: cfg}
}

// Run polls the inbox directory until ctx is done. A failed cycle is logged
// and retried on the next tick.
func (s *Service) Run(ctx context.Context) error {
	for {
		if err := s.runCycle(ctx); err != nil {
			log.Errorf("listener cycle error: %v", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(s.cfg.ListenerIntervalSec) * time.Second):
		}
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return nil
	}

	processor := pipeline.NewProcessingService(s.db, s.cfg)
	processedFiles, keptRows, err := processor.ProcessSource(intake.NewDirSource(s.cfg.InboxDir), s.cfg.ListenerBatch)
	if err != nil {
		return err
	}

	exported := 0
	if s.cfg.ListenerAutoExport {
		exported, err = s.exportImported(processor)
		if err != nil {
			return err
		}
	}

	_ = s.db.SetMetadata(lastScanKey, time.Now().UTC().Format(time.RFC3339))
	log.Infof("listener cycle done inbox=%s files=%d rows=%d exported=%d", s.cfg.InboxDir, processedFiles, keptRows, exported)
	return nil
}

func (s *Service) exportImported(processor *pipeline.ProcessingService) (int, error) {
	imports, err := s.db.ListImportsByStatus("imported", 200)
	if err != nil {
		return 0, err
	}

	exported := 0
	for _, imp := range imports {
		base := strings.TrimSuffix(imp.SourceName, filepath.Ext(imp.SourceName))
		filename := fmt.Sprintf("%d_%s.xlsx", imp.ID, sanitizeName(base))
		outputPath := filepath.Join(s.cfg.OutputDir, "listener", filename)
		if _, err := processor.ExportImport(imp.ID, outputPath); err != nil {
			log.Errorf("export import %d failed: %v", imp.ID, err)
			continue
		}
		exported++
	}
	return exported, nil
}

func sanitizeName(input string) string {
	repl := strings.NewReplacer("<", "_", ">", "_", ":", "_", "/", "_", "\\", "_", "|", "_", "?", "_", "*", "_", " ", "_", "\"", "_")
	out := repl.Replace(input)
	if len(out) > 120 {
		out = out[:120]
	}
	if out == "" {
		out = "import"
	}
	return out
}
