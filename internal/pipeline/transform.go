package pipeline

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/teltech/logger"

	"reviewdash/internal"
	"reviewdash/internal/config"
)

var log *logger.Log

func init() {
	log = logger.New()
}

// Logger receives field-level parse failures. *logger.Log satisfies it.
type Logger interface {
	Errorf(format string, args ...interface{})
}

// Transformer maps imported review rows to display rows. It holds no
// per-call state; every row is derived independently and never fails.
type Transformer struct {
	reviewed        map[string]struct{}
	placeholderBase string
	loc             *time.Location
	seed            func() string
	log             Logger
}

func NewTransformer(cfg config.Config) *Transformer {
	reviewed := make(map[string]struct{}, len(cfg.ReviewedMarkers))
	for _, m := range cfg.ReviewedMarkers {
		reviewed[m] = struct{}{}
	}
	base := strings.TrimRight(cfg.PlaceholderImageBase, "?")
	if base == "" {
		base = "https://picsum.photos/800/600"
	}
	return &Transformer{
		reviewed:        reviewed,
		placeholderBase: base,
		loc:             cfg.Location(),
		seed:            randomToken,
		log:             log,
	}
}

// Transform drops reviewed rows and reshapes the rest, preserving order.
// The result is never nil.
func (t *Transformer) Transform(rows []internal.InputRecord) []internal.OutputRecord {
	out := make([]internal.OutputRecord, 0, len(rows))
	for _, row := range rows {
		if t.isReviewed(row.CheckedLabel) {
			continue
		}
		out = append(out, t.transformRow(row))
	}
	return out
}

// TransformJSON is Transform over an untyped JSON document. Anything other
// than a non-empty array yields an empty result.
func (t *Transformer) TransformJSON(blob []byte) []internal.OutputRecord {
	return t.Transform(DecodeRows(blob))
}

func (t *Transformer) isReviewed(label internal.Value) bool {
	text, ok := label.AsText()
	if !ok {
		return false
	}
	_, reviewed := t.reviewed[text]
	return reviewed
}

func (t *Transformer) transformRow(row internal.InputRecord) internal.OutputRecord {
	taskID := row.TaskID.OrEmpty()

	det, err := parseDetection(row.Content)
	if err != nil {
		t.log.Errorf("parse content failed task_id=%q: %v", taskID, err)
	}

	link, err := normalizeImageLink(row.Images)
	if err != nil {
		t.log.Errorf("parse images failed task_id=%q: %v", taskID, err)
	}
	if link == "" {
		link = t.placeholder(taskID)
	}

	return internal.OutputRecord{
		GmtCreate:       formatDate(row.GmtCreate, t.loc),
		TaskID:          taskID,
		ProjectName:     row.ProjectName.OrEmpty(),
		AlgorithmName:   algorithmName(row.ProjectPath),
		ImageLink:       link,
		ImageThumbnail:  link,
		DetectionResult: det.result,
		Description:     det.description,
		StoreCode:       row.StoreCode.OrEmpty(),
	}
}

func (t *Transformer) placeholder(taskID string) string {
	seed := taskID
	if seed == "" {
		seed = t.seed()
	}
	return t.placeholderBase + "?random=" + seed
}

func randomToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
}
