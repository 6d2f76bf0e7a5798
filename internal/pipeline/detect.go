package pipeline

import "reviewdash/internal/util"

type DetectResult struct {
	IsReview bool
	Score    float64
	Reason   string
	Keys     []string
}

var detectWeights = map[string]float64{
	"task_id":       0.3,
	"content":       0.3,
	"images":        0.25,
	"project_path":  0.2,
	"checked_label": 0.15,
	"gmt_create":    0.1,
	"project_name":  0.1,
	"store_code":    0.1,
}

// DetectReviewSheet scores a header row by the review columns it names.
// Keys holds the normalized key of every cell, aligned with headers.
func DetectReviewSheet(headers []string) DetectResult {
	keys := make([]string, len(headers))
	seen := map[string]struct{}{}
	score := 0.0
	for i, h := range headers {
		key := util.NormalizeColumnKey(h)
		keys[i] = key
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		score += detectWeights[key]
	}
	if score > 1 {
		score = 1
	}

	isReview := score >= 0.45
	reason := "rules_negative"
	if isReview {
		reason = "rules_positive"
	}

	return DetectResult{IsReview: isReview, Score: score, Reason: reason, Keys: keys}
}
