package pipeline

import "testing"

func TestDetectReviewSheet(t *testing.T) {
	res := DetectReviewSheet([]string{"Task ID", "Content", "Images", "Notes"})
	if !res.IsReview || res.Reason != "rules_positive" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(res.Keys) != 4 || res.Keys[0] != "task_id" || res.Keys[3] != "notes" {
		t.Fatalf("keys=%v", res.Keys)
	}

	res = DetectReviewSheet([]string{"gmt_create", "store_code", "gmt_create"})
	if res.IsReview {
		t.Fatalf("weak header accepted: %+v", res)
	}
	if res.Score < 0.19 || res.Score > 0.21 {
		t.Fatalf("duplicate column counted twice: %v", res.Score)
	}
}
