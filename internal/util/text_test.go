package util

import "testing"

func TestNormalizeColumnKey(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "already snake", input: "task_id", want: "task_id"},
		{name: "spaced caption", input: " Task ID ", want: "task_id"},
		{name: "hyphenated", input: "Store-Code", want: "store_code"},
		{name: "bom prefix", input: "\ufeffgmt_create", want: "gmt_create"},
		{name: "chinese alias", input: "任务ID", want: "task_id"},
		{name: "short alias", input: "Image", want: "images"},
		{name: "unknown kept", input: "Remarks", want: "remarks"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeColumnKey(tc.input); got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := FirstNonEmpty("", "  ", "b", "c"); got != "b" {
		t.Fatalf("got %q", got)
	}
}
