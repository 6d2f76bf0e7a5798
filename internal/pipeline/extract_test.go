package pipeline

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/jhillyerd/enmime"
)

func TestParseHTMLTables(t *testing.T) {
	html := `<html><body>
<table><tr><td>unrelated</td></tr><tr><td>1</td></tr></table>
<table>
<tr><th>任务ID</th><th>项目路径</th><th>images</th></tr>
<tr><td> T1 </td><td>a/b/algoX</td><td><img src="https./cdn.test/1.jpg"></td></tr>
<tr><td>T2</td><td>a/b/algoY</td><td><a href="https://cdn.test/2.jpg"></a></td></tr>
</table></body></html>`
	rows := parseHTMLTables(html)
	if len(rows) != 2 {
		t.Fatalf("len=%d", len(rows))
	}
	if rows[0].TaskID.String() != "T1" {
		t.Fatalf("task=%q", rows[0].TaskID.String())
	}
	if rows[0].Images.String() != "https./cdn.test/1.jpg" {
		t.Fatalf("images=%q", rows[0].Images.String())
	}
	if rows[1].Images.String() != "https://cdn.test/2.jpg" {
		t.Fatalf("images=%q", rows[1].Images.String())
	}
}

func TestParseCSV(t *testing.T) {
	blob := []byte("\xef\xbb\xbftask_id,content,gmt_create\n" +
		`T1,"[{""label"":0,""content"":""defect found""}]",2024-03-05T10:00:00Z` + "\n" +
		",,\n" +
		"T2\n")
	rows, err := parseCSV(blob)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("len=%d", len(rows))
	}
	if rows[0].Content.String() != `[{"label":0,"content":"defect found"}]` {
		t.Fatalf("content=%q", rows[0].Content.String())
	}
	if rows[1].TaskID.String() != "T2" || !rows[1].Content.IsAbsent() {
		t.Fatalf("row1=%+v", rows[1])
	}
}

func TestDecodeRows(t *testing.T) {
	if rows := DecodeRows([]byte(`{"task_id":"T1"}`)); rows != nil {
		t.Fatalf("object should give no rows: %+v", rows)
	}
	rows := DecodeRows([]byte(`[{"task_id":"T1"}, 3, {"task_id": 7}]`))
	if len(rows) != 3 {
		t.Fatalf("len=%d", len(rows))
	}
	if !rows[1].TaskID.IsAbsent() || rows[2].TaskID.String() != "7" {
		t.Fatalf("rows=%+v", rows)
	}
}

func TestExtractRowsFromEmailRaw(t *testing.T) {
	part, err := enmime.Builder().
		From("Reviewer", "reviewer@example.com").
		To("Ops", "ops@example.com").
		Subject("weekly review").
		Text([]byte("see attachment")).
		HTML([]byte(`<table><tr><th>task_id</th><th>content</th></tr><tr><td>H1</td><td>[]</td></tr></table>`)).
		AddAttachment([]byte(`[{"task_id":"J1"},{"task_id":"J2"}]`), "application/json", "rows.json").
		AddAttachment([]byte("hello"), "text/plain", "readme.txt").
		Build()
	if err != nil {
		t.Fatal(err)
	}
	buf := bytes.NewBuffer(nil)
	if err := part.Encode(buf); err != nil {
		t.Fatal(err)
	}

	rows, subject, names, err := ExtractRowsFromEmailRaw(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if subject != "weekly review" {
		t.Fatalf("subject=%q", subject)
	}
	if len(names) != 2 {
		t.Fatalf("attachments=%v", names)
	}
	if len(rows) != 3 || rows[0].TaskID.String() != "H1" || rows[2].TaskID.String() != "J2" {
		t.Fatalf("rows=%+v", rows)
	}
}

func TestExtractRowsFromInput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rows.json")
	if err := os.WriteFile(path, []byte(`[{"task_id":"T1"}]`), 0o644); err != nil {
		t.Fatal(err)
	}

	rows, err := ExtractRowsFromInput("", path)
	if err != nil || len(rows) != 1 {
		t.Fatalf("rows=%v err=%v", rows, err)
	}
	if _, err := ExtractRowsFromInput("pdf", path); err == nil {
		t.Fatal("expected unsupported type error")
	}
	if _, err := ExtractRowsFromInput("", filepath.Join(dir, "rows.txt")); err == nil {
		t.Fatal("expected inference error")
	}
}
