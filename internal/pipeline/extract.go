package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	"github.com/tidwall/gjson"
	"github.com/xuri/excelize/v2"

	"reviewdash/internal"
	"reviewdash/internal/util"
)

// ExtractRowsFromEmailRaw collects review rows from the HTML body tables and
// the supported attachments of a raw RFC 822 message.
func ExtractRowsFromEmailRaw(raw []byte) ([]internal.InputRecord, string, []string, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, "", nil, err
	}

	rows := []internal.InputRecord{}
	if env.HTML != "" {
		rows = append(rows, parseHTMLTables(env.HTML)...)
	}

	attachmentNames := make([]string, 0, len(env.Attachments))
	for _, att := range env.Attachments {
		filename := util.FirstNonEmpty(strings.TrimSpace(att.FileName), "attachment")
		attachmentNames = append(attachmentNames, filename)

		sourceType, ok := internal.SourceTypeFromName(filename)
		if !ok || sourceType == internal.SourceEML {
			continue
		}
		extra, err := extractRowsFromBlob(sourceType, att.Content)
		if err != nil {
			log.Warnf("skipping attachment %s: %v", filename, err)
			continue
		}
		rows = append(rows, extra...)
	}

	return rows, env.GetHeader("Subject"), attachmentNames, nil
}

func extractRowsFromBlob(sourceType internal.SourceType, blob []byte) ([]internal.InputRecord, error) {
	switch sourceType {
	case internal.SourceXLSX:
		return parseXLSX(blob)
	case internal.SourceJSON:
		return DecodeRows(blob), nil
	case internal.SourceHTML:
		return parseHTMLTables(string(blob)), nil
	case internal.SourceCSV:
		return parseCSV(blob)
	case internal.SourceEML:
		rows, _, _, err := ExtractRowsFromEmailRaw(blob)
		return rows, err
	default:
		return nil, fmt.Errorf("unsupported input type: %s", sourceType)
	}
}

// DecodeRows reads a JSON array of row objects. Anything but a well-formed
// array gives no rows; array elements that are not objects become empty
// records.
func DecodeRows(blob []byte) []internal.InputRecord {
	if !gjson.ValidBytes(blob) {
		return nil
	}
	doc := gjson.ParseBytes(blob)
	if !doc.IsArray() {
		return nil
	}
	items := doc.Array()
	out := make([]internal.InputRecord, 0, len(items))
	for _, item := range items {
		var rec internal.InputRecord
		if item.IsObject() {
			if err := json.Unmarshal([]byte(item.Raw), &rec); err != nil {
				log.Warnf("row decode failed: %v", err)
				rec = internal.InputRecord{}
			}
		}
		out = append(out, rec)
	}
	return out
}

func parseXLSX(content []byte) ([]internal.InputRecord, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := []internal.InputRecord{}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		out = append(out, recordsFromGrid(rows)...)
	}
	return out, nil
}

func parseCSV(content []byte) ([]internal.InputRecord, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	return recordsFromGrid(rows), nil
}

func parseHTMLTables(html string) []internal.InputRecord {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	out := []internal.InputRecord{}
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		grid := [][]string{}
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			cells := []string{}
			row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, cellText(cell))
			})
			grid = append(grid, cells)
		})
		out = append(out, recordsFromGrid(grid)...)
	})
	return out
}

// cellText falls back to a link or image source when the cell has no text.
func cellText(cell *goquery.Selection) string {
	text := util.NormalizeSpaces(cell.Text())
	if text != "" {
		return text
	}
	if src, ok := cell.Find("img").Attr("src"); ok {
		return strings.TrimSpace(src)
	}
	if href, ok := cell.Find("a").Attr("href"); ok {
		return strings.TrimSpace(href)
	}
	return ""
}

// recordsFromGrid looks for a header row among the first three rows and maps
// every following non-empty row onto an InputRecord.
func recordsFromGrid(grid [][]string) []internal.InputRecord {
	headerIdx := -1
	var keys []string
	for i := 0; i < len(grid) && i < 3; i++ {
		detect := DetectReviewSheet(grid[i])
		if detect.IsReview {
			headerIdx = i
			keys = detect.Keys
			break
		}
	}
	if headerIdx < 0 {
		return nil
	}

	out := []internal.InputRecord{}
	for _, cells := range grid[headerIdx+1:] {
		rec, ok := recordFromCells(keys, cells)
		if !ok {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func recordFromCells(keys []string, cells []string) (internal.InputRecord, bool) {
	var rec internal.InputRecord
	filled := false
	for i, key := range keys {
		if i >= len(cells) {
			break
		}
		if strings.TrimSpace(cells[i]) == "" {
			continue
		}
		if rec.Set(key, internal.Text(cells[i])) {
			filled = true
		}
	}
	return rec, filled
}
