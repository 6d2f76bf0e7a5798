package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/xuri/excelize/v2"

	"reviewdash/internal"
)

var (
	schemeTypo   = regexp.MustCompile(`^(https?)\./`)
	serialNumber = regexp.MustCompile(`^\d+(\.\d+)?$`)
)

// Serial day bounds. Values below minSerialDay (1927-05-18) are more likely
// years or counts than dates; maxSerialDay is 9999-12-31.
const (
	minSerialDay = 10000
	maxSerialDay = 2958465
)

// Epoch millisecond bounds for years 1 through 9999.
const (
	minEpochMillis = -62135596800000
	maxEpochMillis = 253402300799999
)

var zonedLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05 -0700 MST",
	time.RFC1123Z,
	time.RFC1123,
}

var localLayouts = []string{
	"2006-01-02T15:04:05",
	time.DateTime,
	"2006-01-02 15:04",
	time.DateOnly,
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006/01/02",
	"2006/1/2 15:04:05",
	"2006/1/2 15:04",
	"2006/1/2",
	"2006.01.02",
	"01/02/2006 15:04:05",
	"01/02/2006",
	"1/2/2006 15:04",
	"1/2/2006",
	"20060102",
}

type detection struct {
	result      string
	description string
}

func algorithmName(path internal.Value) string {
	if !path.Truthy() {
		return ""
	}
	s := path.String()
	return s[strings.LastIndex(s, "/")+1:]
}

// parseDetection reads the pass/fail label and description from the first
// element of the detection payload. The zero detection is returned with any
// error.
func parseDetection(content internal.Value) (detection, error) {
	if !content.Truthy() {
		return detection{}, nil
	}
	payload, err := resolveJSON(content)
	if err != nil {
		return detection{}, err
	}
	if !payload.IsArray() {
		return detection{}, nil
	}
	items := payload.Array()
	if len(items) == 0 {
		return detection{}, nil
	}
	first := items[0]
	if first.Type == gjson.Null {
		return detection{}, errors.New("first detection item is null")
	}

	out := detection{result: internal.ResultUnqualified}
	if label := first.Get("label"); label.Type == gjson.Number && label.Num == 1 {
		out.result = internal.ResultQualified
	}
	if desc := first.Get("content"); truthyJSON(desc) {
		out.description = desc.String()
	}
	return out, nil
}

// resolveJSON turns either form of a Value into a parsed JSON document.
func resolveJSON(v internal.Value) (gjson.Result, error) {
	if text, ok := v.AsText(); ok {
		if !gjson.Valid(text) {
			return gjson.Result{}, fmt.Errorf("invalid JSON: %s", clip(text, 64))
		}
		return gjson.Parse(text), nil
	}
	decoded, _ := v.AsDecoded()
	blob, err := json.Marshal(decoded)
	if err != nil {
		return gjson.Result{}, err
	}
	return gjson.ParseBytes(blob), nil
}

func truthyJSON(r gjson.Result) bool {
	switch r.Type {
	case gjson.String:
		return r.Str != ""
	case gjson.Number:
		return r.Num != 0 && !math.IsNaN(r.Num)
	case gjson.True, gjson.JSON:
		return true
	}
	return false
}

// formatDate renders the value as YYYY-MM-DD in loc, or returns the raw text
// when it cannot be read as a date.
func formatDate(v internal.Value, loc *time.Location) string {
	if !v.Truthy() {
		return ""
	}
	if decoded, ok := v.AsDecoded(); ok {
		if ms, ok := decoded.(float64); ok {
			if math.IsNaN(ms) || ms < minEpochMillis || ms > maxEpochMillis {
				return v.String()
			}
			return time.UnixMilli(int64(ms)).In(loc).Format(time.DateOnly)
		}
	}
	raw := v.String()
	ts, ok := parseTimestamp(strings.TrimSpace(raw), loc)
	if !ok {
		return raw
	}
	return ts.Format(time.DateOnly)
}

func parseTimestamp(s string, loc *time.Location) (time.Time, bool) {
	for _, layout := range zonedLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.In(loc), true
		}
	}
	for _, layout := range localLayouts {
		if ts, err := time.ParseInLocation(layout, s, loc); err == nil {
			return ts, true
		}
	}
	// Spreadsheet cells sometimes carry the raw serial day number.
	if !serialNumber.MatchString(s) {
		return time.Time{}, false
	}
	serial, err := strconv.ParseFloat(s, 64)
	if err != nil || serial < minSerialDay || serial > maxSerialDay {
		return time.Time{}, false
	}
	if ts, err := excelize.ExcelDateToTime(serial, false); err == nil {
		return ts, true
	}
	return time.Time{}, false
}

// normalizeImageLink picks the first image reference, repairs the scheme
// typo and keeps it only if it is an http(s) URL.
func normalizeImageLink(images internal.Value) (string, error) {
	if !images.Truthy() {
		return "", nil
	}

	var candidate any
	if text, ok := images.AsText(); ok {
		candidate = text
		if strings.HasPrefix(strings.TrimSpace(text), "[") {
			if !gjson.Valid(text) {
				return "", fmt.Errorf("invalid JSON: %s", clip(text, 64))
			}
			if items := gjson.Parse(text).Array(); len(items) > 0 {
				candidate = items[0].Value()
			}
		}
	} else if decoded, ok := images.AsDecoded(); ok {
		candidate = decoded
		switch list := decoded.(type) {
		case []any:
			if len(list) > 0 {
				candidate = list[0]
			}
		case []string:
			if len(list) > 0 {
				candidate = list[0]
			}
		}
	}

	link, ok := candidate.(string)
	if !ok {
		return "", nil
	}
	link = schemeTypo.ReplaceAllString(link, "${1}://")
	if !strings.HasPrefix(link, "http://") && !strings.HasPrefix(link, "https://") {
		return "", nil
	}
	return link, nil
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
