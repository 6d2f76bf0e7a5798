package internal

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strconv"
	"strings"
)

type SourceType string

const (
	SourceXLSX SourceType = "xlsx"
	SourceJSON SourceType = "json"
	SourceHTML SourceType = "html"
	SourceCSV  SourceType = "csv"
	SourceEML  SourceType = "eml"
)

// SourceTypeFromName maps a file name extension to its source type.
func SourceTypeFromName(name string) (SourceType, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return SourceXLSX, true
	case ".json":
		return SourceJSON, true
	case ".html", ".htm":
		return SourceHTML, true
	case ".csv":
		return SourceCSV, true
	case ".eml":
		return SourceEML, true
	}
	return "", false
}

type valueKind uint8

const (
	kindAbsent valueKind = iota
	kindText
	kindDecoded
)

// Value is a loosely-typed input field. It is either absent, raw text as read
// from a spreadsheet cell, or a JSON value that was already decoded upstream.
type Value struct {
	kind    valueKind
	text    string
	decoded any
}

func Text(s string) Value {
	return Value{kind: kindText, text: s}
}

// Decoded wraps an already-decoded JSON value. Strings are stored as Text and
// nil as absent.
func Decoded(v any) Value {
	switch t := v.(type) {
	case nil:
		return Value{}
	case string:
		return Text(t)
	default:
		return Value{kind: kindDecoded, decoded: v}
	}
}

func (v Value) IsAbsent() bool { return v.kind == kindAbsent }

func (v Value) AsText() (string, bool) {
	if v.kind != kindText {
		return "", false
	}
	return v.text, true
}

func (v Value) AsDecoded() (any, bool) {
	if v.kind != kindDecoded {
		return nil, false
	}
	return v.decoded, true
}

// Truthy reports whether the value counts as present for defaulting: absent,
// empty text, numeric zero and false do not.
func (v Value) Truthy() bool {
	switch v.kind {
	case kindText:
		return v.text != ""
	case kindDecoded:
		switch t := v.decoded.(type) {
		case bool:
			return t
		case float64:
			return t != 0
		case json.Number:
			f, err := t.Float64()
			return err != nil || f != 0
		}
		return true
	}
	return false
}

// String renders the value as display text. Decoded numbers use the shortest
// representation, other structured values their compact JSON form.
func (v Value) String() string {
	switch v.kind {
	case kindText:
		return v.text
	case kindDecoded:
		switch t := v.decoded.(type) {
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(t)
		case json.Number:
			return t.String()
		}
		blob, err := json.Marshal(v.decoded)
		if err != nil {
			return ""
		}
		return string(blob)
	}
	return ""
}

// OrEmpty returns String() for truthy values and "" otherwise.
func (v Value) OrEmpty() string {
	if !v.Truthy() {
		return ""
	}
	return v.String()
}

func (v *Value) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*v = Value{}
		return nil
	}
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*v = Decoded(decoded)
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case kindText:
		return json.Marshal(v.text)
	case kindDecoded:
		return json.Marshal(v.decoded)
	}
	return []byte("null"), nil
}

// InputRecord is one imported review row. Every field is optional.
type InputRecord struct {
	CheckedLabel Value `json:"checked_label"`
	ProjectPath  Value `json:"project_path"`
	Content      Value `json:"content"`
	GmtCreate    Value `json:"gmt_create"`
	Images       Value `json:"images"`
	TaskID       Value `json:"task_id"`
	ProjectName  Value `json:"project_name"`
	StoreCode    Value `json:"store_code"`
}

// Set assigns the field named by key and reports whether key is known.
func (r *InputRecord) Set(key string, v Value) bool {
	switch key {
	case "checked_label":
		r.CheckedLabel = v
	case "project_path":
		r.ProjectPath = v
	case "content":
		r.Content = v
	case "gmt_create":
		r.GmtCreate = v
	case "images":
		r.Images = v
	case "task_id":
		r.TaskID = v
	case "project_name":
		r.ProjectName = v
	case "store_code":
		r.StoreCode = v
	default:
		return false
	}
	return true
}

const (
	ResultQualified   = "合格"
	ResultUnqualified = "不合格"

	ReviewedMarker   = "已检查无误"
	ReviewedMarkerEN = "already checked, no issues"
)

// OutputRecord is the flat display row. Keys keep the label set the
// dashboard matches on.
type OutputRecord struct {
	GmtCreate       string `json:"gmt_create"`
	TaskID          string `json:"task_id"`
	ProjectName     string `json:"project_name"`
	AlgorithmName   string `json:"算法名称"`
	ImageLink       string `json:"图片链接"`
	ImageThumbnail  string `json:"图片缩略图"`
	DetectionResult string `json:"检测结果"`
	Description     string `json:"描述"`
	StoreCode       string `json:"store_code"`
}

var OutputColumns = []string{
	"gmt_create", "task_id", "project_name", "算法名称", "图片链接",
	"图片缩略图", "检测结果", "描述", "store_code",
}

// Values returns the record in OutputColumns order.
func (r OutputRecord) Values() []string {
	return []string{
		r.GmtCreate, r.TaskID, r.ProjectName, r.AlgorithmName, r.ImageLink,
		r.ImageThumbnail, r.DetectionResult, r.Description, r.StoreCode,
	}
}

type ImportRow struct {
	ID         int
	SourceType string
	SourceName string
	Hash       string
	RawRef     string
	TotalRows  int
	KeptRows   int
	Status     string
	CreatedAt  string
}

type SourceFile struct {
	Name string
	Path string
	Type SourceType
}
