package util

import (
	"regexp"
	"strings"
)

var (
	reSeparators = regexp.MustCompile(`[\s\-.]+`)
	reSpaces     = regexp.MustCompile(`\s+`)
)

// Header captions seen in exported review sheets, keyed by their normalized form.
var columnAliases = map[string]string{
	"checked":        "checked_label",
	"checkedlabel":   "checked_label",
	"review_status":  "checked_label",
	"检查标签":           "checked_label",
	"检查状态":           "checked_label",
	"projectpath":    "project_path",
	"path":           "project_path",
	"项目路径":           "project_path",
	"detection":      "content",
	"result_content": "content",
	"检测内容":           "content",
	"create_time":    "gmt_create",
	"created_at":     "gmt_create",
	"gmtcreate":      "gmt_create",
	"创建时间":           "gmt_create",
	"image":          "images",
	"image_url":      "images",
	"图片":             "images",
	"taskid":         "task_id",
	"task":           "task_id",
	"任务id":           "task_id",
	"projectname":    "project_name",
	"project":        "project_name",
	"项目名称":           "project_name",
	"storecode":      "store_code",
	"store":          "store_code",
	"门店编码":           "store_code",
}

// NormalizeColumnKey maps a header caption such as "Task ID" or "任务ID" to
// the snake_case field key it names.
func NormalizeColumnKey(header string) string {
	s := strings.TrimPrefix(header, "\ufeff")
	s = strings.ToLower(strings.TrimSpace(s))
	s = reSeparators.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if alias, ok := columnAliases[s]; ok {
		return alias
	}
	return s
}

func NormalizeSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
