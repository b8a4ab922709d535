package collate

import (
	"regexp"
	"strconv"

	"timetable-collator/internal/model"
)

// 5 个非负数（可含小数），以 ASCII 连字符或 Unicode 连字符/破折号分隔，末尾可附括号备注
var workloadPattern = regexp.MustCompile(
	`^\s*(\d+(?:\.\d+)?)\s*[-‐‑‒–—−]\s*(\d+(?:\.\d+)?)\s*[-‐‑‒–—−]\s*(\d+(?:\.\d+)?)\s*[-‐‑‒–—−]\s*(\d+(?:\.\d+)?)\s*[-‐‑‒–—−]\s*(\d+(?:\.\d+)?)\s*(?:\(.*\))?\s*$`,
)

// ParseWorkload 解析 "A-B-C-D-E" 形式的每周学时
// 格式不符（"NA-NA-NA-NA-10"、文字描述、分量个数不对等）时原样保留字符串
func ParseWorkload(s string) model.Workload {
	m := workloadPattern.FindStringSubmatch(s)
	if m == nil {
		return model.Workload{Raw: s}
	}
	hours := make([]float64, 5)
	for i := range hours {
		v, err := strconv.ParseFloat(m[i+1], 64)
		if err != nil {
			return model.Workload{Raw: s}
		}
		hours[i] = v
	}
	return model.Workload{Hours: hours}
}
