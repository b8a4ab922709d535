package calendar

import (
	"fmt"
	"regexp"
	"strconv"
)

var (
	acadYearPattern = regexp.MustCompile(`^(\d{4})/(\d{4})$`)
	termPattern     = regexp.MustCompile(`^(\d{2})([1-4])0$`)
)

// TermCode 学年 + 学期 → 上游学期代码，如 ("2024/2025", 1) → "2410"
func TermCode(acadYear string, semester int) (string, error) {
	m := acadYearPattern.FindStringSubmatch(acadYear)
	if m == nil {
		return "", fmt.Errorf("学年格式无效: %q", acadYear)
	}
	if semester < 1 || semester > 4 {
		return "", fmt.Errorf("学期无效: %d", semester)
	}
	year, _ := strconv.Atoi(m[1])
	return fmt.Sprintf("%02d%d0", year%100, semester), nil
}

// AcadYearFromTerm 上游学期代码 → 学年，如 "2410" → "2024/2025"
func AcadYearFromTerm(term string) (string, error) {
	m := termPattern.FindStringSubmatch(term)
	if m == nil {
		return "", fmt.Errorf("学期代码无效: %q", term)
	}
	yy, _ := strconv.Atoi(m[1])
	year := 2000 + yy
	return fmt.Sprintf("%d/%d", year, year+1), nil
}

// SemesterFromTerm 上游学期代码 → 学期序号
func SemesterFromTerm(term string) (int, error) {
	m := termPattern.FindStringSubmatch(term)
	if m == nil {
		return 0, fmt.Errorf("学期代码无效: %q", term)
	}
	sem, _ := strconv.Atoi(m[2])
	return sem, nil
}
