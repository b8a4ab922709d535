package calendar

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"time"
)

// ── 校历 ──────────────────────────────────────────────────
//
// 每个学年包含 4 个学期：1、2 为常规学期，3、4 为特别学期。
// 仅需记录各学期第 1 教学周的周一，其余周次按固定结构推算：
//   - 学期 1/2：偏移 -1 周（仅学期 1）迎新周，0-5 为第 1-6 周，6 为休息周，
//     7-13 为第 7-13 周，14 为温书周，15-16 为考试周
//   - 学期 3/4：0-5 为第 1-6 周，6 为考试周
//   - 其余日期均视为假期，归属于最近一个已开始的学期
// ─────────────────────────────────────────────────────────────

// DateLayout 日期格式
const DateLayout = "2006-01-02"

// WeekType 周类型
type WeekType string

const (
	Orientation   WeekType = "Orientation"
	Instructional WeekType = "Instructional"
	Recess        WeekType = "Recess"
	Reading       WeekType = "Reading"
	Examination   WeekType = "Examination"
	Vacation      WeekType = "Vacation"
)

// WeekInfo 某一日期所在的校历周
type WeekInfo struct {
	AcadYear string
	Semester int
	Type     WeekType
	Num      int // 仅教学周有效
}

// IsInstructional 是否为指定学期的教学周
func (w WeekInfo) IsInstructional(semester int) bool {
	return w.Type == Instructional && w.Semester == semester
}

// builtinStarts 各学年 4 个学期第 1 教学周的周一
var builtinStarts = map[string][4]string{
	"2023/2024": {"2023-08-14", "2024-01-15", "2024-05-13", "2024-06-24"},
	"2024/2025": {"2024-08-12", "2025-01-13", "2025-05-12", "2025-06-23"},
	"2025/2026": {"2025-08-11", "2026-01-12", "2026-05-11", "2026-06-22"},
	"2026/2027": {"2026-08-10", "2027-01-11", "2027-05-10", "2027-06-21"},
}

var overrideKeyPattern = regexp.MustCompile(`^(\d{4}/\d{4})-([1-4])$`)

type semesterStart struct {
	acadYear string
	semester int
	start    time.Time
}

// Calendar 学年校历
type Calendar struct {
	starts []semesterStart // 按开始日期升序
}

// New 以内置校历为基础构建，overrides 的 key 形如 "2025/2026-1"
func New(overrides map[string]string) (*Calendar, error) {
	table := make(map[string][4]time.Time, len(builtinStarts))
	for year, dates := range builtinStarts {
		var parsed [4]time.Time
		for i, d := range dates {
			t, err := time.Parse(DateLayout, d)
			if err != nil {
				return nil, fmt.Errorf("内置校历日期无效 %s: %w", d, err)
			}
			parsed[i] = t
		}
		table[year] = parsed
	}

	for key, value := range overrides {
		m := overrideKeyPattern.FindStringSubmatch(key)
		if m == nil {
			return nil, fmt.Errorf("校历覆盖项 key 无效: %q", key)
		}
		t, err := time.Parse(DateLayout, value)
		if err != nil {
			return nil, fmt.Errorf("校历覆盖项 %s 日期无效: %w", key, err)
		}
		if t.Weekday() != time.Monday {
			return nil, fmt.Errorf("校历覆盖项 %s 应为周一，实际为 %s", key, t.Weekday())
		}
		sem, _ := strconv.Atoi(m[2])
		row := table[m[1]]
		row[sem-1] = t
		table[m[1]] = row
	}

	c := &Calendar{}
	for year, row := range table {
		for i, t := range row {
			if t.IsZero() {
				continue
			}
			c.starts = append(c.starts, semesterStart{acadYear: year, semester: i + 1, start: t})
		}
	}
	sort.Slice(c.starts, func(i, j int) bool { return c.starts[i].start.Before(c.starts[j].start) })
	return c, nil
}

// WeekInfo 计算日期所在的校历周
// 相邻学期区间重叠时（如特别学期考试周与下一学年迎新周）以较晚开始的学期为准
func (c *Calendar) WeekInfo(date time.Time) WeekInfo {
	d := truncateDay(date)
	var last *semesterStart
	for i := len(c.starts) - 1; i >= 0; i-- {
		s := &c.starts[i]
		w := floorDiv(daysBetween(s.start, d), 7)
		if info, ok := classify(s, w); ok {
			return info
		}
		if last == nil && !d.Before(s.start) {
			last = s
		}
	}
	if last == nil {
		return WeekInfo{Type: Vacation}
	}
	return WeekInfo{AcadYear: last.acadYear, Semester: last.semester, Type: Vacation}
}

// WeekInfoOn 解析 YYYY-MM-DD 后计算校历周
func (c *Calendar) WeekInfoOn(date string) (WeekInfo, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return WeekInfo{}, fmt.Errorf("日期格式无效 %q: %w", date, err)
	}
	return c.WeekInfo(t), nil
}

func classify(s *semesterStart, w int) (WeekInfo, bool) {
	info := WeekInfo{AcadYear: s.acadYear, Semester: s.semester}
	if s.semester >= 3 {
		switch {
		case w >= 0 && w <= 5:
			info.Type, info.Num = Instructional, w+1
		case w == 6:
			info.Type = Examination
		default:
			return WeekInfo{}, false
		}
		return info, true
	}

	switch {
	case w == -1 && s.semester == 1:
		info.Type = Orientation
	case w >= 0 && w <= 5:
		info.Type, info.Num = Instructional, w+1
	case w == 6:
		info.Type = Recess
	case w >= 7 && w <= 13:
		info.Type, info.Num = Instructional, w
	case w == 14:
		info.Type = Reading
	case w == 15 || w == 16:
		info.Type = Examination
	default:
		return WeekInfo{}, false
	}
	return info, true
}

// ── 辅助函数 ──

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daysBetween 返回 b - a 的整天数（均按 UTC 日期计算，不受夏令时影响）
func daysBetween(a, b time.Time) int {
	return int(truncateDay(b).Sub(truncateDay(a)).Hours() / 24)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
