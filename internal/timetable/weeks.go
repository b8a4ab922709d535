package timetable

import (
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"timetable-collator/internal/calendar"
	"timetable-collator/internal/model"
)

// ── 周次压缩 ──────────────────────────────────────────────
//
// 将一节循环课程的所有上课日期压缩为：
//   - 教学周编号列表：全部日期都落在目标学期的教学周内
//   - WeekRange：其余情况，保留首尾日期，固定间隔（非每周）时给出 weekInterval，
//     间隔不规则时给出相对首日的周次列表
//
// 数据异常（重复日期、非同一星期几）只记录错误日志，仍尽量给出结果。
// ─────────────────────────────────────────────────────────────

// CompressWeeks 压缩上课日期；acadYear 为空时不校验学年
func CompressWeeks(cal *calendar.Calendar, acadYear string, semester int, dates []string, logger *zap.Logger) model.Weeks {
	days := parseDates(dates, logger)
	if len(days) == 0 {
		logger.Error("无有效上课日期", zap.Strings("dates", dates))
		return model.NumericWeeks(nil)
	}

	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	days = dedupeDates(days, logger)

	if weeks, ok := instructionalWeeks(cal, acadYear, semester, days); ok {
		return model.NumericWeeks(weeks)
	}
	return model.RangeWeeks(weekRange(days, logger))
}

// instructionalWeeks 全部日期都是目标学期的教学周时返回周次编号
func instructionalWeeks(cal *calendar.Calendar, acadYear string, semester int, days []time.Time) ([]int, bool) {
	weeks := make([]int, 0, len(days))
	for _, d := range days {
		info := cal.WeekInfo(d)
		if !info.IsInstructional(semester) {
			return nil, false
		}
		if acadYear != "" && info.AcadYear != acadYear {
			return nil, false
		}
		if len(weeks) > 0 && weeks[len(weeks)-1] == info.Num {
			continue
		}
		weeks = append(weeks, info.Num)
	}
	return weeks, true
}

func weekRange(days []time.Time, logger *zap.Logger) model.WeekRange {
	first, last := days[0], days[len(days)-1]
	r := model.WeekRange{
		Start: first.Format(calendar.DateLayout),
		End:   last.Format(calendar.DateLayout),
	}
	if len(days) == 1 {
		return r
	}

	offsets := make([]float64, len(days))
	for i, d := range days {
		offsets[i] = d.Sub(first).Hours() / 24 / 7
	}

	deltas := make([]float64, 0, len(days)-1)
	integral := true
	for i := 1; i < len(offsets); i++ {
		delta := offsets[i] - offsets[i-1]
		if delta != math.Trunc(delta) {
			integral = false
		}
		deltas = append(deltas, delta)
	}
	if !integral {
		logger.Error("上课日期不在同一星期几", zap.Strings("dates", formatDates(days)))
	}

	allEqual := true
	for _, d := range deltas[1:] {
		if d != deltas[0] {
			allEqual = false
			break
		}
	}

	switch {
	case allEqual && deltas[0] == 1:
		// 每周一次，首尾日期即可还原
	case allEqual && integral:
		r.Interval = int(deltas[0])
	case allEqual:
		// 等间隔但不是整周，周序号无法表达真实间隔，只保留首尾日期并依赖上面的错误日志
	default:
		r.Weeks = make([]int, len(offsets))
		for i, off := range offsets {
			r.Weeks[i] = int(math.Floor(off)) + 1
		}
	}
	return r
}

// ── 辅助函数 ──

func parseDates(dates []string, logger *zap.Logger) []time.Time {
	days := make([]time.Time, 0, len(dates))
	for _, s := range dates {
		t, err := time.Parse(calendar.DateLayout, s)
		if err != nil {
			logger.Error("上课日期格式无效", zap.String("date", s), zap.Error(err))
			continue
		}
		days = append(days, t)
	}
	return days
}

// dedupeDates 要求输入已排序；重复日期说明上游数据有误
func dedupeDates(days []time.Time, logger *zap.Logger) []time.Time {
	out := days[:1]
	var dups []string
	for _, d := range days[1:] {
		if d.Equal(out[len(out)-1]) {
			dups = append(dups, d.Format(calendar.DateLayout))
			continue
		}
		out = append(out, d)
	}
	if len(dups) > 0 {
		logger.Error("上课日期存在重复", zap.Strings("duplicates", dups))
	}
	return out
}

func formatDates(days []time.Time) []string {
	out := make([]string, len(days))
	for i, d := range days {
		out[i] = d.Format(calendar.DateLayout)
	}
	return out
}
