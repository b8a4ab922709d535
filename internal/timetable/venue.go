package timetable

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"timetable-collator/internal/model"
)

// CompositeSeparator 多代码合并课程的模块代码分隔符
const CompositeSeparator = "/"

type slotKey struct {
	start      string
	end        string
	classNo    string
	lessonType string
}

// ExtractVenueInfo 按场地、星期归组课程，计算半小时占用，并识别跨列模块
//
// 同一场地同一天中 start/end/classNo/lessonType 完全相同、模块代码不同、
// 标题也相同的课程视为同一节课：合并为复合代码课程，并两两记录别名。
// 标题不同或缺失的课程保持独立，不产生别名。
func ExtractVenueInfo(tt model.Timetable, titles map[string]string, logger *zap.Logger) (model.VenueInfo, model.AliasSet) {
	byVenue := make(map[string]map[string][]model.VenueLesson)
	for _, code := range sortedCodes(tt) {
		for _, lesson := range tt[code] {
			if lesson.Venue == "" {
				continue
			}
			days, ok := byVenue[lesson.Venue]
			if !ok {
				days = make(map[string][]model.VenueLesson)
				byVenue[lesson.Venue] = days
			}
			days[lesson.Day] = append(days[lesson.Day], model.VenueLesson{Lesson: lesson, ModuleCode: code})
		}
	}

	info := make(model.VenueInfo, len(byVenue))
	aliases := make(model.AliasSet)
	for venue, days := range byVenue {
		list := make([]model.VenueDay, 0, len(days))
		for day, lessons := range days {
			dayLogger := logger.With(zap.String("venue", venue), zap.String("day", day))
			classes := mergeCrossListed(lessons, titles, aliases, dayLogger)
			sort.SliceStable(classes, func(i, j int) bool {
				if classes[i].StartTime != classes[j].StartTime {
					return classes[i].StartTime < classes[j].StartTime
				}
				return classes[i].ModuleCode < classes[j].ModuleCode
			})
			list = append(list, model.VenueDay{
				Day:          day,
				Classes:      classes,
				Availability: occupancy(classes, dayLogger),
			})
		}
		sort.Slice(list, func(i, j int) bool { return dayIndex(list[i].Day) < dayIndex(list[j].Day) })
		info[venue] = list
	}
	return info, aliases
}

// mergeCrossListed 合并同一时段内的跨列课程，别名记录到 aliases
func mergeCrossListed(lessons []model.VenueLesson, titles map[string]string, aliases model.AliasSet, logger *zap.Logger) []model.VenueLesson {
	slots := make(map[slotKey][]model.VenueLesson)
	var order []slotKey
	for _, l := range lessons {
		k := slotKey{start: l.StartTime, end: l.EndTime, classNo: l.ClassNo, lessonType: l.LessonType}
		if _, ok := slots[k]; !ok {
			order = append(order, k)
		}
		slots[k] = append(slots[k], l)
	}

	out := make([]model.VenueLesson, 0, len(lessons))
	for _, k := range order {
		group := slots[k]
		if len(distinctCodes(group)) < 2 {
			out = append(out, group...)
			continue
		}

		// 按标题分桶，只有标题相同的代码才合并
		buckets := make(map[string][]model.VenueLesson)
		var titleOrder []string
		for _, l := range group {
			title := titles[l.ModuleCode]
			if title == "" {
				out = append(out, l)
				continue
			}
			if _, ok := buckets[title]; !ok {
				titleOrder = append(titleOrder, title)
			}
			buckets[title] = append(buckets[title], l)
		}
		for _, title := range titleOrder {
			bucket := buckets[title]
			codes := distinctCodes(bucket)
			if len(codes) < 2 {
				out = append(out, bucket...)
				continue
			}
			for i := range codes {
				for j := i + 1; j < len(codes); j++ {
					aliases.Link(codes[i], codes[j])
				}
			}
			if len(bucket) > len(codes) {
				// 同一模块在该时段有多条记录（不同分组去前缀后班号相同），合并后只保留一条
				logger.Warn("跨列合并时丢弃了同一模块的重复课程",
					zap.Strings("modules", codes),
					zap.String("start", k.start),
					zap.String("class_no", k.classNo),
					zap.Int("lessons", len(bucket)),
				)
			}
			merged := bucket[0]
			merged.ModuleCode = strings.Join(codes, CompositeSeparator)
			out = append(out, merged)
		}
	}
	return out
}

// occupancy 以半小时为粒度标记 [start, end) 内的占用时段
func occupancy(classes []model.VenueLesson, logger *zap.Logger) model.Availability {
	avail := make(model.Availability)
	for _, c := range classes {
		start, err := parseHHMM(c.StartTime)
		if err != nil {
			logger.Warn("课程开始时间无效", zap.String("module", c.ModuleCode), zap.Error(err))
			continue
		}
		end, err := parseHHMM(c.EndTime)
		if err != nil {
			logger.Warn("课程结束时间无效", zap.String("module", c.ModuleCode), zap.Error(err))
			continue
		}
		for m := start - start%30; m < end; m += 30 {
			avail[fmt.Sprintf("%02d%02d", m/60, m%60)] = model.Occupied
		}
	}
	return avail
}

// ── 辅助函数 ──

// parseHHMM "HHMM" → 当天分钟数
func parseHHMM(s string) (int, error) {
	if len(s) != 4 {
		return 0, fmt.Errorf("时间格式应为 HHMM: %q", s)
	}
	h, err := strconv.Atoi(s[:2])
	if err != nil {
		return 0, fmt.Errorf("时间格式应为 HHMM: %q", s)
	}
	m, err := strconv.Atoi(s[2:])
	if err != nil {
		return 0, fmt.Errorf("时间格式应为 HHMM: %q", s)
	}
	if h > 24 || m > 59 {
		return 0, fmt.Errorf("时间超出范围: %q", s)
	}
	return h*60 + m, nil
}

func distinctCodes(lessons []model.VenueLesson) []string {
	seen := make(map[string]struct{}, len(lessons))
	codes := make([]string, 0, len(lessons))
	for _, l := range lessons {
		if _, ok := seen[l.ModuleCode]; ok {
			continue
		}
		seen[l.ModuleCode] = struct{}{}
		codes = append(codes, l.ModuleCode)
	}
	sort.Strings(codes)
	return codes
}

func sortedCodes(tt model.Timetable) []string {
	codes := make([]string, 0, len(tt))
	for code := range tt {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
