package timetable

import (
	"context"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"timetable-collator/internal/calendar"
	"timetable-collator/internal/model"
)

// ── 课程去重 ──────────────────────────────────────────────
//
// 上游按"日期"逐条返回上课记录。相同 (activity, group, day, start, end, room)
// 的记录属于同一节循环课程，日期与 session 不参与判定（它们随日期/教师变化）。
// 结构无效的课程（缺少起止时间、起止相同等）计为无效并排除，但模块仍记为
// 本学期开课，以便后续步骤知道该模块存在。
//
// Deduplicator 不是并发安全的，由单个 goroutine 推送事件。
// ─────────────────────────────────────────────────────────────

type lessonKey struct {
	activity string
	group    string
	day      string
	start    string
	end      string
	room     string
}

type pendingLesson struct {
	first model.RawLessonEvent
	dates []string
	size  int
}

// DedupeStats 去重结构统计
type DedupeStats struct {
	Events  int `json:"events"`
	Valid   int `json:"valid"`
	Invalid int `json:"invalid"`
	Dropped int `json:"dropped"` // 缺少模块代码，无法归属
	Modules int `json:"modules"`
}

// Deduplicator 将单次上课记录归并为循环课程
type Deduplicator struct {
	cal      *calendar.Calendar
	acadYear string
	semester int
	logger   *zap.Logger
	validate *validator.Validate

	lessons map[string]map[lessonKey]*pendingLesson
	order   map[string][]lessonKey
	invalid map[string]map[lessonKey]struct{}
	offered map[string]struct{}
	stats   DedupeStats
}

// NewDeduplicator 创建单学期的课程去重器
func NewDeduplicator(cal *calendar.Calendar, acadYear string, semester int, logger *zap.Logger) *Deduplicator {
	return &Deduplicator{
		cal:      cal,
		acadYear: acadYear,
		semester: semester,
		logger:   logger,
		validate: validator.New(),
		lessons:  make(map[string]map[lessonKey]*pendingLesson),
		order:    make(map[string][]lessonKey),
		invalid:  make(map[string]map[lessonKey]struct{}),
		offered:  make(map[string]struct{}),
	}
}

// Add 推送一条上课记录，可直接作为上游流式回调
func (d *Deduplicator) Add(ev model.RawLessonEvent) {
	d.stats.Events++
	ev = normalizeEvent(ev)

	if ev.Module == "" {
		d.stats.Dropped++
		d.logger.Error("上课记录缺少模块代码", zap.String("activity", ev.Activity), zap.String("group", ev.Group))
		return
	}
	d.offered[ev.Module] = struct{}{}

	key := lessonKey{
		activity: ev.Activity,
		group:    ev.Group,
		day:      ev.Day,
		start:    ev.StartTime,
		end:      ev.EndTime,
		room:     roomOf(ev),
	}

	if err := d.check(ev); err != nil {
		set, ok := d.invalid[ev.Module]
		if !ok {
			set = make(map[lessonKey]struct{})
			d.invalid[ev.Module] = set
		}
		if _, seen := set[key]; !seen {
			set[key] = struct{}{}
			d.stats.Invalid++
			d.logger.Warn("课程结构无效，已排除",
				zap.String("module", ev.Module),
				zap.String("group", ev.Group),
				zap.String("start", ev.StartTime),
				zap.String("end", ev.EndTime),
				zap.Error(err),
			)
		}
		return
	}

	byKey, ok := d.lessons[ev.Module]
	if !ok {
		byKey = make(map[lessonKey]*pendingLesson)
		d.lessons[ev.Module] = byKey
	}
	p, ok := byKey[key]
	if !ok {
		p = &pendingLesson{first: ev}
		byKey[key] = p
		d.order[ev.Module] = append(d.order[ev.Module], key)
	}
	p.dates = append(p.dates, ev.EventDate)
	if ev.Size > p.size {
		p.size = ev.Size
	}
}

// Consume 从 channel 读取上课记录直到关闭或 ctx 取消
func (d *Deduplicator) Consume(ctx context.Context, events <-chan model.RawLessonEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			d.Add(ev)
		}
	}
}

// Timetable 生成本学期课表；只有无效课程的模块对应空列表
func (d *Deduplicator) Timetable() model.Timetable {
	tt := make(model.Timetable, len(d.offered))
	for code := range d.offered {
		lessons := make([]model.Lesson, 0, len(d.order[code]))
		for _, key := range d.order[code] {
			lessons = append(lessons, d.buildLesson(code, d.lessons[code][key]))
		}
		sortLessons(lessons)
		tt[code] = lessons
	}
	return tt
}

// Offered 本学期出现过的模块代码（含仅有无效课程的模块）
func (d *Deduplicator) Offered() map[string]struct{} {
	out := make(map[string]struct{}, len(d.offered))
	for code := range d.offered {
		out[code] = struct{}{}
	}
	return out
}

// Stats 返回结构统计
func (d *Deduplicator) Stats() DedupeStats {
	s := d.stats
	s.Modules = len(d.offered)
	s.Valid = 0
	for _, keys := range d.order {
		s.Valid += len(keys)
	}
	return s
}

func (d *Deduplicator) check(ev model.RawLessonEvent) error {
	if err := d.validate.Struct(ev); err != nil {
		return err
	}
	if _, ok := DayName(ev.Day); !ok {
		return errInvalidDay
	}
	return nil
}

func (d *Deduplicator) buildLesson(code string, p *pendingLesson) model.Lesson {
	ev := p.first
	lessonType, known := LessonType(ev.Activity)
	if !known {
		d.logger.Warn("未知的活动代码", zap.String("module", code), zap.String("activity", ev.Activity))
	}
	day, _ := DayName(ev.Day)
	classNo := strings.TrimPrefix(ev.Group, ev.Activity)
	if classNo == "" {
		classNo = ev.Group
	}
	zone := ev.Zone
	if zone == "" {
		zone = UnknownZone
	}

	lessonLogger := d.logger.With(
		zap.String("module", code),
		zap.String("lessonType", lessonType),
		zap.String("classNo", classNo),
	)

	return model.Lesson{
		ClassNo:    classNo,
		LessonType: lessonType,
		Weeks:      CompressWeeks(d.cal, d.acadYear, d.semester, p.dates, lessonLogger),
		Day:        day,
		StartTime:  ev.StartTime,
		EndTime:    ev.EndTime,
		Venue:      roomOf(ev),
		Size:       p.size,
		CovidZone:  zone,
	}
}

// ── 辅助函数 ──

func normalizeEvent(ev model.RawLessonEvent) model.RawLessonEvent {
	ev.Module = strings.TrimSpace(ev.Module)
	ev.Activity = strings.TrimSpace(ev.Activity)
	ev.Group = strings.TrimSpace(ev.Group)
	ev.Day = strings.TrimSpace(ev.Day)
	ev.StartTime = strings.TrimSpace(ev.StartTime)
	ev.EndTime = strings.TrimSpace(ev.EndTime)
	ev.EventDate = strings.TrimSpace(ev.EventDate)
	ev.Zone = strings.TrimSpace(ev.Zone)
	if ev.Room != nil {
		room := strings.TrimSpace(*ev.Room)
		ev.Room = &room
	}
	return ev
}

func roomOf(ev model.RawLessonEvent) string {
	if ev.Room == nil {
		return ""
	}
	return *ev.Room
}

func sortLessons(lessons []model.Lesson) {
	sort.SliceStable(lessons, func(i, j int) bool {
		a, b := lessons[i], lessons[j]
		if a.LessonType != b.LessonType {
			return a.LessonType < b.LessonType
		}
		if a.ClassNo != b.ClassNo {
			return a.ClassNo < b.ClassNo
		}
		if dayIndex(a.Day) != dayIndex(b.Day) {
			return dayIndex(a.Day) < dayIndex(b.Day)
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		return a.Venue < b.Venue
	})
}
