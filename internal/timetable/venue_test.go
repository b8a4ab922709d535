package timetable

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"timetable-collator/internal/model"
)

func venueLesson(venue, start, end string) model.Lesson {
	return model.Lesson{
		ClassNo:    "1",
		LessonType: "Lecture",
		Weeks:      model.NumericWeeks([]int{1, 2, 3}),
		Day:        "Monday",
		StartTime:  start,
		EndTime:    end,
		Venue:      venue,
		CovidZone:  "A",
	}
}

func TestExtractVenueInfo_Availability(t *testing.T) {
	tt := model.Timetable{"CS1010": {venueLesson("LT19", "1830", "2030")}}

	info, aliases := ExtractVenueInfo(tt, map[string]string{"CS1010": "Programming Methodology"}, zap.NewNop())

	days := info["LT19"]
	if len(days) != 1 {
		t.Fatalf("期望 1 个 VenueDay，实际 %d", len(days))
	}
	want := model.Availability{
		"1830": model.Occupied,
		"1900": model.Occupied,
		"1930": model.Occupied,
		"2000": model.Occupied,
	}
	if diff := cmp.Diff(want, days[0].Availability); diff != "" {
		t.Errorf("占用时段不符 (-want +got):\n%s", diff)
	}
	if len(aliases) != 0 {
		t.Errorf("单一模块不应产生别名: %v", aliases)
	}
}

func TestExtractVenueInfo_UnalignedStart(t *testing.T) {
	tt := model.Timetable{"CS1010": {venueLesson("LT19", "0915", "1000")}}

	info, _ := ExtractVenueInfo(tt, nil, zap.NewNop())

	want := model.Availability{"0900": model.Occupied, "0930": model.Occupied}
	if diff := cmp.Diff(want, info["LT19"][0].Availability); diff != "" {
		t.Errorf("占用时段不符 (-want +got):\n%s", diff)
	}
}

func TestExtractVenueInfo_EmptyVenue(t *testing.T) {
	tt := model.Timetable{"CS1010": {venueLesson("", "1000", "1200")}}

	info, _ := ExtractVenueInfo(tt, nil, zap.NewNop())

	if len(info) != 0 {
		t.Errorf("空场地不应产生任何条目: %v", info.Venues())
	}
	if _, ok := info[""]; ok {
		t.Error("不应出现空字符串场地")
	}
}

func TestExtractVenueInfo_SameTitleMerged(t *testing.T) {
	tt := model.Timetable{
		"GEA1000":  {venueLesson("LT27", "1000", "1200")},
		"GEA1000N": {venueLesson("LT27", "1000", "1200")},
	}
	titles := map[string]string{
		"GEA1000":  "Quantitative Reasoning with Data",
		"GEA1000N": "Quantitative Reasoning with Data",
	}

	info, aliases := ExtractVenueInfo(tt, titles, zap.NewNop())

	classes := info["LT27"][0].Classes
	if len(classes) != 1 {
		t.Fatalf("期望合并为 1 节课，实际 %d", len(classes))
	}
	if classes[0].ModuleCode != "GEA1000/GEA1000N" {
		t.Errorf("复合代码不符: %q", classes[0].ModuleCode)
	}

	want := map[string][]string{
		"GEA1000":  {"GEA1000N"},
		"GEA1000N": {"GEA1000"},
	}
	if diff := cmp.Diff(want, aliases.Lists()); diff != "" {
		t.Errorf("别名不符 (-want +got):\n%s", diff)
	}
}

func TestExtractVenueInfo_MergeDroppingDuplicateLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	tt := model.Timetable{
		"GEA1000":  {venueLesson("LT27", "1000", "1200"), venueLesson("LT27", "1000", "1200")},
		"GEA1000N": {venueLesson("LT27", "1000", "1200")},
	}
	titles := map[string]string{
		"GEA1000":  "Quantitative Reasoning with Data",
		"GEA1000N": "Quantitative Reasoning with Data",
	}

	info, _ := ExtractVenueInfo(tt, titles, zap.New(core))

	if n := len(info["LT27"][0].Classes); n != 1 {
		t.Fatalf("期望合并为 1 节课，实际 %d", n)
	}
	entries := logs.FilterMessage("跨列合并时丢弃了同一模块的重复课程").All()
	if len(entries) != 1 {
		t.Fatalf("期望 1 条丢弃日志，实际 %d", len(entries))
	}
	if n := entries[0].ContextMap()["lessons"]; n != int64(3) {
		t.Errorf("日志中的课程数不符: %v", n)
	}
}

func TestExtractVenueInfo_DifferentTitlesNotAliased(t *testing.T) {
	tt := model.Timetable{
		"CS1010": {venueLesson("LT27", "1000", "1200")},
		"MA1521": {venueLesson("LT27", "1000", "1200")},
	}
	titles := map[string]string{
		"CS1010": "Programming Methodology",
		"MA1521": "Calculus for Computing",
	}

	info, aliases := ExtractVenueInfo(tt, titles, zap.NewNop())

	if len(aliases) != 0 {
		t.Errorf("标题不同不应产生别名: %v", aliases.Lists())
	}
	classes := info["LT27"][0].Classes
	if len(classes) != 2 {
		t.Fatalf("标题不同的课程应保持独立，实际 %d 节", len(classes))
	}
	if classes[0].ModuleCode != "CS1010" || classes[1].ModuleCode != "MA1521" {
		t.Errorf("课程顺序不符: %q, %q", classes[0].ModuleCode, classes[1].ModuleCode)
	}
}

func TestExtractVenueInfo_DaysSorted(t *testing.T) {
	fri := venueLesson("LT19", "1000", "1100")
	fri.Day = "Friday"
	mon := venueLesson("LT19", "1400", "1500")
	late := venueLesson("LT19", "0800", "0900")
	tt := model.Timetable{"CS1010": {fri, mon}, "CS1231": {late}}

	info, _ := ExtractVenueInfo(tt, nil, zap.NewNop())

	days := info["LT19"]
	if len(days) != 2 || days[0].Day != "Monday" || days[1].Day != "Friday" {
		t.Fatalf("星期顺序不符: %+v", days)
	}
	if days[0].Classes[0].StartTime != "0800" {
		t.Errorf("课程应按开始时间排序: %+v", days[0].Classes)
	}
}
