package timetable

import "errors"

var errInvalidDay = errors.New("无法识别的星期代码")

// 上游活动代码 → 课程类型
var lessonTypes = map[string]string{
	"2": "Tutorial Type 2",
	"3": "Tutorial Type 3",
	"B": "Laboratory",
	"D": "Design Lecture",
	"E": "Seminar-Style Module Class",
	"L": "Lecture",
	"M": "Mini-Project",
	"O": "Others",
	"P": "Packaged Lecture",
	"Q": "Packaged Tutorial",
	"R": "Recitation",
	"S": "Sectional Teaching",
	"T": "Tutorial",
	"V": "Lecture On Demand",
	"W": "Workshop",
}

// 上游星期代码 → 星期名
var dayNames = map[string]string{
	"1": "Monday",
	"2": "Tuesday",
	"3": "Wednesday",
	"4": "Thursday",
	"5": "Friday",
	"6": "Saturday",
	"7": "Sunday",
}

var dayOrder = map[string]int{
	"Monday":    1,
	"Tuesday":   2,
	"Wednesday": 3,
	"Thursday":  4,
	"Friday":    5,
	"Saturday":  6,
	"Sunday":    7,
}

// UnknownZone 未标注分区的课程
const UnknownZone = "Unknown"

// DayName 星期代码或星期名 → 星期名；无法识别时返回 false
func DayName(day string) (string, bool) {
	if name, ok := dayNames[day]; ok {
		return name, true
	}
	if _, ok := dayOrder[day]; ok {
		return day, true
	}
	return "", false
}

// LessonType 活动代码 → 课程类型；未知代码原样返回
func LessonType(activity string) (string, bool) {
	if t, ok := lessonTypes[activity]; ok {
		return t, true
	}
	return activity, false
}

func dayIndex(day string) int {
	if i, ok := dayOrder[day]; ok {
		return i
	}
	return len(dayOrder) + 1
}
