package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RawLessonEvent 上游课表接口返回的单次上课记录（某一天的一次课）
// 仅由 LessonDeduplicator 消费
type RawLessonEvent struct {
	Module    string  `json:"module"     validate:"required"`
	Activity  string  `json:"activity"`
	Group     string  `json:"modgrp"`
	Day       string  `json:"day"        validate:"required"`
	StartTime string  `json:"start_time" validate:"required,len=4,numeric"`
	EndTime   string  `json:"end_time"   validate:"required,len=4,numeric,nefield=StartTime"`
	Room      *string `json:"room"`
	EventDate string  `json:"eventdate"  validate:"required,datetime=2006-01-02"`
	Size      int     `json:"csize"`
	Session   string  `json:"session"`
	Zone      string  `json:"zone"`
	Term      string  `json:"term"`
}

// Lesson 循环上课时段（讲座 / 辅导 / 实验等）
type Lesson struct {
	ClassNo    string `json:"classNo"`
	LessonType string `json:"lessonType"`
	Weeks      Weeks  `json:"weeks"`
	Day        string `json:"day"`
	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime"`
	Venue      string `json:"venue"`
	Size       int    `json:"size,omitempty"`
	CovidZone  string `json:"covidZone"`
}

// Timetable 单学期课表：模块代码 → 有序 Lesson 列表
type Timetable map[string][]Lesson

// ── Weeks 联合类型 ──

// WeekRange 非标准教学周的上课区间
type WeekRange struct {
	Start    string `json:"start"` // YYYY-MM-DD
	End      string `json:"end"`
	Interval int    `json:"weekInterval,omitempty"`
	Weeks    []int  `json:"weeks,omitempty"` // 相对 Start 的周次（1-based），仅在间隔不规则时填写
}

// Weeks 二选一：标准教学周编号列表，或 WeekRange
type Weeks struct {
	Numeric []int
	Range   *WeekRange
}

// NumericWeeks 构造教学周编号形式
func NumericWeeks(weeks []int) Weeks {
	if weeks == nil {
		weeks = []int{}
	}
	return Weeks{Numeric: weeks}
}

// RangeWeeks 构造区间形式
func RangeWeeks(r WeekRange) Weeks {
	return Weeks{Range: &r}
}

// IsNumeric 是否为教学周编号形式
func (w Weeks) IsNumeric() bool { return w.Range == nil }

// MarshalJSON 编号形式输出数组，区间形式输出对象
func (w Weeks) MarshalJSON() ([]byte, error) {
	if w.Range != nil {
		return json.Marshal(w.Range)
	}
	if w.Numeric == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(w.Numeric)
}

// UnmarshalJSON 按首字符区分数组与对象
func (w *Weeks) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("weeks: 空值")
	}
	switch data[0] {
	case '[':
		var nums []int
		if err := json.Unmarshal(data, &nums); err != nil {
			return fmt.Errorf("weeks: %w", err)
		}
		*w = NumericWeeks(nums)
	case '{':
		var r WeekRange
		if err := json.Unmarshal(data, &r); err != nil {
			return fmt.Errorf("weeks: %w", err)
		}
		*w = RangeWeeks(r)
	default:
		return fmt.Errorf("weeks: 无法识别的 JSON %q", string(data))
	}
	return nil
}
