package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ── 上游原始记录 ──

// OrgRef 上游组织引用（学院 / 部门）
type OrgRef struct {
	Code        string `json:"Code"`
	Description string `json:"Description"`
}

// RawModuleAttribute 上游模块属性
type RawModuleAttribute struct {
	Code  string `json:"CourseAttribute"`
	Value string `json:"CourseAttributeValue"`
}

// RawModuleInfo 上游按部门返回的模块描述信息
type RawModuleInfo struct {
	Term                 string               `json:"Term"`
	AcademicOrganisation OrgRef               `json:"AcademicOrganisation"`
	AcademicGroup        OrgRef               `json:"AcademicGroup"`
	Subject              string               `json:"Subject"`
	CatalogNumber        string               `json:"CatalogNumber"`
	CourseTitle          string               `json:"CourseTitle"`
	Description          string               `json:"Description"`
	ModularCredit        string               `json:"ModularCredit"`
	WorkLoadHours        string               `json:"WorkLoadHours"`
	PreRequisite         string               `json:"PreRequisite"`
	CoRequisite          string               `json:"CoRequisite"`
	Preclusion           string               `json:"Preclusion"`
	ModuleAttributes     []RawModuleAttribute `json:"ModuleAttributes"`
}

// ModuleCode 模块代码 = Subject + CatalogNumber
func (r RawModuleInfo) ModuleCode() string {
	return r.Subject + r.CatalogNumber
}

// RawExam 上游考试记录
type RawExam struct {
	Module    string `json:"module"     validate:"required"`
	ExamDate  string `json:"exam_date"  validate:"required,datetime=2006-01-02"`
	StartTime string `json:"start_time" validate:"required,datetime=15:04"`
	Duration  int    `json:"duration"   validate:"gt=0"`
}

// ExamInfo 考试时间（RFC3339 UTC）与时长（分钟）
type ExamInfo struct {
	ExamDate     string `json:"examDate"`
	ExamDuration int    `json:"examDuration"`
}

// ── Workload ──

// Workload 每周学时 5 元组；无法解析时保留原始字符串
type Workload struct {
	Hours []float64
	Raw   string
}

func (w Workload) MarshalJSON() ([]byte, error) {
	if w.Hours != nil {
		return json.Marshal(w.Hours)
	}
	return json.Marshal(w.Raw)
}

func (w *Workload) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var hours []float64
		if err := json.Unmarshal(data, &hours); err != nil {
			return fmt.Errorf("workload: %w", err)
		}
		*w = Workload{Hours: hours}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("workload: %w", err)
	}
	*w = Workload{Raw: raw}
	return nil
}

// ── 规范化后的模块 ──

// SemesterData 模块在某学期的专属信息
type SemesterData struct {
	Semester     int      `json:"semester"`
	Timetable    []Lesson `json:"timetable"`
	CovidZones   []string `json:"covidZones"`
	ExamDate     string   `json:"examDate,omitempty"`
	ExamDuration int      `json:"examDuration,omitempty"`
}

// ModuleDetails 与学期无关的模块描述字段
type ModuleDetails struct {
	AcadYear     string          `json:"acadYear"`
	ModuleCode   string          `json:"moduleCode"`
	Title        string          `json:"title"`
	Description  string          `json:"description,omitempty"`
	ModuleCredit string          `json:"moduleCredit"`
	Department   string          `json:"department"`
	Faculty      string          `json:"faculty"`
	Workload     *Workload       `json:"workload,omitempty"`
	Prerequisite string          `json:"prerequisite,omitempty"`
	Corequisite  string          `json:"corequisite,omitempty"`
	Preclusion   string          `json:"preclusion,omitempty"`
	Attributes   map[string]bool `json:"attributes,omitempty"`
}

// SemesterModuleRecord 单学期的模块记录；本学期没有课表时 SemesterData 为 nil
type SemesterModuleRecord struct {
	ModuleCode   string        `json:"moduleCode"`
	Module       ModuleDetails `json:"module"`
	SemesterData *SemesterData `json:"semesterData,omitempty"`
}

// Module 一个学年内跨学期合并后的规范模块
type Module struct {
	ModuleDetails
	SemesterData []SemesterData `json:"semesterData"`
	Aliases      []string       `json:"aliases,omitempty"`
}

// ModuleCondensed 模块列表条目（仅包含开课模块）
type ModuleCondensed struct {
	ModuleCode string `json:"moduleCode"`
	Title      string `json:"title"`
	Semesters  []int  `json:"semesters"`
}

// SemesterSummary 检索索引中的学期摘要
type SemesterSummary struct {
	Semester     int      `json:"semester"`
	ExamDate     string   `json:"examDate,omitempty"`
	ExamDuration int      `json:"examDuration,omitempty"`
	CovidZones   []string `json:"covidZones"`
}

// ModuleInformation 检索索引条目：扁平化的可检索字段
type ModuleInformation struct {
	ModuleCode   string            `json:"moduleCode"`
	Title        string            `json:"title"`
	Description  string            `json:"description,omitempty"`
	ModuleCredit string            `json:"moduleCredit"`
	Department   string            `json:"department"`
	Faculty      string            `json:"faculty"`
	Workload     *Workload         `json:"workload,omitempty"`
	Prerequisite string            `json:"prerequisite,omitempty"`
	Corequisite  string            `json:"corequisite,omitempty"`
	Preclusion   string            `json:"preclusion,omitempty"`
	Attributes   map[string]bool   `json:"attributes,omitempty"`
	SemesterData []SemesterSummary `json:"semesterData"`
}
