package collate

import (
	"sort"

	"go.uber.org/zap"

	"timetable-collator/internal/calendar"
	"timetable-collator/internal/model"
)

// SemesterInput 单学期合并所需的全部输入
type SemesterInput struct {
	Semester    int
	Modules     []model.RawModuleInfo     // 各部门模块描述，可能重复
	Timetable   model.Timetable           // 含仅有无效课程的开课模块（空列表）
	Exams       map[string]model.ExamInfo // 模块代码 → 考试信息
	Departments map[string]string         // 部门代码 → 名称
	Faculties   map[string]string         // 学院代码 → 名称
}

// MergeSemesterModules 合并单学期的模块描述、课表与考试信息
//
// 每个出现在描述记录中的模块都产出一条记录；本学期课表中没有的模块
// 不带学期专属信息。结果按模块代码排序。
func MergeSemesterModules(in SemesterInput, logger *zap.Logger) []model.SemesterModuleRecord {
	logger = logger.With(zap.Int("semester", in.Semester))

	seen := make(map[string]struct{}, len(in.Modules))
	records := make([]model.SemesterModuleRecord, 0, len(in.Modules))
	for _, raw := range in.Modules {
		acadYear, err := calendar.AcadYearFromTerm(raw.Term)
		if err != nil {
			logger.Warn("模块记录学期代码无效，已丢弃", zap.String("module", raw.ModuleCode()), zap.Error(err))
			continue
		}

		details := CleanModule(raw, acadYear, in.Departments, in.Faculties)
		code := details.ModuleCode
		if code == "" || details.Title == "" {
			logger.Warn("模块记录缺少代码或标题，已丢弃", zap.String("module", code))
			continue
		}
		if _, dup := seen[code]; dup {
			logger.Debug("模块记录重复，保留第一条", zap.String("module", code))
			continue
		}
		seen[code] = struct{}{}

		record := model.SemesterModuleRecord{ModuleCode: code, Module: details}
		if lessons, offered := in.Timetable[code]; offered {
			data := &model.SemesterData{
				Semester:   in.Semester,
				Timetable:  lessons,
				CovidZones: CovidZones(lessons),
			}
			if lessons == nil {
				data.Timetable = []model.Lesson{}
			}
			if exam, ok := in.Exams[code]; ok {
				data.ExamDate = exam.ExamDate
				data.ExamDuration = exam.ExamDuration
			}
			record.SemesterData = data
		}
		records = append(records, record)
	}

	for code := range in.Timetable {
		if _, ok := seen[code]; !ok {
			logger.Warn("课表中的模块没有描述信息", zap.String("module", code))
		}
	}

	sort.Slice(records, func(i, j int) bool { return records[i].ModuleCode < records[j].ModuleCode })
	return records
}

// CovidZones 课程中出现的分区标签（去重、排序）
func CovidZones(lessons []model.Lesson) []string {
	set := make(map[string]struct{})
	for _, l := range lessons {
		if l.CovidZone != "" {
			set[l.CovidZone] = struct{}{}
		}
	}
	zones := make([]string, 0, len(set))
	for z := range set {
		zones = append(zones, z)
	}
	sort.Strings(zones)
	return zones
}

// Titles 模块代码 → 标题，用于跨列模块识别
func Titles(records []model.SemesterModuleRecord) map[string]string {
	titles := make(map[string]string, len(records))
	for _, r := range records {
		titles[r.ModuleCode] = r.Module.Title
	}
	return titles
}
