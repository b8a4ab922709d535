package collate

import "timetable-collator/internal/model"

// ModuleList 精简模块列表，只包含至少一个学期开课的模块
func ModuleList(modules []model.Module) []model.ModuleCondensed {
	list := make([]model.ModuleCondensed, 0, len(modules))
	for _, m := range modules {
		if len(m.SemesterData) == 0 {
			continue
		}
		semesters := make([]int, 0, len(m.SemesterData))
		for _, s := range m.SemesterData {
			semesters = append(semesters, s.Semester)
		}
		list = append(list, model.ModuleCondensed{
			ModuleCode: m.ModuleCode,
			Title:      m.Title,
			Semesters:  semesters,
		})
	}
	return list
}

// ModuleInformationList 检索用的扁平化模块信息，不含课表
func ModuleInformationList(modules []model.Module) []model.ModuleInformation {
	out := make([]model.ModuleInformation, 0, len(modules))
	for _, m := range modules {
		summaries := make([]model.SemesterSummary, 0, len(m.SemesterData))
		for _, s := range m.SemesterData {
			summaries = append(summaries, model.SemesterSummary{
				Semester:     s.Semester,
				ExamDate:     s.ExamDate,
				ExamDuration: s.ExamDuration,
				CovidZones:   s.CovidZones,
			})
		}
		out = append(out, model.ModuleInformation{
			ModuleCode:   m.ModuleCode,
			Title:        m.Title,
			Description:  m.Description,
			ModuleCredit: m.ModuleCredit,
			Department:   m.Department,
			Faculty:      m.Faculty,
			Workload:     m.Workload,
			Prerequisite: m.Prerequisite,
			Corequisite:  m.Corequisite,
			Preclusion:   m.Preclusion,
			Attributes:   m.Attributes,
			SemesterData: summaries,
		})
	}
	return out
}
