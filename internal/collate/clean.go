package collate

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"timetable-collator/internal/model"
)

// 可选文本字段的"空值"写法（比较前统一转小写并去掉首尾空白）
var emptyValues = map[string]struct{}{
	"":     {},
	"-":    {},
	"na":   {},
	"n/a":  {},
	"n.a.": {},
	"n.a":  {},
	"nil":  {},
	"nil.": {},
	"none": {},
	"null": {},
}

// 上游模块属性代码 → 输出属性名；仅 Y/YES 视为 true
var attributeNames = map[string]string{
	"YEAR": "year",
	"SFS":  "sfs",
	"SSGF": "ssgf",
	"LABB": "lab",
	"ISM":  "ism",
	"MPE":  "mpes",
	"SUOP": "su",
	"GRDY": "grsu",
	"UROP": "urop",
}

// isEmptyValue 判断字符串是否为"空值"写法
func isEmptyValue(s string) bool {
	_, ok := emptyValues[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// cleanOptional 去除首尾空白，空值写法归一为 ""
func cleanOptional(s string) string {
	if isEmptyValue(s) {
		return ""
	}
	return strings.TrimSpace(s)
}

// cleanTitle 全大写标题转为首字母大写
func cleanTitle(title string) string {
	title = strings.Join(strings.Fields(title), " ")
	if title != "" && title == strings.ToUpper(title) && title != strings.ToLower(title) {
		// Caser 有内部状态，不能跨 goroutine 共享
		return cases.Title(language.English).String(strings.ToLower(title))
	}
	return title
}

// cleanCredit "4.0" → "4"，"2.50" → "2.5"
func cleanCredit(credit string) string {
	credit = strings.TrimSpace(credit)
	v, err := strconv.ParseFloat(credit, 64)
	if err != nil {
		return credit
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func cleanAttributes(raw []model.RawModuleAttribute) map[string]bool {
	var attrs map[string]bool
	for _, a := range raw {
		name, ok := attributeNames[strings.TrimSpace(a.Code)]
		if !ok {
			continue
		}
		switch strings.ToUpper(strings.TrimSpace(a.Value)) {
		case "Y", "YES":
			if attrs == nil {
				attrs = make(map[string]bool)
			}
			attrs[name] = true
		}
	}
	return attrs
}

// CleanModule 将上游原始记录映射为规范字段并清洗
func CleanModule(raw model.RawModuleInfo, acadYear string, departments, faculties map[string]string) model.ModuleDetails {
	details := model.ModuleDetails{
		AcadYear:     acadYear,
		ModuleCode:   strings.TrimSpace(raw.ModuleCode()),
		Title:        cleanTitle(raw.CourseTitle),
		Description:  cleanOptional(raw.Description),
		ModuleCredit: cleanCredit(raw.ModularCredit),
		Department:   lookupOrg(departments, raw.AcademicOrganisation),
		Faculty:      lookupOrg(faculties, raw.AcademicGroup),
		Prerequisite: cleanOptional(raw.PreRequisite),
		Corequisite:  cleanOptional(raw.CoRequisite),
		Preclusion:   cleanOptional(raw.Preclusion),
		Attributes:   cleanAttributes(raw.ModuleAttributes),
	}
	if w := cleanOptional(raw.WorkLoadHours); w != "" {
		workload := ParseWorkload(w)
		details.Workload = &workload
	}
	return details
}

// lookupOrg 优先使用代码表中的名称，其次使用记录自带的描述
func lookupOrg(names map[string]string, ref model.OrgRef) string {
	if name, ok := names[ref.Code]; ok && name != "" {
		return name
	}
	if desc := strings.TrimSpace(ref.Description); desc != "" {
		return desc
	}
	return ref.Code
}
