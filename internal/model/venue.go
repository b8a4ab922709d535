package model

import "sort"

// Occupied 半小时时段被占用
const Occupied = "occupied"

// VenueLesson 带模块代码的 Lesson；合并的多代码课程使用 "/" 连接的复合代码
type VenueLesson struct {
	Lesson
	ModuleCode string `json:"moduleCode"`
}

// Availability 半小时时间戳（HHMM）→ 占用状态，只保存被占用的时段
type Availability map[string]string

// VenueDay 某场地某一天的课程与占用情况
type VenueDay struct {
	Day          string        `json:"day"`
	Classes      []VenueLesson `json:"classes"`
	Availability Availability  `json:"availability"`
}

// VenueInfo 场地 → 按星期排序的 VenueDay 列表
type VenueInfo map[string][]VenueDay

// Venues 返回排序后的场地名列表
func (v VenueInfo) Venues() []string {
	names := make([]string, 0, len(v))
	for name := range v {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AliasSet 模块代码 → 别名代码集合
type AliasSet map[string]map[string]struct{}

// Add 记录 from → to 的单向别名
func (a AliasSet) Add(from, to string) {
	if from == to {
		return
	}
	set, ok := a[from]
	if !ok {
		set = make(map[string]struct{})
		a[from] = set
	}
	set[to] = struct{}{}
}

// Link 记录双向别名
func (a AliasSet) Link(x, y string) {
	a.Add(x, y)
	a.Add(y, x)
}

// Lists 转为排序去重后的列表形式，便于序列化
func (a AliasSet) Lists() map[string][]string {
	out := make(map[string][]string, len(a))
	for code, set := range a {
		list := make([]string, 0, len(set))
		for alias := range set {
			list = append(list, alias)
		}
		sort.Strings(list)
		out[code] = list
	}
	return out
}

// AliasSetFromLists 由列表形式还原集合
func AliasSetFromLists(lists map[string][]string) AliasSet {
	a := make(AliasSet, len(lists))
	for code, list := range lists {
		for _, alias := range list {
			a.Add(code, alias)
		}
	}
	return a
}
