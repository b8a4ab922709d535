package collate

import "timetable-collator/internal/model"

// MergeAliases 按 key 合并各学期的别名集合
//
// 每个 key 取其在所有学期中记录值的并集，不做传递闭包，也不跨 key 合并：
// [{X:{Y}}, {Y:{X,Z}}] 的结果是 X→{Y}, Y→{X,Z}，X 不会获得 Z。
func MergeAliases(semesters []model.AliasSet) model.AliasSet {
	merged := make(model.AliasSet)
	for _, aliases := range semesters {
		for code, set := range aliases {
			if _, ok := merged[code]; !ok {
				merged[code] = make(map[string]struct{}, len(set))
			}
			for alias := range set {
				merged[code][alias] = struct{}{}
			}
		}
	}
	return merged
}
