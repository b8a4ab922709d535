package collate

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"timetable-collator/internal/model"
)

// ── 跨学期合并 ────────────────────────────────────────────
//
// 按学期顺序合并同一模块的记录：
//   - 首次出现：以该学期的描述字段为准，历史只有一条
//   - 再次出现：追加学期信息；描述字段不一致时记录字段级差异，
//     然后以较晚学期为准覆盖（后续学期的变更通常是增量修订）
//
// 单条格式错误的记录只记录日志并跳过，不影响其余模块。
// ─────────────────────────────────────────────────────────────

// FieldDiff 描述字段在两个学期间的差异
type FieldDiff struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

func (d FieldDiff) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("field", d.Field)
	enc.AddString("old", d.Old)
	enc.AddString("new", d.New)
	return nil
}

type fieldDiffs []FieldDiff

func (ds fieldDiffs) MarshalLogArray(enc zapcore.ArrayEncoder) error {
	for _, d := range ds {
		if err := enc.AppendObject(d); err != nil {
			return err
		}
	}
	return nil
}

// CombineModules 合并一个学年内各学期的模块记录，结果按模块代码排序
func CombineModules(semesters [][]model.SemesterModuleRecord, aliases map[string][]string, logger *zap.Logger) []model.Module {
	byCode := make(map[string]*model.Module)
	for i, records := range semesters {
		for _, record := range records {
			if err := checkRecord(record); err != nil {
				logger.Error("模块记录格式错误，已跳过",
					zap.Int("index", i),
					zap.String("module", record.ModuleCode),
					zap.Error(err),
				)
				continue
			}

			existing, ok := byCode[record.ModuleCode]
			if !ok {
				m := &model.Module{ModuleDetails: record.Module, SemesterData: []model.SemesterData{}}
				if record.SemesterData != nil {
					m.SemesterData = append(m.SemesterData, *record.SemesterData)
				}
				byCode[record.ModuleCode] = m
				continue
			}

			if record.SemesterData != nil {
				existing.SemesterData = append(existing.SemesterData, *record.SemesterData)
			}
			if diffs := DiffDetails(existing.ModuleDetails, record.Module); len(diffs) > 0 {
				fields := []zap.Field{
					zap.String("module", record.ModuleCode),
					zap.Array("diff", fieldDiffs(diffs)),
				}
				if record.SemesterData != nil {
					fields = append(fields, zap.Int("semester", record.SemesterData.Semester))
				}
				logger.Warn("模块描述在学期间不一致，以较晚学期为准", fields...)
			}
			existing.ModuleDetails = record.Module
		}
	}

	modules := make([]model.Module, 0, len(byCode))
	for code, m := range byCode {
		if list, ok := aliases[code]; ok && len(list) > 0 {
			m.Aliases = append([]string(nil), list...)
		}
		modules = append(modules, *m)
	}
	sort.Slice(modules, func(i, j int) bool { return modules[i].ModuleCode < modules[j].ModuleCode })
	return modules
}

func checkRecord(record model.SemesterModuleRecord) error {
	if record.ModuleCode == "" {
		return fmt.Errorf("缺少模块代码")
	}
	if record.Module.ModuleCode != record.ModuleCode {
		return fmt.Errorf("模块代码不一致: %q != %q", record.Module.ModuleCode, record.ModuleCode)
	}
	if record.SemesterData != nil && (record.SemesterData.Semester < 1 || record.SemesterData.Semester > 4) {
		return fmt.Errorf("学期无效: %d", record.SemesterData.Semester)
	}
	return nil
}

// DiffDetails 返回两份描述字段的字段级差异；nil 与空集合视为相同
func DiffDetails(prev, next model.ModuleDetails) []FieldDiff {
	var r diffReporter
	cmp.Equal(prev, next, cmpopts.EquateEmpty(), cmp.Reporter(&r))
	return r.diffs
}

// diffReporter 收集 cmp 比较过程中不相等的叶子节点
type diffReporter struct {
	path  cmp.Path
	diffs []FieldDiff
}

func (r *diffReporter) PushStep(ps cmp.PathStep) {
	r.path = append(r.path, ps)
}

func (r *diffReporter) Report(rs cmp.Result) {
	if rs.Equal() {
		return
	}
	vx, vy := r.path.Last().Values()
	r.diffs = append(r.diffs, FieldDiff{
		Field: r.path.String(),
		Old:   formatValue(vx),
		New:   formatValue(vy),
	})
}

func (r *diffReporter) PopStep() {
	r.path = r.path[:len(r.path)-1]
}

func formatValue(v reflect.Value) string {
	if !v.IsValid() {
		return "<nil>"
	}
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return "<nil>"
		}
		v = v.Elem()
	}
	return fmt.Sprintf("%+v", v.Interface())
}
