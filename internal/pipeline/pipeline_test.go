package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"timetable-collator/internal/cache"
	"timetable-collator/internal/calendar"
	"timetable-collator/internal/model"
	"timetable-collator/internal/repository"
	apperrors "timetable-collator/pkg/errors"
)

const testYear = "2025/2026"

func strPtr(s string) *string { return &s }

func rawModule(term, dept, subject, catalog, title string) model.RawModuleInfo {
	return model.RawModuleInfo{
		Term:                 term,
		AcademicOrganisation: model.OrgRef{Code: dept},
		AcademicGroup:        model.OrgRef{Code: "F1"},
		Subject:              subject,
		CatalogNumber:        catalog,
		CourseTitle:          title,
		ModularCredit:        "4",
	}
}

func lecture(module, day, start, end, room, date string) model.RawLessonEvent {
	return model.RawLessonEvent{
		Module:    module,
		Activity:  "L",
		Group:     "L1",
		Day:       day,
		StartTime: start,
		EndTime:   end,
		Room:      strPtr(room),
		EventDate: date,
		Size:      100,
		Zone:      "A",
	}
}

// scenario 两个学期、两个部门，CS1010 与 CS1010E 为同一节课的双代码
func scenario() *fakeClient {
	f := newFakeClient()
	f.faculties = []model.OrgRef{{Code: "F1", Description: "Computing"}}
	f.departments = []model.OrgRef{
		{Code: "D1", Description: "Computer Science"},
		{Code: "D2", Description: "Mathematics"},
	}

	f.modules["2510:D1"] = []model.RawModuleInfo{
		rawModule("2510", "D1", "CS", "1010", "Programming Methodology"),
		rawModule("2510", "D1", "CS", "1010E", "Programming Methodology"),
		rawModule("2510", "D1", "CS", "2030", "Programming Methodology II"),
	}
	f.modules["2510:D2"] = []model.RawModuleInfo{
		rawModule("2510", "D2", "MA", "1521", "Calculus for Computing"),
	}
	cs2030 := rawModule("2520", "D1", "CS", "2030", "Programming Methodology II")
	cs2030.Description = "Now with more streams."
	f.modules["2520:D1"] = []model.RawModuleInfo{
		rawModule("2520", "D1", "CS", "1010", "Programming Methodology"),
		cs2030,
	}

	f.events["2510"] = []model.RawLessonEvent{
		lecture("CS1010", "1", "1000", "1200", "LT19", "2025-08-11"),
		lecture("CS1010", "1", "1000", "1200", "LT19", "2025-08-18"),
		lecture("CS1010E", "1", "1000", "1200", "LT19", "2025-08-11"),
		lecture("CS1010E", "1", "1000", "1200", "LT19", "2025-08-18"),
		lecture("CS2030", "2", "1400", "1600", "LT19", "2025-08-12"),
		lecture("MA1521", "3", "0900", "1000", "LT27", "2025-08-13"),
	}
	f.events["2520"] = []model.RawLessonEvent{
		lecture("CS1010", "1", "1000", "1200", "LT19", "2026-01-12"),
		lecture("CS2030", "2", "1400", "1600", "LT19", "2026-01-13"),
	}

	f.exams["2510"] = []model.RawExam{
		{Module: "CS1010", ExamDate: "2025-11-25", StartTime: "09:00", Duration: 120},
	}
	f.examErrs["2520"] = errNotFound
	return f
}

type fixture struct {
	client *fakeClient
	cache  *cache.Memory
	store  repository.Store
	root   string
	cal    *calendar.Calendar
}

func newFixture(t *testing.T, client *fakeClient) *fixture {
	t.Helper()
	cal, err := calendar.New(nil)
	if err != nil {
		t.Fatalf("calendar.New 失败: %v", err)
	}
	root := t.TempDir()
	return &fixture{
		client: client,
		cache:  cache.NewMemory(time.Hour, time.Hour),
		store:  repository.NewDocumentStore(repository.NewFSBackend(root)),
		root:   root,
		cal:    cal,
	}
}

func (fx *fixture) pipeline(opts Options) *Pipeline {
	if opts.AcademicYear == "" {
		opts.AcademicYear = testYear
	}
	if opts.Semesters == nil {
		opts.Semesters = []int{1, 2}
	}
	if opts.Retry.Attempts == 0 {
		opts.Retry.Attempts = 3
	}
	opts.Concurrency = 4
	return New(fx.client, fx.cache, fx.store, fx.cal, opts, zap.NewNop())
}

func (fx *fixture) readModule(t *testing.T, code string) model.Module {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(fx.root, "2025-2026", "modules", code+".json"))
	if err != nil {
		t.Fatalf("读取模块 %s 失败: %v", code, err)
	}
	var m model.Module
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("解析模块 %s 失败: %v", code, err)
	}
	return m
}

func TestRun_EndToEnd(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, scenario())

	old := model.Module{ModuleDetails: model.ModuleDetails{AcadYear: testYear, ModuleCode: "OLD1000"}}
	if err := fx.store.WriteModule(ctx, testYear, old); err != nil {
		t.Fatal(err)
	}

	var states []State
	p := fx.pipeline(Options{OnState: func(s State, _ int) { states = append(states, s) }})
	result, err := p.Run(ctx, "run-1")
	if err != nil {
		t.Fatalf("Run 失败: %v", err)
	}

	wantStates := []State{
		StateFetchOrgs, StateFetchSemester, StateFetchSemester,
		StateMergeAliases, StateCollateModules, StateReconcileRemovals, StateDone,
	}
	if diff := cmp.Diff(wantStates, states); diff != "" {
		t.Errorf("状态顺序不符 (-want +got):\n%s", diff)
	}

	if result.Modules != 4 {
		t.Errorf("期望 4 个模块，实际 %d", result.Modules)
	}
	if diff := cmp.Diff([]string{"OLD1000"}, result.Removed); diff != "" {
		t.Errorf("删除列表不符 (-want +got):\n%s", diff)
	}
	codes, _ := fx.store.ListKnownModuleCodes(ctx, testYear)
	if diff := cmp.Diff([]string{"CS1010", "CS1010E", "CS2030", "MA1521"}, codes); diff != "" {
		t.Errorf("持久化模块不符 (-want +got):\n%s", diff)
	}

	cs1010 := fx.readModule(t, "CS1010")
	if len(cs1010.SemesterData) != 2 || cs1010.SemesterData[0].Semester != 1 || cs1010.SemesterData[1].Semester != 2 {
		t.Fatalf("CS1010 学期历史不符: %+v", cs1010.SemesterData)
	}
	if cs1010.SemesterData[0].ExamDate == "" || cs1010.SemesterData[1].ExamDate != "" {
		t.Errorf("考试信息不符: %+v", cs1010.SemesterData)
	}
	if diff := cmp.Diff([]string{"CS1010E"}, cs1010.Aliases); diff != "" {
		t.Errorf("CS1010 别名不符 (-want +got):\n%s", diff)
	}
	if cs1010.Department != "Computer Science" || cs1010.Faculty != "Computing" {
		t.Errorf("部门/学院名称不符: %q / %q", cs1010.Department, cs1010.Faculty)
	}
	if got := cs1010.SemesterData[0].Timetable[0].Weeks; !got.IsNumeric() || !cmp.Equal(got.Numeric, []int{1, 2}) {
		t.Errorf("周次不符: %+v", got)
	}

	cs2030 := fx.readModule(t, "CS2030")
	if cs2030.Description != "Now with more streams." {
		t.Errorf("描述字段应以较晚学期为准，实际 %q", cs2030.Description)
	}

	var aliases map[string][]string
	data, err := os.ReadFile(filepath.Join(fx.root, "2025-2026", "aliases.json"))
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, &aliases); err != nil {
		t.Fatal(err)
	}
	wantAliases := map[string][]string{"CS1010": {"CS1010E"}, "CS1010E": {"CS1010"}}
	if diff := cmp.Diff(wantAliases, aliases); diff != "" {
		t.Errorf("别名文档不符 (-want +got):\n%s", diff)
	}

	var venues []string
	data, err = os.ReadFile(filepath.Join(fx.root, "2025-2026", "semesters", "1", "venues.json"))
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, &venues); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"LT19", "LT27"}, venues); diff != "" {
		t.Errorf("场地列表不符 (-want +got):\n%s", diff)
	}
}

func TestRun_UsesCacheAcrossRuns(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, scenario())
	p := fx.pipeline(Options{})

	if _, err := p.Run(ctx, "run-1"); err != nil {
		t.Fatalf("第一次运行失败: %v", err)
	}
	if _, err := p.Run(ctx, "run-2"); err != nil {
		t.Fatalf("第二次运行失败: %v", err)
	}

	for _, key := range []string{"faculties", "departments", "timetable:2510", "modules:2510:D1", "exams:2510"} {
		if n := fx.client.callCount(key); n != 1 {
			t.Errorf("%s 期望只请求 1 次，实际 %d 次", key, n)
		}
	}
	// 不存在的考试数据不写缓存，每次都回源
	if n := fx.client.callCount("exams:2520"); n != 2 {
		t.Errorf("exams:2520 期望请求 2 次，实际 %d 次", n)
	}
}

func TestRun_CacheTTLPolicy(t *testing.T) {
	fx := newFixture(t, scenario())
	rc := newRecordingCache()
	opts := Options{
		AcademicYear: testYear,
		Semesters:    []int{1, 2},
		Concurrency:  4,
		Retry:        RetryPolicy{Attempts: 3},
		DefaultTTL:   24 * time.Hour,
		OrgTTL:       7 * 24 * time.Hour,
		ExamTTL:      5 * 24 * time.Hour,
	}
	p := New(fx.client, rc, fx.store, fx.cal, opts, zap.NewNop())
	if _, err := p.Run(context.Background(), "run-1"); err != nil {
		t.Fatalf("运行失败: %v", err)
	}

	want := map[string]time.Duration{
		"faculties":       opts.OrgTTL,
		"departments":     opts.OrgTTL,
		"exams:2510":      opts.ExamTTL,
		"timetable:2510":  opts.DefaultTTL,
		"timetable:2520":  opts.DefaultTTL,
		"modules:2510:D1": opts.DefaultTTL,
		"modules:2510:D2": opts.DefaultTTL,
		"modules:2520:D1": opts.DefaultTTL,
	}
	for key, ttl := range want {
		got, ok := rc.ttl(key)
		if !ok {
			t.Errorf("%s 未写入缓存", key)
			continue
		}
		if got != ttl {
			t.Errorf("%s 的 TTL 期望 %v，实际 %v", key, ttl, got)
		}
	}
	// 尚未发布的考试数据不写缓存
	if _, ok := rc.ttl("exams:2520"); ok {
		t.Error("exams:2520 不应写入缓存")
	}
}

func TestRun_RetriesTransientErrors(t *testing.T) {
	client := scenario()
	client.moduleErrs["2510:D1"] = []error{errTransient, errTransient}
	fx := newFixture(t, client)

	result, err := fx.pipeline(Options{}).Run(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("第三次尝试成功时不应失败: %v", err)
	}
	if n := client.callCount("modules:2510:D1"); n != 3 {
		t.Errorf("期望请求 3 次，实际 %d 次", n)
	}
	if result.Modules != 4 {
		t.Errorf("期望 4 个模块，实际 %d", result.Modules)
	}
}

func TestRun_RetryExhaustionFailsSemester(t *testing.T) {
	client := scenario()
	client.moduleErrs["2510:D1"] = []error{errTransient, errTransient, errTransient}
	fx := newFixture(t, client)

	_, err := fx.pipeline(Options{}).Run(context.Background(), "run-1")
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("期望重试用尽错误，实际 %v", err)
	}
	if n := client.callCount("modules:2510:D1"); n != 3 {
		t.Errorf("期望请求 3 次，实际 %d 次", n)
	}
	if n := client.callCount("timetable:2520"); n != 0 {
		t.Errorf("学期 1 失败后不应继续处理学期 2")
	}
}

func TestRun_AuthErrorNotRetried(t *testing.T) {
	client := scenario()
	client.moduleErrs["2510:D2"] = []error{errAuth}
	fx := newFixture(t, client)

	_, err := fx.pipeline(Options{}).Run(context.Background(), "run-1")
	if !errors.Is(err, apperrors.ErrAuth) {
		t.Fatalf("期望认证错误，实际 %v", err)
	}
	if n := client.callCount("modules:2510:D2"); n != 1 {
		t.Errorf("认证错误不应重试，实际请求 %d 次", n)
	}
}

func TestRun_DepartmentFailureIsolated(t *testing.T) {
	client := scenario()
	client.moduleErrs["2510:D2"] = []error{errInvalid}
	fx := newFixture(t, client)

	result, err := fx.pipeline(Options{Semesters: []int{1}}).Run(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("单个部门失败不应使运行失败: %v", err)
	}
	if n := client.callCount("modules:2510:D2"); n != 1 {
		t.Errorf("校验错误不应重试，实际请求 %d 次", n)
	}
	if result.Modules != 3 {
		t.Errorf("期望 3 个模块（缺少 MA1521），实际 %d", result.Modules)
	}
}

func TestRun_DryRunKeepsModules(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, scenario())
	old := model.Module{ModuleDetails: model.ModuleDetails{ModuleCode: "OLD1000"}}
	if err := fx.store.WriteModule(ctx, testYear, old); err != nil {
		t.Fatal(err)
	}

	result, err := fx.pipeline(Options{DryRun: true}).Run(ctx, "run-1")
	if err != nil {
		t.Fatalf("Run 失败: %v", err)
	}
	if diff := cmp.Diff([]string{"OLD1000"}, result.Removed); diff != "" {
		t.Errorf("待删除列表不符 (-want +got):\n%s", diff)
	}
	codes, _ := fx.store.ListKnownModuleCodes(ctx, testYear)
	if len(codes) != 5 {
		t.Errorf("dry run 不应删除模块，实际剩余 %v", codes)
	}
}

func TestWithRetry_StopsOnNonRetryable(t *testing.T) {
	calls := 0
	_, err := withRetry(context.Background(), RetryPolicy{Attempts: 3}, zap.NewNop(), "op", func(context.Context) (int, error) {
		calls++
		return 0, errNotFound
	})
	if !errors.Is(err, apperrors.ErrNotFound) || calls != 1 {
		t.Errorf("不存在错误不应重试: calls=%d err=%v", calls, err)
	}
}
