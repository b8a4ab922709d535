package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"timetable-collator/internal/cache"
	"timetable-collator/internal/calendar"
	"timetable-collator/internal/collate"
	"timetable-collator/internal/model"
	"timetable-collator/internal/repository"
	"timetable-collator/internal/timetable"
)

// ── 流水线 ────────────────────────────────────────────────
//
// FetchOrgs → FetchSemester(s)（按顺序串行）→ MergeAliases → CollateModules
// → ReconcileRemovals → Done
//
// 学期之间串行执行：瓶颈在上游模块信息接口的按部门限流，学期并行不会更快，
// 还会打乱别名合并顺序。并发只存在于单个学期内部（按部门扇出）。
// 没有断点续跑：重新运行会处理全部学期，依靠缓存避免重复请求。
// ─────────────────────────────────────────────────────────────

// State 流水线状态
type State string

const (
	StateFetchOrgs         State = "fetch_orgs"
	StateFetchSemester     State = "fetch_semester"
	StateMergeAliases      State = "merge_aliases"
	StateCollateModules    State = "collate_modules"
	StateReconcileRemovals State = "reconcile_removals"
	StateDone              State = "done"
)

// Client 上游 API 契约
type Client interface {
	FetchFacultyList(ctx context.Context) ([]model.OrgRef, error)
	FetchDepartmentList(ctx context.Context) ([]model.OrgRef, error)
	FetchModuleInfo(ctx context.Context, term, deptCode string) ([]model.RawModuleInfo, error)
	FetchExams(ctx context.Context, term string) ([]model.RawExam, error)
	FetchTimetable(ctx context.Context, term string, fn func(model.RawLessonEvent)) error
}

// StateFunc 状态切换回调，semester 仅在 StateFetchSemester 时有效
type StateFunc func(state State, semester int)

// Options 单次运行参数
type Options struct {
	AcademicYear string
	Semesters    []int
	Location     *time.Location // 考试时间所在时区
	Concurrency  int            // 单学期内按部门并发上限
	Retry        RetryPolicy
	DefaultTTL   time.Duration
	OrgTTL       time.Duration
	ExamTTL      time.Duration
	DryRun       bool // 只记录待删除模块，不实际删除

	OnState StateFunc
}

// SemesterStats 单学期统计
type SemesterStats struct {
	Semester int                   `json:"semester"`
	Modules  int                   `json:"modules"`
	Offered  int                   `json:"offered"`
	Venues   int                   `json:"venues"`
	Aliases  int                   `json:"aliases"`
	Exams    int                   `json:"exams"`
	Lessons  timetable.DedupeStats `json:"lessons"` // 命中课表缓存时为零值
}

// Result 运行结果
type Result struct {
	RunID        string          `json:"run_id"`
	AcademicYear string          `json:"academic_year"`
	Semesters    []SemesterStats `json:"semesters"`
	Modules      int             `json:"modules"`
	Aliases      int             `json:"aliases"`
	Removed      []string        `json:"removed"`
}

// Pipeline 学年数据整理流水线
// 协作方（上游客户端、缓存、存储）由调用方构造并注入，生命周期不超过一次运行的调用方
type Pipeline struct {
	client Client
	cache  cache.Cache
	store  repository.Store
	cal    *calendar.Calendar
	opts   Options
	logger *zap.Logger
}

// New 创建流水线
func New(client Client, c cache.Cache, store repository.Store, cal *calendar.Calendar, opts Options, logger *zap.Logger) *Pipeline {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Pipeline{client: client, cache: c, store: store, cal: cal, opts: opts, logger: logger}
}

// run 单次运行的工作状态
type run struct {
	p      *Pipeline
	logger *zap.Logger
	result *Result

	departments map[string]string
	faculties   map[string]string
	deptCodes   []string
}

// Run 执行一次完整运行；任一步骤失败即返回带步骤与范围上下文的错误
func (p *Pipeline) Run(ctx context.Context, runID string) (*Result, error) {
	r := &run{
		p:      p,
		logger: p.logger.With(zap.String("run_id", runID), zap.String("acad_year", p.opts.AcademicYear)),
		result: &Result{RunID: runID, AcademicYear: p.opts.AcademicYear, Removed: []string{}},
	}
	start := time.Now()

	r.enter(StateFetchOrgs, 0)
	if err := r.fetchOrgs(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", StateFetchOrgs, err)
	}

	semesters := make([]semesterResult, 0, len(p.opts.Semesters))
	for _, sem := range p.opts.Semesters {
		r.enter(StateFetchSemester, sem)
		res, err := r.fetchSemester(ctx, sem)
		if err != nil {
			return nil, fmt.Errorf("%s: 学期 %d: %w", StateFetchSemester, sem, err)
		}
		semesters = append(semesters, res)
		r.result.Semesters = append(r.result.Semesters, res.stats)
	}

	r.enter(StateMergeAliases, 0)
	aliasSets := make([]model.AliasSet, len(semesters))
	for i, s := range semesters {
		aliasSets[i] = s.aliases
	}
	aliases := collate.MergeAliases(aliasSets).Lists()
	if err := p.store.WriteAliases(ctx, p.opts.AcademicYear, aliases); err != nil {
		return nil, fmt.Errorf("%s: %w", StateMergeAliases, err)
	}
	r.result.Aliases = len(aliases)

	r.enter(StateCollateModules, 0)
	records := make([][]model.SemesterModuleRecord, len(semesters))
	for i, s := range semesters {
		records[i] = s.records
	}
	modules, err := r.collateModules(ctx, records, aliases)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", StateCollateModules, err)
	}
	r.result.Modules = len(modules)

	r.enter(StateReconcileRemovals, 0)
	removed, err := r.reconcileRemovals(ctx, modules)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", StateReconcileRemovals, err)
	}
	r.result.Removed = removed

	r.enter(StateDone, 0)
	r.logger.Info("流水线运行完成",
		zap.Int("modules", r.result.Modules),
		zap.Int("aliases", r.result.Aliases),
		zap.Int("removed", len(removed)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return r.result, nil
}

func (r *run) enter(state State, semester int) {
	fields := []zap.Field{zap.String("state", string(state))}
	if state == StateFetchSemester {
		fields = append(fields, zap.Int("semester", semester))
	}
	r.logger.Info("进入流水线步骤", fields...)
	if r.p.opts.OnState != nil {
		r.p.opts.OnState(state, semester)
	}
}

// ── FetchOrgs ──

func (r *run) fetchOrgs(ctx context.Context) error {
	faculties, err := fetch(ctx, r, "faculties", r.p.opts.OrgTTL, r.p.client.FetchFacultyList)
	if err != nil {
		return fmt.Errorf("获取学院列表: %w", err)
	}
	departments, err := fetch(ctx, r, "departments", r.p.opts.OrgTTL, r.p.client.FetchDepartmentList)
	if err != nil {
		return fmt.Errorf("获取部门列表: %w", err)
	}

	r.faculties = orgNames(faculties)
	r.departments = orgNames(departments)
	r.deptCodes = make([]string, 0, len(r.departments))
	for code := range r.departments {
		r.deptCodes = append(r.deptCodes, code)
	}
	sort.Strings(r.deptCodes)

	r.logger.Info("组织代码表已加载",
		zap.Int("faculties", len(r.faculties)),
		zap.Int("departments", len(r.departments)),
	)
	return nil
}

func orgNames(orgs []model.OrgRef) map[string]string {
	names := make(map[string]string, len(orgs))
	for _, o := range orgs {
		if o.Code == "" {
			continue
		}
		names[o.Code] = o.Description
	}
	return names
}

// ── CollateModules ──

func (r *run) collateModules(ctx context.Context, records [][]model.SemesterModuleRecord, aliases map[string][]string) ([]model.Module, error) {
	year := r.p.opts.AcademicYear
	modules := collate.CombineModules(records, aliases, r.logger)

	for _, m := range modules {
		if err := r.p.store.WriteModule(ctx, year, m); err != nil {
			return nil, fmt.Errorf("模块 %s: %w", m.ModuleCode, err)
		}
	}
	if err := r.p.store.WriteModuleList(ctx, year, collate.ModuleList(modules)); err != nil {
		return nil, err
	}
	if err := r.p.store.WriteModuleInformation(ctx, year, collate.ModuleInformationList(modules)); err != nil {
		return nil, err
	}

	r.logger.Info("模块合并完成", zap.Int("modules", len(modules)))
	return modules, nil
}
