package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"timetable-collator/internal/calendar"
	"timetable-collator/internal/collate"
	"timetable-collator/internal/model"
	"timetable-collator/internal/timetable"
	apperrors "timetable-collator/pkg/errors"
)

type semesterResult struct {
	records []model.SemesterModuleRecord
	aliases model.AliasSet
	stats   SemesterStats
}

// fetchSemester 获取并整理单个学期：模块信息、课表、考试 → 学期模块记录 + 场地占用 + 别名
func (r *run) fetchSemester(ctx context.Context, sem int) (semesterResult, error) {
	year := r.p.opts.AcademicYear
	term, err := calendar.TermCode(year, sem)
	if err != nil {
		return semesterResult{}, err
	}
	logger := r.logger.With(zap.Int("semester", sem), zap.String("term", term))
	stats := SemesterStats{Semester: sem}

	modules, err := r.fetchModuleInfo(ctx, term, logger)
	if err != nil {
		return semesterResult{}, err
	}

	tt, err := r.fetchTimetable(ctx, term, sem, logger, &stats)
	if err != nil {
		return semesterResult{}, fmt.Errorf("课表: %w", err)
	}

	exams, err := r.fetchExams(ctx, term, logger)
	if err != nil {
		return semesterResult{}, fmt.Errorf("考试: %w", err)
	}

	records := collate.MergeSemesterModules(collate.SemesterInput{
		Semester:    sem,
		Modules:     modules,
		Timetable:   tt,
		Exams:       exams,
		Departments: r.departments,
		Faculties:   r.faculties,
	}, logger)

	venues, aliases := timetable.ExtractVenueInfo(tt, collate.Titles(records), logger)
	if err := r.p.store.WriteVenueInfo(ctx, year, sem, venues); err != nil {
		return semesterResult{}, err
	}
	if err := r.p.store.WriteVenueList(ctx, year, sem, venues.Venues()); err != nil {
		return semesterResult{}, err
	}

	stats.Modules = len(records)
	stats.Offered = len(tt)
	stats.Venues = len(venues)
	stats.Aliases = len(aliases)
	stats.Exams = len(exams)
	logger.Info("学期处理完成",
		zap.Int("modules", stats.Modules),
		zap.Int("offered", stats.Offered),
		zap.Int("venues", stats.Venues),
		zap.Int("aliases", stats.Aliases),
		zap.Int("exams", stats.Exams),
	)
	return semesterResult{records: records, aliases: aliases, stats: stats}, nil
}

// fetchModuleInfo 按部门扇出获取模块信息
// 单个部门失败只记录日志并按空结果处理；认证错误与重试用尽则使整个学期失败
func (r *run) fetchModuleInfo(ctx context.Context, term string, logger *zap.Logger) ([]model.RawModuleInfo, error) {
	results := make([][]model.RawModuleInfo, len(r.deptCodes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.p.opts.Concurrency)
	for i, dept := range r.deptCodes {
		i, dept := i, dept
		g.Go(func() error {
			key := fmt.Sprintf("modules:%s:%s", term, dept)
			mods, err := fetch(gctx, r, key, r.p.opts.DefaultTTL, func(ctx context.Context) ([]model.RawModuleInfo, error) {
				return r.p.client.FetchModuleInfo(ctx, term, dept)
			})
			if err == nil {
				results[i] = mods
				return nil
			}
			if errors.Is(err, apperrors.ErrAuth) || errors.Is(err, ErrRetriesExhausted) {
				return fmt.Errorf("部门 %s 模块信息: %w", dept, err)
			}
			logger.Error("获取部门模块信息失败，按空结果处理", zap.String("department", dept), zap.Error(err))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []model.RawModuleInfo
	for _, mods := range results {
		all = append(all, mods...)
	}
	logger.Info("模块信息已获取", zap.Int("departments", len(r.deptCodes)), zap.Int("modules", len(all)))
	return all, nil
}

// fetchTimetable 流式接收课表并去重；每次重试使用新的去重器
func (r *run) fetchTimetable(ctx context.Context, term string, sem int, logger *zap.Logger, stats *SemesterStats) (model.Timetable, error) {
	return fetch(ctx, r, "timetable:"+term, r.p.opts.DefaultTTL, func(ctx context.Context) (model.Timetable, error) {
		d := timetable.NewDeduplicator(r.p.cal, r.p.opts.AcademicYear, sem, logger)
		if err := r.p.client.FetchTimetable(ctx, term, d.Add); err != nil {
			return nil, err
		}
		stats.Lessons = d.Stats()
		logger.Info("课表去重完成",
			zap.Int("events", stats.Lessons.Events),
			zap.Int("valid", stats.Lessons.Valid),
			zap.Int("invalid", stats.Lessons.Invalid),
			zap.Int("dropped", stats.Lessons.Dropped),
			zap.Int("modules", stats.Lessons.Modules),
		)
		return d.Timetable(), nil
	})
}

// fetchExams 未来学期尚无考试数据时上游返回不存在，按空结果处理
func (r *run) fetchExams(ctx context.Context, term string, logger *zap.Logger) (map[string]model.ExamInfo, error) {
	raw, err := fetch(ctx, r, "exams:"+term, r.p.opts.ExamTTL, func(ctx context.Context) ([]model.RawExam, error) {
		return r.p.client.FetchExams(ctx, term)
	})
	if errors.Is(err, apperrors.ErrNotFound) {
		logger.Info("本学期暂无考试数据")
		return map[string]model.ExamInfo{}, nil
	}
	if err != nil {
		return nil, err
	}
	return collate.MapExams(raw, r.p.opts.Location, logger), nil
}
