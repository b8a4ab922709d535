package pipeline

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"timetable-collator/internal/model"
)

// reconcileRemovals 删除此前存在、本次运行已不存在的模块
//
// 上游缺失的模块被视为已停开。本次运行无法区分"停开"与"上游静默返回了
// 不完整数据"，因此每个删除都以 Warn 记录，便于事后追查。
func (r *run) reconcileRemovals(ctx context.Context, modules []model.Module) ([]string, error) {
	year := r.p.opts.AcademicYear
	known, err := r.p.store.ListKnownModuleCodes(ctx, year)
	if err != nil {
		return nil, err
	}

	current := make(map[string]struct{}, len(modules))
	for _, m := range modules {
		current[m.ModuleCode] = struct{}{}
	}

	removed := []string{}
	for _, code := range known {
		if _, ok := current[code]; !ok {
			removed = append(removed, code)
		}
	}
	sort.Strings(removed)
	if len(removed) == 0 {
		return removed, nil
	}

	for _, code := range removed {
		r.logger.Warn("模块已从上游消失，视为停开",
			zap.String("module", code),
			zap.Bool("dry_run", r.p.opts.DryRun),
			zap.String("note", "无法区分停开与上游返回不完整数据"),
		)
		if r.p.opts.DryRun {
			continue
		}
		if err := r.p.store.DeleteModule(ctx, year, code); err != nil {
			return nil, err
		}
	}
	r.logger.Warn("模块对账完成",
		zap.Int("known", len(known)),
		zap.Int("current", len(current)),
		zap.Strings("removed", removed),
		zap.Bool("dry_run", r.p.opts.DryRun),
	)
	return removed, nil
}
