package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"timetable-collator/internal/dto"
	"timetable-collator/internal/pipeline"
)

// ── 运行管理业务错误 ──

var (
	ErrRunInProgress = errors.New("已有流水线运行进行中")
	ErrNoRunYet      = errors.New("尚无运行记录")
)

// Runner 一次流水线运行
type Runner interface {
	Run(ctx context.Context, runID string) (*pipeline.Result, error)
}

// RunnerFactory 为每次运行构造新的 Runner（及其上游客户端），onState 接收状态切换
type RunnerFactory func(onState pipeline.StateFunc) (Runner, error)

// RunService 保证同一时刻最多一个运行，并记录最近一次运行状态
type RunService interface {
	// Run 同步执行一次运行
	Run(ctx context.Context) (*dto.RunResponse, error)
	// Trigger 异步启动一次运行，立即返回初始状态
	Trigger() (*dto.RunResponse, error)
	// Latest 最近一次运行状态
	Latest() (*dto.RunResponse, error)
	// Shutdown 取消 Trigger 启动的后台运行并等待其结束，ctx 到期则放弃等待
	Shutdown(ctx context.Context) error
}

type runService struct {
	factory RunnerFactory
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	running bool
	latest  *dto.RunResponse

	// 后台运行的生命周期由服务自身管理，与触发请求无关
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewRunService 创建 RunService 实例
func NewRunService(factory RunnerFactory, logger *zap.Logger) RunService {
	ctx, cancel := context.WithCancel(context.Background())
	return &runService{factory: factory, logger: logger, now: time.Now, baseCtx: ctx, cancel: cancel}
}

// ────────────────────── Run ──────────────────────

func (s *runService) Run(ctx context.Context) (*dto.RunResponse, error) {
	id, err := s.begin()
	if err != nil {
		return nil, err
	}
	s.execute(ctx, id)
	return s.Latest()
}

// ────────────────────── Trigger ──────────────────────

func (s *runService) Trigger() (*dto.RunResponse, error) {
	id, err := s.begin()
	if err != nil {
		return nil, err
	}
	snapshot, _ := s.Latest()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(s.baseCtx, id)
	}()
	return snapshot, nil
}

// ────────────────────── Shutdown ──────────────────────

func (s *runService) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.logger.Warn("等待后台运行结束超时", zap.Error(ctx.Err()))
		return ctx.Err()
	}
}

// ────────────────────── Latest ──────────────────────

func (s *runService) Latest() (*dto.RunResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return nil, ErrNoRunYet
	}
	snapshot := *s.latest
	return &snapshot, nil
}

// ── 内部方法 ──

func (s *runService) begin() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return "", ErrRunInProgress
	}
	s.running = true
	id := uuid.NewString()
	s.latest = &dto.RunResponse{
		ID:        id,
		Status:    dto.RunStatusRunning,
		StartedAt: s.now().UTC().Format(time.RFC3339),
	}
	return id, nil
}

func (s *runService) execute(ctx context.Context, id string) {
	logger := s.logger.With(zap.String("run_id", id))

	result, err := s.runOnce(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.latest.FinishedAt = s.now().UTC().Format(time.RFC3339)
	if err != nil {
		s.latest.Status = dto.RunStatusFailed
		s.latest.Error = err.Error()
		logger.Error("流水线运行失败", zap.String("state", s.latest.State), zap.Error(err))
		return
	}
	s.latest.Status = dto.RunStatusSucceeded
	s.latest.Result = result
}

func (s *runService) runOnce(ctx context.Context, id string) (result *pipeline.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("流水线运行 panic", zap.String("run_id", id), zap.Any("panic", p))
			err = errors.New("流水线运行异常终止")
		}
	}()

	runner, err := s.factory(func(state pipeline.State, semester int) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.latest.State = string(state)
		s.latest.Semester = semester
	})
	if err != nil {
		return nil, err
	}
	return runner.Run(ctx, id)
}

