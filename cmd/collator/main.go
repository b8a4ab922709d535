package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"timetable-collator/config"
	"timetable-collator/internal/api/handler"
	"timetable-collator/internal/api/router"
	"timetable-collator/internal/cache"
	"timetable-collator/internal/calendar"
	"timetable-collator/internal/client"
	"timetable-collator/internal/dto"
	"timetable-collator/internal/pipeline"
	"timetable-collator/internal/repository"
	"timetable-collator/internal/service"
	"timetable-collator/pkg/database"
	applogger "timetable-collator/pkg/logger"
	"timetable-collator/pkg/objectstore"
	"timetable-collator/pkg/redis"
)

const usage = `用法: collator [-config path] [run|serve]

  run    执行一次完整的学年数据整理（默认）
  serve  按 schedule.cron 定时运行，并提供运维 HTTP 接口
`

func main() {
	configPath := flag.String("config", "", "配置文件路径（默认查找 ./config/config.yaml 与 ./config.yaml）")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	mode := "run"
	if flag.NArg() > 0 {
		mode = flag.Arg(0)
	}
	if mode != "run" && mode != "serve" {
		flag.Usage()
		os.Exit(2)
	}

	// 0. .env 仅作为环境变量来源，不存在时忽略
	_ = godotenv.Load()

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.String("mode", mode),
		zap.String("acad_year", cfg.App.AcademicYear),
		zap.Ints("semesters", cfg.App.Semesters),
		zap.String("cache", cfg.Cache.Driver),
		zap.String("storage", cfg.Storage.Driver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. 组装依赖
	deps, err := buildDeps(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("初始化依赖失败", zap.Error(err))
	}
	defer deps.close()

	runSvc := service.NewRunService(deps.runnerFactory(cfg, logger), logger)

	switch mode {
	case "run":
		code := runOnce(ctx, runSvc, logger)
		// os.Exit 不执行 defer
		deps.close()
		_ = logger.Sync()
		os.Exit(code)
	case "serve":
		serve(ctx, cfg, runSvc, logger)
	}
}

// runOnce 执行一次运行，返回进程退出码
func runOnce(ctx context.Context, runSvc service.RunService, logger *zap.Logger) int {
	status, err := runSvc.Run(ctx)
	if err != nil {
		logger.Error("启动运行失败", zap.Error(err))
		return 1
	}
	if status.Status != dto.RunStatusSucceeded {
		return 1
	}
	return 0
}

// serve 定时运行 + 运维 HTTP 接口，收到信号后优雅关闭
func serve(ctx context.Context, cfg *config.Config, runSvc service.RunService, logger *zap.Logger) {
	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger.Named("cron")))
	scheduler := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))
	if _, err := scheduler.AddFunc(cfg.Schedule.Cron, func() {
		if _, err := runSvc.Run(ctx); err != nil && !errors.Is(err, service.ErrRunInProgress) {
			logger.Error("定时运行失败", zap.Error(err))
		}
	}); err != nil {
		logger.Fatal("定时任务配置无效", zap.String("cron", cfg.Schedule.Cron), zap.Error(err))
	}
	scheduler.Start()
	logger.Info("定时任务已启动", zap.String("cron", cfg.Schedule.Cron))

	h := handler.NewHandler(runSvc)
	engine := router.Setup(h, logger)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("收到关闭信号，开始优雅关闭...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}
	// 等待进行中的定时运行结束
	<-scheduler.Stop().Done()
	// 取消并等待通过 API 触发的运行
	if err := runSvc.Shutdown(shutdownCtx); err != nil {
		logger.Error("后台运行未能在超时前结束", zap.Error(err))
	}

	logger.Info("服务器已关闭")
}

// ── 依赖组装 ──

type deps struct {
	cache    cache.Cache
	store    repository.Store
	cal      *calendar.Calendar
	location *time.Location
	closers  []func() error
}

func (d *deps) close() {
	for _, c := range d.closers {
		_ = c()
	}
}

func buildDeps(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*deps, error) {
	d := &deps{}

	cal, err := calendar.New(cfg.Calendar.Overrides)
	if err != nil {
		return nil, fmt.Errorf("校历配置无效: %w", err)
	}
	d.cal = cal

	loc, err := time.LoadLocation(cfg.App.Timezone)
	if err != nil {
		return nil, fmt.Errorf("时区无效 %q: %w", cfg.App.Timezone, err)
	}
	d.location = loc

	// 缓存
	switch cfg.Cache.Driver {
	case "redis":
		rdb, err := redis.NewClient(&cfg.Redis, &cfg.Cache, logger)
		if err != nil {
			return nil, err
		}
		d.cache = rdb
		d.closers = append(d.closers, rdb.Close)
	default:
		d.cache = cache.NewMemory(cfg.Cache.DefaultTTL, 10*time.Minute)
	}

	// 产物存储
	var backend repository.Backend
	switch cfg.Storage.Driver {
	case "postgres":
		db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
		}
		d.closers = append(d.closers, sqlDB.Close)
		if err := database.RunMigrations(sqlDB, logger); err != nil {
			return nil, err
		}
		backend = repository.NewPostgresBackend(db)
	case "minio":
		oc, err := objectstore.NewClient(ctx, &cfg.MinIO, logger)
		if err != nil {
			return nil, err
		}
		backend = repository.NewObjectBackend(oc)
	default:
		backend = repository.NewFSBackend(cfg.Storage.DataDir)
	}
	d.store = repository.NewDocumentStore(backend)

	return d, nil
}

// runnerFactory 每次运行构造新的上游客户端与流水线
func (d *deps) runnerFactory(cfg *config.Config, logger *zap.Logger) service.RunnerFactory {
	return func(onState pipeline.StateFunc) (service.Runner, error) {
		c := client.New(&cfg.API, logger.Named("client"))
		opts := pipeline.Options{
			AcademicYear: cfg.App.AcademicYear,
			Semesters:    cfg.App.Semesters,
			Location:     d.location,
			Concurrency:  cfg.API.Concurrency,
			Retry: pipeline.RetryPolicy{
				Attempts: cfg.Retry.Attempts,
				Backoff:  cfg.Retry.Backoff,
			},
			DefaultTTL: cfg.Cache.DefaultTTL,
			OrgTTL:     cfg.Cache.OrgTTL,
			ExamTTL:    cfg.Cache.ExamTTL,
			DryRun:     cfg.Reconcile.DryRun,
			OnState:    onState,
		}
		return pipeline.New(c, d.cache, d.store, d.cal, opts, logger.Named("pipeline")), nil
	}
}
