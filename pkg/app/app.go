// Package app 提供应用程序的初始化和配置功能.
package app

import (
	contextPkg "context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/api"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/cache"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/configs"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/context"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/jobs"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/service"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/storage"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/worker"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/log"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/metrics"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/middleware"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/scheduler"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/tracing"
)

type App struct {
	Engine  *gin.Engine
	config  *configs.AppConfig
	manager *storage.Manager
	sched   *scheduler.Scheduler
	worker  *worker.Worker

	cancelWorker contextPkg.CancelFunc
}

func NewApp(configPath string) *App {
	ctx := contextPkg.Background()

	// 初始化配置
	if err := configs.InitConfig(configPath); err != nil {
		fmt.Printf("Error initializing config: %v\n", err)
		os.Exit(1)
	}

	log.Init()

	config := configs.GetConfig()
	if !config.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// 初始化追踪
	if err := tracing.InitTracer(config.Tracing); err != nil {
		fmt.Printf("Error initializing tracing: %v\n", err)
		os.Exit(1)
	}

	// 初始化监控
	if err := metrics.InitMetrics(config.Metrics); err != nil {
		fmt.Printf("Error initializing metrics: %v\n", err)
		os.Exit(1)
	}

	manager, err := storage.Init(ctx)
	if err != nil {
		fmt.Printf("Error initializing storage: %v\n", err)
		os.Exit(1)
	}

	if err := service.AutoMigrate(manager.GetDBClient()); err != nil {
		fmt.Printf("Error migrating database: %v\n", err)
		os.Exit(1)
	}

	l := log.Logger()
	gin.DefaultWriter = log.NewGinWriter(l, zerolog.InfoLevel)
	gin.DefaultErrorWriter = log.NewGinWriter(l, zerolog.ErrorLevel)

	engine.Use(
		gin.Recovery(),
		middleware.GinLoggerMiddleware(),
		middleware.StorageMiddleware(manager),
		middleware.CORSMiddleware(config.Server),
		gzip.Gzip(gzip.DefaultCompression),
		middleware.TracingMiddleware(),
		middleware.PrometheusMiddleware(),
	)

	if config.Server.RateLimit.Enabled {
		engine.Use(middleware.RateLimitMiddleware(config.Server.RateLimit))
	}

	if config.Server.CircuitBreaker.Enabled {
		engine.Use(middleware.CircuitBreakerMiddleware(config.Server.CircuitBreaker))
	}

	// GET 查询走短 TTL 响应缓存，健康检查除外
	if kvc := manager.GetKVClient(); kvc != nil {
		cacheCfg := middleware.DefaultCacheConfig(cache.NewCache(kvc))
		cacheCfg.Skipper = func(c *gin.Context) bool {
			return strings.HasPrefix(c.Request.URL.Path, "/api/v1/health")
		}
		engine.Use(middleware.CacheMiddleware(cacheCfg))
	}

	// 定时任务: 临时文件清扫与失败指纹重投
	sched, err := scheduler.NewScheduler()
	if err != nil {
		fmt.Printf("Error initializing scheduler: %v\n", err)
		os.Exit(1)
	}

	if err := jobs.RegisterCronJobs(sched, manager); err != nil {
		fmt.Printf("Error registering cron jobs: %v\n", err)
		os.Exit(1)
	}

	engine.Use(middleware.SchedulerMiddleware(sched))
	sched.Start()

	api.RegisterGroup(engine)

	if config.Metrics.Enabled {
		_ = metrics.StartMetricsServer(config.Metrics, engine)
	}

	a := &App{
		Engine:  engine,
		config:  config,
		manager: manager,
		sched:   sched,
	}

	// MQ 可用时挂载事件消费者，订阅资产入库与显式生成请求
	if mqc := manager.GetMQClient(); mqc != nil {
		svcCtx := context.WithStorageManager(contextPkg.Background(), manager)
		a.worker = worker.New(mqc, service.NewFingerprintService(svcCtx))
	}

	return a
}

// Run 启动事件消费者（若有）并阻塞运行 HTTP 服务.
func (a *App) Run() error {
	if a.worker != nil {
		ctx, cancel := contextPkg.WithCancel(context.WithStorageManager(contextPkg.Background(), a.manager))
		a.cancelWorker = cancel

		go func() {
			if err := a.worker.Run(ctx); err != nil && ctx.Err() == nil {
				log.Logger().Error().Err(err).Msg("指纹消费者退出")
			}
		}()
	}

	return a.Engine.Run(fmt.Sprintf("%s:%d", a.config.Server.Host, a.config.Server.Port))
}

// Close 停止消费者与定时任务.
func (a *App) Close() error {
	if a.cancelWorker != nil {
		a.cancelWorker()
	}

	if a.sched != nil {
		return a.sched.Shutdown()
	}

	return nil
}
