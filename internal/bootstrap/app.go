package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	httpHandler "collaborative-whiteboard/internal/handler/http"
	wsHandler "collaborative-whiteboard/internal/handler/websocket"
	"collaborative-whiteboard/internal/hub"
	"collaborative-whiteboard/internal/infra/memory"
	gormpersistence "collaborative-whiteboard/internal/infra/persistence/gorm"
	"collaborative-whiteboard/internal/infra/setup"
	redisstate "collaborative-whiteboard/internal/infra/state/redis"
	"collaborative-whiteboard/internal/repository"
	"collaborative-whiteboard/internal/service"
	"collaborative-whiteboard/internal/tasks"
	"collaborative-whiteboard/internal/worker"
)

// App 结构体包含应用的所有组件和配置
type App struct {
	Config      *Config
	Log         *logrus.Logger
	DB          *gorm.DB // 仅 SQL 后端
	RedisClient *redis.Client
	AsynqServer *worker.WorkerServer
	Hub         *hub.Hub
	HttpServer  *http.Server

	redisClientOpt asynq.RedisClientOpt
	scheduler      *asynq.Scheduler
}

// stores 是所选后端提供的两个存储接口
type stores struct {
	commands repository.CommandLog
	rooms    repository.RoomRepository
	db       *gorm.DB
}

// NewApp 创建并初始化应用的所有组件
func NewApp() (*App, error) {
	// 1. 加载配置
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, err
	}

	// 2. 初始化 Logger
	log := newLogger(cfg)
	log.Info("Configuration loaded successfully")

	// 3. 初始化基础设施
	log.Info("Initializing infrastructure...")
	redisClient, err := setup.InitRedis(setup.RedisConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		return nil, fmt.Errorf("failed to init Redis: %w", err)
	}
	stateRepo := redisstate.NewRedisStateRepository(redisClient, cfg.KeyPrefix)

	st, err := openStores(cfg, stateRepo)
	if err != nil {
		_ = redisClient.Close()
		return nil, err
	}
	log.WithField("backend", cfg.StoreBackend).Info("Store backend initialized")

	redisClientOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	// 4. 初始化 Hub 和 Service
	hubInstance := hub.NewHub(st.commands, hub.Options{PersistTimeout: cfg.PersistTimeout, Logger: log})
	roomService := service.NewRoomService(st.rooms, st.commands, hubInstance)
	log.Info("Hub and services initialized")

	// 5. 初始化 Worker Server
	workerServer := worker.NewWorkerServer(redisClientOpt, roomService, cfg.RoomMaxIdle, log)

	// 6. 初始化 Gin Engine 和路由
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := NewRouter(RouterDeps{
		Log:             log,
		Rooms:           httpHandler.NewRoomHandler(roomService, cfg.ActiveRoomWindow),
		WebSocket:       wsHandler.NewWebSocketHandler(hubInstance, cfg.CORSAllowedOrigin),
		Limiter:         stateRepo,
		RateLimitMax:    cfg.RateLimitMax,
		RateLimitWindow: cfg.RateLimitWindow,
		AllowedOrigin:   cfg.CORSAllowedOrigin,
	})
	log.Info("Router setup complete")

	httpServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		Config:         cfg,
		Log:            log,
		DB:             st.db,
		RedisClient:    redisClient,
		AsynqServer:    workerServer,
		Hub:            hubInstance,
		HttpServer:     httpServer,
		redisClientOpt: redisClientOpt,
	}, nil
}

func newLogger(cfg *Config) *logrus.Logger {
	log := logrus.New()
	if cfg.AppEnv == "production" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, ForceColors: true})
	}
	logLevel, _ := logrus.ParseLevel(cfg.LogLevel) // cfg.LogLevel 已被 LoadConfig 验证
	log.SetLevel(logLevel)
	log.SetOutput(os.Stdout)
	// 包级 logrus 调用 (service / worker) 使用相同的配置
	logrus.SetFormatter(log.Formatter)
	logrus.SetLevel(logLevel)
	log.Infof("Logger initialized (Level: %s, Format: %T)", logLevel.String(), log.Formatter)
	return log
}

// openStores 根据 STORE_BACKEND 创建日志和房间存储
func openStores(cfg *Config, stateRepo *redisstate.RedisStateRepository) (stores, error) {
	switch cfg.StoreBackend {
	case BackendMySQL, BackendSQLite:
		var db *gorm.DB
		var err error
		if cfg.StoreBackend == BackendMySQL {
			db, err = setup.InitMySQL(setup.MySQLConfig{
				User: cfg.DBUser, Password: cfg.DBPassword, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
			})
		} else {
			db, err = setup.InitSQLite(cfg.SQLitePath)
		}
		if err != nil {
			return stores{}, fmt.Errorf("failed to init DB: %w", err)
		}
		if err := setup.MigrateDB(db); err != nil {
			return stores{}, fmt.Errorf("failed to migrate DB: %w", err)
		}
		return stores{
			commands: gormpersistence.NewGormCommandRepository(db),
			rooms:    gormpersistence.NewGormRoomRepository(db),
			db:       db,
		}, nil
	case BackendRedis:
		return stores{commands: stateRepo, rooms: stateRepo}, nil
	case BackendMemory:
		mem := memory.NewStore()
		return stores{commands: mem, rooms: mem}, nil
	default:
		return stores{}, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// Start 启动应用的所有后台 Goroutine 和 HTTP 服务器
func (a *App) Start() {
	a.Log.Info("Starting application background routines...")

	if err := a.AsynqServer.Start(); err != nil {
		a.Log.Errorf("Asynq worker server failed to start: %v", err)
	}

	a.registerPeriodicTasks()

	go func() {
		a.Log.Infof("HTTP server starting to listen on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
		a.Log.Info("HTTP server stopped listening.")
	}()
}

func (a *App) registerPeriodicTasks() {
	scheduler := asynq.NewScheduler(a.redisClientOpt, &asynq.SchedulerOpts{Location: time.UTC})

	payload, err := tasks.NewRoomCleanupTask(a.Config.RoomMaxIdle)
	if err != nil {
		a.Log.Errorf("Failed to create room cleanup task payload: %v", err)
		return
	}
	task := asynq.NewTask(tasks.TypeRoomCleanup, payload)

	schedule := a.Config.CleanupSchedule
	entryID, err := scheduler.Register(schedule, task, asynq.Queue("default"), asynq.MaxRetry(3))
	if err != nil {
		a.Log.Errorf("Could not register periodic room cleanup task: %v", err)
		return
	}
	a.Log.Infof("Periodic room cleanup task registered with schedule '%s' (EntryID: %s)", schedule, entryID)

	// Start 不阻塞，也不监听信号，关闭由 Shutdown 负责
	if err := scheduler.Start(); err != nil {
		a.Log.Errorf("Asynq scheduler failed to start: %v", err)
		return
	}
	a.scheduler = scheduler
	a.Log.Info("Asynq scheduler started")
}

// Shutdown 优雅地关闭应用
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	// 1. 停止周期任务和 Worker
	if a.scheduler != nil {
		a.scheduler.Shutdown()
	}
	if a.AsynqServer != nil {
		a.AsynqServer.Shutdown()
	}

	// 2. 优雅关闭 HTTP 服务器，已升级的 WebSocket 连接不受其影响
	a.Log.Info("Shutting down HTTP server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HttpServer.Shutdown(ctx); err != nil {
		a.Log.Errorf("Error shutting down HTTP server: %v", err)
	} else {
		a.Log.Info("HTTP server shut down gracefully.")
	}

	// 3. 关闭 Hub，等待房间日志写入完成
	if a.Hub != nil {
		hubCtx, hubCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := a.Hub.Close(hubCtx); err != nil {
			a.Log.Errorf("Error flushing room logs: %v", err)
		}
		hubCancel()
	}

	// 4. 关闭存储连接
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Log.Errorf("Error closing Redis connection: %v", err)
		} else {
			a.Log.Info("Redis connection closed.")
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				a.Log.Errorf("Error closing database connection: %v", err)
			}
		}
	}

	a.Log.Info("Application shutdown complete.")
}
