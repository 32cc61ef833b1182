package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// 存储后端
const (
	BackendMySQL  = "mysql"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config 结构体用于存储从环境变量或文件加载的配置
type Config struct {
	ServerPort string
	AppEnv     string // development / production
	LogLevel   string

	StoreBackend string
	DBUser       string
	DBPassword   string
	DBHost       string
	DBPort       string
	DBName       string
	SQLitePath   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string // Redis Key 前缀

	RateLimitMax      int
	RateLimitWindow   time.Duration
	CORSAllowedOrigin string

	RoomMaxIdle      time.Duration
	ActiveRoomWindow time.Duration
	CleanupSchedule  string
	PersistTimeout   time.Duration
}

// LoadConfig 从环境变量加载配置
func LoadConfig() (*Config, error) {
	// 优先加载 .env 文件 (如果存在)
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:        envString("SERVER_PORT", "8080"),
		AppEnv:            envString("APP_ENV", "development"),
		LogLevel:          envString("LOG_LEVEL", "info"),
		StoreBackend:      strings.ToLower(envString("STORE_BACKEND", BackendMySQL)),
		DBUser:            os.Getenv("DB_USER"),
		DBPassword:        os.Getenv("DB_PASSWORD"),
		DBHost:            envString("DB_HOST", "127.0.0.1"),
		DBPort:            envString("DB_PORT", "3306"),
		DBName:            envString("DB_NAME", "whiteboard"),
		SQLitePath:        envString("SQLITE_PATH", "./data/whiteboard.db"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           envInt("REDIS_DB", 0),
		KeyPrefix:         envString("REDIS_KEY_PREFIX", "wb:"),
		RateLimitMax:      envInt("RATE_LIMIT_MAX", 100),
		RateLimitWindow:   envDuration("RATE_LIMIT_WINDOW", time.Second),
		CORSAllowedOrigin: envString("CORS_ALLOWED_ORIGIN", "*"),
		RoomMaxIdle:       envDuration("ROOM_MAX_IDLE", 24*time.Hour),
		ActiveRoomWindow:  envDuration("ACTIVE_ROOM_WINDOW", 30*time.Minute),
		CleanupSchedule:   envString("CLEANUP_SCHEDULE", "@every 1h"),
		PersistTimeout:    envDuration("PERSIST_TIMEOUT", 5*time.Second),
	}

	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("environment variable REDIS_ADDR must be set")
	}
	switch cfg.StoreBackend {
	case BackendMySQL:
		if cfg.DBUser == "" {
			return nil, fmt.Errorf("environment variable DB_USER must be set for the mysql backend")
		}
	case BackendSQLite, BackendRedis, BackendMemory:
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q (want mysql, sqlite, redis or memory)", cfg.StoreBackend)
	}

	// 验证日志级别
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", cfg.LogLevel)
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// envInt 解析正整数，REDIS_DB 允许 0
func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 || (v == 0 && key != "REDIS_DB") {
		logrus.Warnf("Invalid %s '%s', using default %d", key, raw, def)
		return def
	}
	return v
}

func envDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		logrus.Warnf("Invalid %s '%s', using default %s", key, raw, def)
		return def
	}
	return v
}
