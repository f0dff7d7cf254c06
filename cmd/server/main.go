package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"velovis/internal/api"
	"velovis/internal/auth"
	"velovis/internal/config"
	"velovis/internal/mailer"
	"velovis/internal/model"
	"velovis/internal/ratelimit"
	"velovis/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	// 初始化配置
	cfg, err := config.ParseConfig()
	if err != nil {
		logrus.WithError(err).Fatal("failed to parse config")
	}

	// 初始化logger
	setupLogger(cfg)

	// 缺少签名密钥时拒绝启动
	tokens, err := auth.NewTokenService(auth.OptionsFromConfig(cfg))
	if err != nil {
		logrus.WithError(err).Fatal("token service misconfigured")
	}

	repo, err := model.InitRepository(&cfg)
	if err != nil {
		logrus.WithError(err).Fatal("failed to initialise repository")
	}
	seedCtx, cancelSeed := context.WithTimeout(context.Background(), 30*time.Second)
	if err := model.SeedDefaults(seedCtx, repo, cfg); err != nil {
		cancelSeed()
		logrus.WithError(err).Fatal("failed to seed roles")
	}
	cancelSeed()

	mail, err := mailer.New(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("failed to initialise mailer")
	}

	sessions := service.NewSessionManager(repo, tokens)
	recovery := service.NewCredentialRecovery(repo, tokens, mail, service.RecoveryOptionsFromConfig(cfg))
	roles := service.NewRoleService(repo)

	if limiter, closeRedis := newLimiter(cfg); limiter != nil {
		defer closeRedis()
		sessions.SetThrottle(limiter)
		recovery.SetThrottle(limiter)
	}

	httpHandler := api.NewHTTPHandler(repo, sessions, recovery, roles, cfg.FrontendURL)

	// 设置Gin模式
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// 添加中间件
	r.Use(LoggingMiddleware())
	r.Use(CORSMiddleware())
	r.Use(gin.Recovery())

	r.GET("/health", httpHandler.Health)
	httpHandler.RegisterRoutes(r)

	serverHost := fmt.Sprintf("0.0.0.0:%s", cfg.HTTPPort)
	httpServer := &http.Server{
		Addr:         serverHost,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.WithField("host", serverHost).Info("server starting")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("graceful shutdown failed")
	}
	logrus.Info("server stopped")
}

func setupLogger(cfg config.Config) {
	if cfg.LogJSON {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(strings.TrimSpace(cfg.LogLevel))
	if err != nil {
		logrus.WithField("level", cfg.LogLevel).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

// newLimiter connects to Redis when REDIS_ADDR is set. Throttling is off otherwise.
func newLimiter(cfg config.Config) (*ratelimit.Limiter, func()) {
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		logrus.Info("REDIS_ADDR not set, rate limiting disabled")
		return nil, func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logrus.WithError(err).Warn("redis unreachable at boot, rate limiter will allow requests until it recovers")
	}
	limiter := ratelimit.New(client, cfg.RateLimitKeyPrefix, map[string]ratelimit.Rule{
		ratelimit.ScopeLogin:          {MaxAttempts: cfg.LoginMaxAttempts, Window: cfg.LoginWindow},
		ratelimit.ScopeForgotPassword: {MaxAttempts: cfg.ForgotMaxAttempts, Window: cfg.ForgotWindow},
	})
	return limiter, func() { _ = client.Close() }
}

// CORSMiddleware CORS跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// LoggingMiddleware 日志记录中间件
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		// 处理请求
		c.Next()
		// 记录请求结束
		duration := time.Since(start)
		logrus.WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"duration":  duration.String(),
			"size":      c.Writer.Size(),
			"client_ip": c.ClientIP(),
		}).Info("http_request")
	}
}
