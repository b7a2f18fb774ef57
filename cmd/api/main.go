package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jurimate/casedraft-backend/internal/collab"
	"github.com/jurimate/casedraft-backend/internal/config"
	"github.com/jurimate/casedraft-backend/internal/domain"
	"github.com/jurimate/casedraft-backend/internal/handler"
	"github.com/jurimate/casedraft-backend/internal/middleware"
	"github.com/jurimate/casedraft-backend/internal/migration"
	"github.com/jurimate/casedraft-backend/internal/repository"
	"github.com/jurimate/casedraft-backend/internal/service"
	"github.com/jurimate/casedraft-backend/internal/session"
	"github.com/jurimate/casedraft-backend/internal/ws"
	pkgcache "github.com/jurimate/casedraft-backend/pkg/cache"
	"github.com/jurimate/casedraft-backend/pkg/jwt"
	pkglogger "github.com/jurimate/casedraft-backend/pkg/logger"
	pkgredis "github.com/jurimate/casedraft-backend/pkg/redis"
)

// getConfigPath returns config file path based on APP_ENV environment variable
func getConfigPath() string {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf("configs/config.%s.yaml", env)
}

func main() {
	dotenvFiles := config.LoadDotEnv()

	// 로거 초기화
	pkglogger.Init()
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	pkglogger.InitStructured(env)
	pkglogger.Info("APP_ENV=%s, loaded env files: %v", env, dotenvFiles)

	// 설정 로드
	configPath := getConfigPath()
	pkglogger.Info("Loading config from: %s", configPath)
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	config.LogResolved(cfg)

	// MySQL 연결
	db, err := initDB(cfg)
	if err != nil {
		pkglogger.Info("Warning: Failed to connect to database: %v (continuing without DB)", err)
		db = nil
	} else {
		pkglogger.Info("Connected to MySQL")
		if err := migration.Run(db); err != nil {
			pkglogger.Info("Migration warning: %v", err)
		}
	}

	// Redis 연결
	redisClient, err := pkgredis.NewClient(
		cfg.Redis.Host,
		cfg.Redis.Port,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Redis.PoolSize,
	)
	if err != nil {
		pkglogger.Info("Warning: Failed to connect to Redis: %v (continuing without Redis)", err)
		redisClient = nil
	} else {
		pkglogger.Info("Connected to Redis")
	}

	// Cache Service (Redis 없으면 no-op으로 동작)
	cacheService := pkgcache.NewService(redisClient)

	// Collaboration Broker: Redis가 있으면 인스턴스 간 전파, 없으면 단일 인스턴스
	var broker collab.Broker
	if redisClient != nil {
		broker = collab.NewRedisBroker(redisClient)
		pkglogger.Info("Collaboration broker: redis")
	} else {
		broker = collab.NewMemoryBroker()
		pkglogger.Info("Collaboration broker: in-memory")
	}

	// WebSocket Hub
	var sessions *session.Manager
	wsHub := ws.NewHub(func(caseID string) {
		// 마지막 연결이 끊긴 사건은 presence 키를 지우고 세션을 회수한다
		if sessions != nil {
			if s := sessions.Get(caseID); s != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				_ = cacheService.ClearPresence(ctx, caseID, s.ClientID())
				cancel()
			}
			sessions.Remove(caseID)
		}
	})
	go wsHub.Run()

	// Draft 세션 매니저
	sessionCfg := session.Config{
		HistoryLimit:     cfg.Draft.HistoryLimit,
		ChangeLogLimit:   cfg.Draft.ChangeLogLimit,
		SnippetLimit:     cfg.Draft.SnippetLimit,
		AutosaveInterval: cfg.Draft.AutosaveInterval,
		DebounceDelay:    cfg.Draft.DebounceDelay,
		Heartbeat:        cfg.Draft.Heartbeat,
	}

	var draftService service.DraftService
	if db != nil {
		draftService = service.NewDraftService(
			repository.NewDraftRepository(db),
			repository.NewVersionRepository(db),
			repository.NewCommentRepository(db),
			repository.NewChangeLogRepository(db),
			cacheService,
		)
	} else {
		pkglogger.Info("Warning: running without persistence (no DB connection)")
	}

	notify := func(caseID string, n domain.Notice) {
		wsHub.SendToCase(caseID, &ws.Event{Type: ws.EventNotice, Payload: n})
	}
	// 하트비트마다 presence TTL을 갱신해 유휴 세션도 편집 중으로 표시된다
	presence := func(caseID, clientID string) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = cacheService.MarkPresence(ctx, caseID, clientID)
	}
	sessions = session.NewManager(sessionCfg, broker, draftService, notify, presence, cfg.Draft.SessionIdleTTL)
	sessions.Start(context.Background())

	// 세션 수 게이지 갱신
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			middleware.SetActiveDraftSessions(float64(sessions.Count()))
			if db != nil {
				if sqlDB, err := db.DB(); err == nil {
					middleware.SetDBConnectionsActive(float64(sqlDB.Stats().OpenConnections))
				}
			}
		}
	}()

	// JWT Manager
	jwtManager := jwt.NewManager(
		cfg.JWT.Secret,
		cfg.JWT.ExpiresIn,
		cfg.JWT.RefreshIn,
	)

	// Gin 라우터 생성
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	// CORS 설정
	allowOrigins := cfg.CORS.AllowedOrigins
	if allowOrigins == "" {
		allowOrigins = "http://localhost:3000"
	}
	corsConfig := cors.Config{
		AllowOrigins:     splitAndTrim(allowOrigins, ","),
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		ExposeHeaders:    []string{"X-Request-ID"},
		MaxAge:           86400,
	}
	router.Use(cors.New(corsConfig))

	// Middleware
	router.Use(middleware.Metrics())
	router.Use(middleware.RequestLogger())

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "casedraft-backend",
			"time":    time.Now().Unix(),
		})
	})

	// API routes (only if DB is connected)
	if draftService != nil {
		draftHandler := handler.NewDraftHandler(sessions, draftService)
		commentHandler := handler.NewCommentHandler(sessions, draftService)
		versionHandler := handler.NewVersionHandler(sessions, draftService)

		api := router.Group("/api/v2")
		api.Use(middleware.JWTAuth(jwtManager))

		draft := api.Group("/cases/:caseId/draft")
		{
			draft.GET("", draftHandler.Get)
			draft.PUT("", draftHandler.Save)
			draft.PUT("/tracking", draftHandler.SetTracking)
			draft.GET("/changes", draftHandler.ListChanges)
			draft.GET("/presence", draftHandler.Presence)

			draft.GET("/comments", commentHandler.List)
			draft.POST("/comments", commentHandler.Add)
			draft.PATCH("/comments/:commentId/resolve", commentHandler.ToggleResolved)

			draft.GET("/versions", versionHandler.List)
			draft.POST("/versions", versionHandler.Create)
			draft.GET("/versions/:versionId", versionHandler.Get)
			draft.POST("/versions/:versionId/restore", versionHandler.Restore)
		}
	} else {
		pkglogger.Info("Skipping API route setup (no DB connection)")
	}

	// WebSocket (토큰은 쿼리 파라미터로 전달)
	wsHandler := handler.NewWSHandler(wsHub, sessions, cacheService, allowOrigins)
	wsGroup := router.Group("/ws")
	wsGroup.Use(middleware.JWTAuth(jwtManager))
	{
		wsGroup.GET("/cases/:caseId/draft", wsHandler.Connect)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	// 서버 시작
	addr := ":" + cfg.Server.Port
	pkglogger.Info("Server listening on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// splitAndTrim splits a comma-separated string into trimmed parts
func splitAndTrim(s, delimiter string) []string {
	var parts []string
	for _, part := range strings.Split(s, delimiter) {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

// initDB MySQL 연결 초기화
func initDB(cfg *config.Config) (*gorm.DB, error) {
	mysqlCfg, err := mysqldriver.ParseDSN(cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("DSN 파싱 실패: %w", err)
	}
	if mysqlCfg.Params == nil {
		mysqlCfg.Params = map[string]string{}
	}
	mysqlCfg.Params["time_zone"] = "'+09:00'"

	db, err := gorm.Open(mysql.Open(mysqlCfg.FormatDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}
