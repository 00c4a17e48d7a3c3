package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	apirest "github.com/sevenday/challenge/server/api/rest"
	"github.com/sevenday/challenge/server/api/sse"
	"github.com/sevenday/challenge/server/audit"
	"github.com/sevenday/challenge/server/board"
	"github.com/sevenday/challenge/server/cache"
	"github.com/sevenday/challenge/server/calendar"
	"github.com/sevenday/challenge/server/challenge"
	"github.com/sevenday/challenge/server/config"
	dbadapter "github.com/sevenday/challenge/server/db"
	"github.com/sevenday/challenge/server/hook"
	"github.com/sevenday/challenge/server/leaderboard"
	mw "github.com/sevenday/challenge/server/middleware"
	"github.com/sevenday/challenge/server/model"
	"github.com/sevenday/challenge/server/notify"
	"github.com/sevenday/challenge/server/persona"
	"github.com/sevenday/challenge/server/quest"
	"github.com/sevenday/challenge/server/reward"
	"github.com/sevenday/challenge/server/scheduler"
	"github.com/sevenday/challenge/server/streak"
	"github.com/sevenday/challenge/server/subflow"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

const profileNameTTL = 10 * time.Minute

// app is the fully wired server.
type app struct {
	router *gin.Engine
	db     *gorm.DB
	cache  cache.Cache
	pubsub cache.PubSub
	sched  *scheduler.Scheduler
	audit  *audit.Service
	logger *zap.Logger
}

// newApp opens the stores, loads the catalog and wires every service and
// route. Close releases what it opened.
func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	if cfg.Security.JWTSecret == "" {
		return nil, errors.New("security.jwt_secret is not set")
	}
	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; admin endpoints are disabled")
	}

	// ---- Catalog ----
	catalog, err := quest.LoadCatalog(cfg.Challenge.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	logger.Info("catalog loaded",
		zap.String("path", cfg.Challenge.CatalogPath),
		zap.Int("quests", len(catalog.Quests())),
		zap.Int("artifacts", len(catalog.Artifacts())))

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	closeDB := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if err := model.AutoMigrate(db); err != nil {
		closeDB()
		return nil, fmt.Errorf("db migrate: %w", err)
	}
	logger.Info("DB initialized", zap.String("mode", cfg.Database.Mode))

	// ---- Cache / PubSub ----
	cacheConfig := cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
		LocalPubSubBuf:  cfg.Cache.LocalPubSubBuf,
		KeyPrefix:       cfg.Cache.KeyPrefix,
	}
	c, err := cache.NewCache(cacheConfig)
	if err != nil {
		closeDB()
		return nil, fmt.Errorf("cache: %w", err)
	}
	pubsub, err := cache.NewPubSub(cacheConfig)
	if err != nil {
		_ = c.Close()
		closeDB()
		return nil, fmt.Errorf("pubsub: %w", err)
	}
	logger.Info("Cache initialized", zap.Bool("redis", cfg.Cache.RedisAddr != ""))

	a := &app{
		db:     db,
		cache:  c,
		pubsub: pubsub,
		sched:  scheduler.New(logger),
		audit:  audit.New(db, logger),
		logger: logger,
	}

	// ---- Engine ----
	hooks := hook.NewCenter()
	elig := quest.NewEligibility(catalog, persona.NewTable(cfg.Challenge.PersonaAliases))
	inbox := notify.NewInbox(c, pubsub, cfg.Challenge.InboxSize, logger)
	inbox.Register(hooks)
	publisher := sse.NewPublisher(pubsub, logger)
	publisher.Register(hooks)

	svc := challenge.NewService(db, catalog, logger)
	svc.SetStreakDetector(streak.NewDetector(db, logger))
	svc.SetNotifier(inbox)
	svc.SetSubflows(subflow.Default(db, logger))
	svc.SetGates(subflow.NewGates(db))
	svc.SetHooks(hooks)

	accountant := reward.NewAccountant(db, catalog, elig, cfg.Challenge.BonusRate, logger)
	accountant.SetHooks(hooks)
	builder := board.NewBuilder(elig, svc.Validator(), svc.Ledger(), accountant)
	projector := leaderboard.NewProjector(db, c, profileNameTTL, logger)

	// ---- Periodic Scheduler Tasks ----
	if cfg.Challenge.LeaderboardRefresh > 0 {
		a.sched.AddTicker("leaderboard_refresh", cfg.Challenge.LeaderboardRefresh, publisher.Ping)
	}

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	chH := apirest.NewChallengeHandler(svc, builder, accountant, a.sched, a.audit, cfg.Challenge.BonusDelay, logger)
	lbH := apirest.NewLeaderboardHandler(svc, projector)
	prH := apirest.NewProfileHandler(svc, projector, hooks, logger)
	ntH := apirest.NewNotificationHandler(inbox)
	adminH := apirest.NewAdminHandler(accountant, a.sched, logger)

	loc := calendar.LoadLocation(cfg.Challenge.DefaultTimezone, time.UTC)
	api := r.Group("/api")
	{
		userG := api.Group("")
		userG.Use(
			mw.Auth(cfg.Security),
			mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst),
			mw.Timezone(loc),
		)
		userG.POST("/challenge/start", chH.Start)
		userG.GET("/challenge", chH.Load)
		userG.GET("/challenge/artifacts", chH.Artifacts)
		userG.POST("/challenge/bonus/:category", chH.Bonus)
		userG.POST("/quests/:id/complete", chH.Complete)
		userG.GET("/leaderboard", lbH.Get)
		userG.PUT("/profile", prH.Update)
		userG.GET("/notifications", ntH.List)
		userG.DELETE("/notifications", ntH.Clear)

		adminG := api.Group("/admin")
		adminG.Use(mw.IPWhitelist(cfg.Server.AdminIPs), apirest.AdminAuth(cfg.Server.AdminKey))
		adminG.GET("/challenges/:id/reconcile", adminH.Reconcile)
		adminG.GET("/scheduler", adminH.ListSchedulerTasks)
	}

	// ---- SSE ----
	sseH := sse.NewHandler(pubsub, cfg.Security, logger)
	r.GET("/sse", sseH.ServeSSE)

	a.router = r
	return a, nil
}

// Close stops background work, flushes the audit queue and closes the stores.
func (a *app) Close(ctx context.Context) {
	a.sched.Stop()
	a.audit.Stop(ctx)
	if err := a.pubsub.Close(); err != nil {
		a.logger.Warn("pubsub close failed", zap.Error(err))
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Warn("cache close failed", zap.Error(err))
	}
	if sqlDB, err := a.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			a.logger.Warn("db close failed", zap.Error(err))
		}
	}
}
