package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"challenge-proof-system/handlers"
	"challenge-proof-system/middleware"
	"challenge-proof-system/models"
	"challenge-proof-system/services"
	"challenge-proof-system/utils"
	"challenge-proof-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env holds what every command needs.
type env struct {
	cfg *utils.Config
	log *zap.Logger
	db  *gorm.DB
}

func bootstrap() (*env, error) {
	cfg, err := utils.LoadConfig()
	if err != nil {
		return nil, err
	}
	log, err := utils.NewLogger(cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(
		&models.Challenge{},
		&models.Submission{},
		&models.LedgerBalance{},
		&models.LedgerCredit{},
		&models.UserProfile{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &env{cfg: cfg, log: log, db: db}, nil
}

func (e *env) rewards() services.RewardPolicy {
	return services.RewardPolicy{
		VerifiedXP:          int64(e.cfg.VerifiedXP),
		VerifiedStreakDelta: int64(e.cfg.VerifiedStreakDelta),
	}
}

// challengeRepo wraps the database store in the Redis cache when REDIS_URL is set.
func (e *env) challengeRepo(ctx context.Context) (services.ChallengeRepository, func(), error) {
	base := services.NewChallengeService(e.db)
	if e.cfg.RedisURL == "" {
		return base, func() {}, nil
	}
	opts, err := redis.ParseURL(e.cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		e.log.Warn("⚠️ [REDIS] ping failed, cache will fall back to the database", zap.Error(err))
	}
	return services.NewCachedChallengeRepository(base, rdb, e.cfg.ChallengeCacheTTL, e.log),
		func() { _ = rdb.Close() }, nil
}

func (e *env) objectStore(ctx context.Context) (services.ObjectStore, error) {
	if e.cfg.StorageDriver == "local" {
		store := utils.NewLocalStore(e.cfg.LocalUploadDir, e.cfg.LocalPublicURL)
		if err := store.EnsureDir(); err != nil {
			return nil, fmt.Errorf("failed to ensure upload dir: %w", err)
		}
		return store, nil
	}
	store, err := utils.NewR2Store(ctx, e.cfg.R2AccountID, e.cfg.R2AccessKeyID, e.cfg.R2AccessSecret, e.cfg.R2Bucket, e.cfg.CDNBaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize R2 client: %w", err)
	}
	return store, nil
}

func (e *env) oracle(ctx context.Context) (services.Oracle, error) {
	var inner services.Oracle
	switch e.cfg.OracleProvider {
	case "gemini":
		g, err := services.NewGeminiOracle(ctx, e.cfg.GeminiAPIKey, e.cfg.GeminiModel, e.log)
		if err != nil {
			return nil, err
		}
		inner = g
	default:
		inner = services.NewOpenRouterOracle(services.OpenRouterConfig{
			APIKey:   e.cfg.OpenRouterAPIKey,
			BaseURL:  e.cfg.OpenRouterBaseURL,
			Model:    e.cfg.OpenRouterModel,
			SiteURL:  e.cfg.OpenRouterSiteURL,
			SiteName: e.cfg.OpenRouterSiteName,
		}, utils.NewHTTPClient(e.cfg.OracleTimeout+5*time.Second), e.log)
	}
	return services.NewRetryingOracle(inner, e.cfg.OracleTimeout, e.cfg.OracleMaxRetries, e.log), nil
}

func (e *env) reconciler(challenges services.ChallengeStore, ledger services.Ledger) *services.CreditReconciler {
	return services.NewCreditReconciler(
		services.NewSubmissionService(e.db), challenges, ledger, e.rewards(), e.cfg.ReconcileGrace, e.log)
}

func runServer(ctx context.Context, e *env) error {
	cfg, log := e.cfg, e.log

	challenges, closeCache, err := e.challengeRepo(ctx)
	if err != nil {
		return err
	}
	defer closeCache()
	store, err := e.objectStore(ctx)
	if err != nil {
		return err
	}
	oracle, err := e.oracle(ctx)
	if err != nil {
		return err
	}

	submissions := services.NewSubmissionService(e.db)
	profiles := services.NewProfileService(e.db)
	ledger := services.NewRewardLedger(e.db, log)
	reconciler := e.reconciler(challenges, ledger)
	pipeline := services.NewVerificationPipeline(services.PipelineDeps{
		Intake:      services.NewSubmissionIntake(store, cfg.MaxUploadBytes, log),
		Oracle:      oracle,
		Challenges:  challenges,
		Profiles:    profiles,
		Submissions: submissions,
		Ledger:      ledger,
		Rewards:     e.rewards(),
		Log:         log,
	})

	app := fiber.New(fiber.Config{
		BodyLimit: int(cfg.MaxUploadBytes) + 1<<20,
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed
	app.Use(middleware.GatewayAuthMiddleware(cfg.ServiceToken, log))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,OPTIONS,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, Cache-Control, X-Device-ID",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	handlers.SetupRoutes(app, handlers.Deps{
		Challenges:  challenges,
		Pipeline:    pipeline,
		Submissions: submissions,
		Progression: services.NewProgressionService(ledger, reconciler, log),
		Ledger:      ledger,
		Reconciler:  reconciler,
		Profiles:    profiles,
		AuthClient:  services.NewAuthServiceClient(cfg.AuthServiceURL, cfg.ServiceToken, utils.NewHTTPClient(10*time.Second), log),
		MaxUpload:   cfg.MaxUploadBytes,
		Log:         log,
	})
	if cfg.StorageDriver == "local" {
		app.Static("/uploads", cfg.LocalUploadDir)
	}

	sched, err := services.StartReconcileScheduler(reconciler, cfg.ReconcileInterval, log)
	if err != nil {
		return fmt.Errorf("start reconcile scheduler: %w", err)
	}
	defer func() { _ = sched.Shutdown() }()

	if cfg.SyncServiceURL != "" {
		syncWorker := workers.NewProfileSyncWorker(e.db, cfg.SyncServiceURL, "/api/v1/public/profiles",
			cfg.ServiceToken, cfg.ProfileSyncPeriod, utils.NewHTTPClient(30*time.Second), log)
		go syncWorker.Run(ctx)
	} else {
		log.Warn("⚠️ SYNC_SERVICE_URL not set, oracle prompts will carry no profile context")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(":" + cfg.Port)
	}()
	log.Info("✅ Server running",
		zap.String("port", cfg.Port),
		zap.String("oracle", cfg.OracleProvider),
		zap.String("storage", cfg.StorageDriver),
		zap.Strings("cors_origins", cfg.AllowedOrigins),
	)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return app.ShutdownWithContext(shutdownCtx)
}
