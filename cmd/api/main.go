package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/challenge-api/internal/config"
	"github.com/noah-isme/challenge-api/internal/database"
	"github.com/noah-isme/challenge-api/internal/events"
	"github.com/noah-isme/challenge-api/internal/handler"
	"github.com/noah-isme/challenge-api/internal/jobs"
	"github.com/noah-isme/challenge-api/internal/middleware"
	"github.com/noah-isme/challenge-api/internal/models"
	"github.com/noah-isme/challenge-api/internal/observability"
	"github.com/noah-isme/challenge-api/internal/repository"
	"github.com/noah-isme/challenge-api/internal/router"
	"github.com/noah-isme/challenge-api/internal/service"
	"github.com/noah-isme/challenge-api/pkg/judge"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	observability.RegisterMetrics()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(models.All()...); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	if natsConn != nil {
		defer natsConn.Drain()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	challengeRepo := repository.NewChallengeRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	voteRepo := repository.NewVoteRepository(db)
	userRepo := repository.NewUserRepository(db)
	rewardRepo := repository.NewRewardRepository(db)

	var judgeSource service.WeeklyLeaderboardSource
	if cfg.JudgeBaseURL != "" {
		client, err := judge.NewClient(judge.Config{
			BaseURL: cfg.JudgeBaseURL,
			APIKey:  cfg.JudgeAPIKey,
			Timeout: cfg.JudgeTimeout,
			Logger:  logger,
		})
		if err != nil {
			log.Fatalf("failed to create judge client: %v", err)
		}
		judgeSource = client
	} else {
		logger.Warn().Msg("judge base url not configured; code challenge results cannot be published")
	}

	bus := newLifecycleBus(cfg, natsConn, redisClient, logger)

	leaderboardCache := service.NewLeaderboardCache(redisClient, voteRepo, submissionRepo, logger)
	voteService := service.NewVoteService(challengeRepo, submissionRepo, voteRepo, leaderboardCache, cfg.LeaderboardCacheTimeout, validate, logger)
	lifecycleService := service.NewChallengeLifecycleService(challengeRepo, bus, logger)
	adminService := service.NewChallengeAdminService(challengeRepo, rewardRepo, leaderboardCache, validate, logger)
	rewardService := service.NewRewardService(
		challengeRepo, submissionRepo, voteRepo, userRepo, rewardRepo,
		judgeSource, redisClient,
		service.RewardConfig{ApplyCredits: cfg.RewardApplyCredits, IdempotencyTTL: cfg.RewardIdempotencyTTL},
		validate, logger,
	)
	creditService := service.NewCreditService(rewardRepo, cfg.RewardApplyCredits, logger)

	autoPublisher := service.NewRewardAutoPublisher(rewardService, challengeRepo, service.AutoPublishConfig{
		Enabled: cfg.RewardAuto.Enabled,
		DryRun:  cfg.RewardAuto.DryRun,
		Delay:   cfg.RewardAuto.Delay,
		Rule:    service.RewardRule{Top: cfg.RewardAuto.Top, Participant: cfg.RewardAuto.Participant},
	}, logger)
	bus.Subscribe("reward_auto_publisher", autoPublisher.HandleLifecycle)

	var scheduler *jobs.Scheduler
	if cfg.SchedulerEnabled {
		scheduler, err = jobs.NewScheduler(lifecycleService, jobs.Config{
			Spec:     cfg.SchedulerSpec,
			Timezone: cfg.SchedulerTimezone,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create scheduler: %v", err)
		}
		if err := scheduler.Start(context.Background()); err != nil {
			log.Fatalf("failed to start scheduler: %v", err)
		}
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		VoteHandler:           handler.NewVoteHandler(voteService, logger),
		LeaderboardHandler:    handler.NewLeaderboardHandler(leaderboardCache, cfg.LeaderboardDefaultLimit, logger),
		CreditHandler:         handler.NewCreditHandler(creditService, logger),
		AdminChallengeHandler: handler.NewAdminChallengeHandler(adminService, lifecycleService, validate, logger),
		AdminRewardHandler:    handler.NewAdminRewardHandler(rewardService, validate, logger),
		HealthProbes:          healthProbes(db, redisClient),
		JWTMiddleware:         middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, scheduler, autoPublisher)
}

func newLifecycleBus(cfg config.Config, natsConn *nats.Conn, redisClient *redis.Client, logger zerolog.Logger) *events.Bus {
	bus := events.NewBus(logger)
	subject := cfg.EventsChannelBase + ".lifecycle"
	if publisher := events.NewNATSPublisher(natsConn, subject, cfg.AppName); publisher != nil {
		bus.AddPublisher(publisher)
	}
	if publisher := events.NewRedisPublisher(redisClient, cfg.EventsChannelBase+":lifecycle", cfg.AppName); publisher != nil {
		bus.AddPublisher(publisher)
	}
	return bus
}

func healthProbes(db *gorm.DB, redisClient *redis.Client) map[string]handler.HealthProbe {
	return map[string]handler.HealthProbe{
		"postgres": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"redis": func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
	}
}

func waitForShutdown(app *fiber.App, scheduler *jobs.Scheduler, autoPublisher *service.RewardAutoPublisher) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if scheduler != nil {
		scheduler.Stop()
	}
	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
	autoPublisher.Wait()

	log.Println("server stopped")
}
