package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/ignatzorin/civic-intake/internal/ai"
	"github.com/ignatzorin/civic-intake/internal/config"
	"github.com/ignatzorin/civic-intake/internal/db"
	"github.com/ignatzorin/civic-intake/internal/domain/repository"
	"github.com/ignatzorin/civic-intake/internal/events"
	"github.com/ignatzorin/civic-intake/internal/goroutine"
	httpHandlers "github.com/ignatzorin/civic-intake/internal/http/handlers"
	httpRouter "github.com/ignatzorin/civic-intake/internal/http/router"
	aiAdapter "github.com/ignatzorin/civic-intake/internal/infrastructure/ai"
	"github.com/ignatzorin/civic-intake/internal/infrastructure/lock"
	"github.com/ignatzorin/civic-intake/internal/infrastructure/persistence"
	"github.com/ignatzorin/civic-intake/internal/logger"
	"github.com/ignatzorin/civic-intake/internal/storage"
	"github.com/ignatzorin/civic-intake/internal/usecase/intake"
	"github.com/ignatzorin/civic-intake/internal/whatsapp"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	logLevel := "info"
	if cfg.Env == "development" {
		logLevel = "debug"
	}
	logger.Init(cfg.Env, logLevel)
	goroutine.SetLogger(logger.Log)
	mainLog := logger.Component("main")

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		mainLog.Fatalf("ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath, logger.Component("migrations")); err != nil {
		mainLog.Fatalf("ошибка миграций: %v", err)
	}

	photoStorage, err := storage.NewPhotoStorage(cfg.MediaStoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		mainLog.Fatalf("не удалось подготовить файловое хранилище: %v", err)
	}

	// Репозитории.
	sessionRepo := persistence.NewSessionRepositoryAdapter(dbConn)
	reportRepo := persistence.NewReportRepositoryAdapter(dbConn)

	// Блокировка ходов: redis, если сервис запущен в нескольких экземплярах.
	healthDeps := map[string]httpHandlers.Pinger{}
	var locker repository.TurnLocker = lock.NewMemoryLocker()
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			mainLog.Fatalf("некорректный REDIS_URL: %v", err)
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()

		redisLocker := lock.NewRedisLocker(redisClient, cfg.TurnTimeout+10*time.Second, logger.Component("lock"))
		if err := redisLocker.Ping(ctx); err != nil {
			mainLog.Fatalf("redis недоступен: %v", err)
		}
		locker = redisLocker
		healthDeps["redis"] = redisLocker
	}

	var publisher repository.EventPublisher = events.NoopPublisher{}
	if cfg.NATSURL != "" {
		natsPublisher, err := events.NewNATSPublisher(cfg.NATSURL, cfg.NATSToken, logger.Component("events"))
		if err != nil {
			mainLog.Fatalf("ошибка подключения к NATS: %v", err)
		}
		defer func() {
			if err := natsPublisher.Close(); err != nil {
				mainLog.WithError(err).Warn("ошибка закрытия NATS")
			}
		}()
		publisher = natsPublisher
	}

	// Модель.
	aiClient := ai.NewClient(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AIModel,
		ai.WithVisionModel(cfg.AIVisionModel),
		ai.WithTranscribeModel(cfg.AITranscribeModel),
	)
	oracle := aiAdapter.NewOracleAdapter(aiClient)

	// Сценарий приёма жалоб.
	intakeLog := logger.Component("intake")
	finalizer := intake.NewFinalizer(reportRepo, photoStorage, publisher, intakeLog)
	workflow := intake.NewWorkflow(oracle, finalizer, intakeLog)
	processTurn := intake.NewProcessTurnUseCase(sessionRepo, locker, workflow, intake.TurnOptions{
		SessionTTL:  cfg.SessionTTL,
		TurnTimeout: cfg.TurnTimeout,
		LockWait:    cfg.TurnLockWait,
	}, intakeLog)

	sweeper := intake.NewSessionSweeper(sessionRepo, cfg.SessionSweepInterval, logger.Component("sweeper"))
	goroutine.SafeGoWithContext(ctx, sweeper.Run)

	// HTTP хэндлеры.
	waClient := whatsapp.NewClient(cfg.WhatsAppAPIBase, cfg.WhatsAppToken, cfg.WhatsAppPhoneNumberID,
		whatsapp.WithMaxMediaBytes(cfg.MaxUploadSizeMB<<20),
	)
	// Ходы не обрываются сигналом остановки, их дожидается goroutine.Wait ниже.
	webhookHandler := httpHandlers.NewWebhookHandler(context.WithoutCancel(ctx), processTurn, waClient, httpHandlers.WebhookConfig{
		VerifyToken:    cfg.WhatsAppVerifyToken,
		AppSecret:      cfg.WhatsAppAppSecret,
		MessageTimeout: cfg.TurnTimeout + cfg.TurnLockWait,
	}, logger.Component("webhook"))
	healthHandler := httpHandlers.NewHealthHandler(dbConn, healthDeps)

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, logger.Component("http"), healthHandler, webhookHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			mainLog.WithError(err).Error("ошибка остановки http сервера")
		}
	}()

	mainLog.Infof("HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		mainLog.Fatalf("сервер завершился с ошибкой: %v", err)
	}

	// Даём начатым ходам дописать сессию и отправить ответ.
	waitCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := goroutine.Wait(waitCtx); err != nil {
		mainLog.WithError(err).Warn("не все фоновые задачи завершились")
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
