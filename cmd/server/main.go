package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/config"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/evaluation"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/handlers"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/hub"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/interview"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/jobs"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/llm"
	_ "github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/llm/gemini"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/metrics"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/models"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/notify"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/objectstore"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/orchestrator"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/prompts"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/repositories"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/routers"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/speech"
	_ "github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/speech/cartesia"
	_ "github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/speech/deepgram"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/tokens"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/utils"
)

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// initDatabase initializes the PostgreSQL database connection
func initDatabase() (*gorm.DB, error) {
	host := getEnv("POSTGRES_HOST", "localhost")
	user := getEnv("POSTGRES_USER", "postgres")
	password := getEnv("POSTGRES_PASSWORD", "postgres")
	dbname := getEnv("POSTGRES_DB", "postgres")
	port := getEnv("POSTGRES_PORT", "5432")
	sslmode := getEnv("POSTGRES_SSLMODE", "disable")

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		host, user, password, dbname, port, sslmode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(
		&models.Interview{},
		&models.InterviewMessage{},
		&models.InterviewSession{},
		&models.UsageCounter{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

func registerRoutes(
	router *chi.Mux,
	cfg *config.Config,
	healthHandler *handlers.HealthHandler,
	interviewHandler *handlers.InterviewHandler,
	candidateHandler *handlers.CandidateHandler,
	wsHandler *handlers.WSHandler,
	tokenStore *tokens.Store,
) {
	routers.HealthRoutes(router, healthHandler)
	routers.InterviewRoutes(router, interviewHandler, cfg.JWTSecret)
	routers.CandidateRoutes(router, candidateHandler, tokenStore)
	routers.WSRoutes(router, wsHandler)
}

func main() {
	utils.InitLogger()
	logger := utils.GetLogger()
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	logger.Info("Configuration loaded",
		zap.String("llm_provider", cfg.LLMProvider),
		zap.String("stt_provider", cfg.STTProvider),
		zap.String("tts_provider", cfg.TTSProvider))

	db, err := initDatabase()
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Warn("Redis unavailable, cross-instance fanout disabled", zap.Error(err))
		rdb = nil
	}

	promptManager, err := prompts.NewManager()
	if err != nil {
		logger.Fatal("Failed to initialize prompt manager", zap.Error(err))
	}

	provider, err := llm.NewProvider(cfg.LLMProvider)
	if err != nil {
		logger.Fatal("Failed to initialize AI provider", zap.Error(err))
	}

	recognizer, err := speech.NewRecognizer(cfg.STTProvider)
	if err != nil {
		logger.Warn("Speech recognition disabled", zap.Error(err))
		recognizer = nil
	}
	synthesizer, err := speech.NewSynthesizer(cfg.TTSProvider)
	if err != nil {
		logger.Warn("Speech synthesis disabled", zap.Error(err))
		synthesizer = nil
	}

	interviewRepo := &repositories.InterviewRepository{DB: db}
	messageRepo := &repositories.MessageRepository{DB: db}
	tokenRepo := &repositories.TokenRepository{DB: db}
	usageRepo := &repositories.UsageRepository{DB: db}

	tokenStore := tokens.NewStore(tokenRepo)

	recordings, err := objectstore.New(context.Background())
	if err != nil {
		logger.Warn("Recording storage disabled", zap.Error(err))
		recordings = nil
	}

	eventHub := hub.NewHub(interviewRepo, rdb, logger)
	evaluator := evaluation.New(provider, promptManager)
	notifier := notify.NewNotifier(logger)
	stateService := interview.NewService(interviewRepo, messageRepo, usageRepo, evaluator, eventHub, notifier, logger)
	orch := orchestrator.New(messageRepo, provider, promptManager, synthesizer, eventHub, logger)

	reaper := jobs.NewReaper(interviewRepo, tokenRepo, usageRepo, stateService, logger)
	if err := reaper.Start(jobs.DefaultReaperConfig()); err != nil {
		logger.Fatal("Failed to start reaper", zap.Error(err))
	}

	subCtx, subCancel := context.WithCancel(context.Background())
	defer subCancel()
	if rdb != nil {
		statusSub := notify.NewStatusSubscriber(rdb, eventHub, logger)
		go statusSub.Subscribe(subCtx)
	}

	healthHandler := handlers.NewHealthHandler(db)
	interviewHandler := handlers.NewInterviewHandler(
		stateService, interviewRepo, messageRepo, tokenStore, notifier, recordings,
		cfg.BaseURL, time.Duration(cfg.TokenTTLHours)*time.Hour, logger)
	candidateHandler := handlers.NewCandidateHandler(
		stateService, orch, messageRepo, interviewRepo, recordings, logger)
	wsHandler := handlers.NewWSHandler(
		eventHub, tokenStore, stateService, orch, recognizer, cfg.JWTSecret, logger)

	router := chi.NewRouter()

	// cors middleware
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(getEnv("CORS_ORIGINS", cfg.BaseURL), ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization", "X-Interview-Token"},
		AllowCredentials: true,
	}))
	router.Use(chimiddleware.RequestID, chimiddleware.RealIP, chimiddleware.Recoverer)
	router.Use(metrics.Middleware("interview"))

	registerRoutes(router, cfg, healthHandler, interviewHandler, candidateHandler, wsHandler, tokenStore)

	serverAddr := ":" + cfg.Port
	server := &http.Server{
		Addr:        serverAddr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info("Interview service starting", zap.String("addr", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)
	<-shutdownChan

	logger.Info("Interview service shutting down...")

	reaper.Stop()
	subCancel()
	eventHub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("Interview service exited")
}
