package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"storyteller/internal/adapter/repo"
	"storyteller/internal/bus"
	"storyteller/internal/infra"
	"storyteller/internal/infra/credentials"
	"storyteller/internal/providers/genai"
	"storyteller/internal/providers/imagegen"
	"storyteller/internal/providers/speech"
	"storyteller/internal/storage"
	"storyteller/internal/worker"
)

// The worker binary runs both consumers against a shared broker. It requires
// a database and a broker; in-process development mode lives in cmd/api.
func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		fallback := infra.NewLogger("production")
		fallback.Fatal().Err(err).Msg("invalid configuration")
	}
	logger := infra.NewLogger(cfg.AppEnv).With().Str("service", "worker").Logger()

	if cfg.DatabaseURL == "" {
		logger.Fatal().Msg("DATABASE_URL is required")
	}
	if cfg.AMQPURL == "" {
		logger.Fatal().Msg("AMQP_URL is required")
	}

	ctx := context.Background()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	runner := infra.NewSQLRunner(pool, logger)
	store := repo.NewStoryRepo(runner, logger)
	creds := credentials.NewStore(runner)

	blobs, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("init artifact store")
	}

	geminiKey := cfg.GeminiAPIKey
	if geminiKey == "" {
		if v, err := creds.Lookup(ctx, credentials.NameGeminiAPIKey); err != nil {
			logger.Warn().Err(err).Msg("gemini credential lookup failed")
		} else {
			geminiKey = v
		}
	}
	speechKey := cfg.SpeechAPIKey
	if speechKey == "" {
		if v, err := creds.Lookup(ctx, credentials.NameSpeechAPIKey); err != nil {
			logger.Warn().Err(err).Msg("speech credential lookup failed")
		} else {
			speechKey = v
		}
	}

	gen, err := genai.NewClient(genai.Options{
		APIKey:  geminiKey,
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GeminiModel,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("init genai client")
	}
	narrator := speech.NewClient(speech.Options{
		APIKey:  speechKey,
		BaseURL: cfg.SpeechBaseURL,
		Voice:   cfg.SpeechVoice,
	})

	storyBus, err := bus.NewAMQPBus(cfg.AMQPURL, cfg.AMQPExchange, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect message bus")
	}
	defer storyBus.Close()

	audioWorker := worker.New(store, blobs, &worker.AudioStage{Speech: narrator}, logger)
	imageWorker := worker.New(store, blobs, &worker.ImageStage{Images: imagegen.NewGemini(gen)}, logger)
	if err := storyBus.Subscribe("audio", audioWorker.HandleFanOut); err != nil {
		logger.Fatal().Err(err).Msg("subscribe audio worker")
	}
	if err := storyBus.Subscribe("image", imageWorker.HandleFanOut); err != nil {
		logger.Fatal().Err(err).Msg("subscribe image worker")
	}
	logger.Info().Str("exchange", cfg.AMQPExchange).Msg("workers consuming")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	logger.Info().Str("signal", sig.String()).Msg("shutting down")
}
