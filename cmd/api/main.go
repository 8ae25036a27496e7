package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"storyteller/internal/adapter/repo"
	"storyteller/internal/bus"
	"storyteller/internal/domain/story"
	"storyteller/internal/http/handlers"
	httpapi "storyteller/internal/http/httpapi"
	"storyteller/internal/infra"
	"storyteller/internal/infra/credentials"
	"storyteller/internal/infra/geoip"
	"storyteller/internal/middleware"
	"storyteller/internal/producer"
	"storyteller/internal/providers/genai"
	"storyteller/internal/providers/imagegen"
	"storyteller/internal/providers/speech"
	"storyteller/internal/providers/textgen"
	"storyteller/internal/query"
	"storyteller/internal/storage"
	"storyteller/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		fallback := infra.NewLogger("production")
		fallback.Fatal().Err(err).Msg("invalid configuration")
	}
	logger := infra.NewLogger(cfg.AppEnv).With().Str("service", "api").Logger()

	ctx := context.Background()

	blobs, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("init artifact store")
	}
	signer, err := storage.NewSigner(cfg.URLSigningSecret, cfg.StorageBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("init url signer")
	}

	var store story.Store
	var creds *credentials.Store
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect database")
		}
		defer pool.Close()
		runner := infra.NewSQLRunner(pool, logger)
		store = repo.NewStoryRepo(runner, logger)
		creds = credentials.NewStore(runner)
	} else {
		logger.Warn().Msg("DATABASE_URL not set, using in-memory record store")
		store = story.NewMemStore()
	}

	geminiKey := cfg.GeminiAPIKey
	if geminiKey == "" && creds != nil {
		if v, err := creds.Lookup(ctx, credentials.NameGeminiAPIKey); err != nil {
			logger.Warn().Err(err).Msg("gemini credential lookup failed")
		} else {
			geminiKey = v
		}
	}
	speechKey := cfg.SpeechAPIKey
	if speechKey == "" && creds != nil {
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

	var storyBus bus.Bus
	if cfg.AMQPURL != "" {
		storyBus, err = bus.NewAMQPBus(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect message bus")
		}
	} else {
		// Single-process mode: run both workers on the in-memory bus.
		logger.Warn().Msg("AMQP_URL not set, running workers in-process")
		mem := bus.NewMemoryBus()
		narrator := speech.NewClient(speech.Options{
			APIKey:  speechKey,
			BaseURL: cfg.SpeechBaseURL,
			Voice:   cfg.SpeechVoice,
		})
		audioWorker := worker.New(store, blobs, &worker.AudioStage{Speech: narrator}, logger)
		imageWorker := worker.New(store, blobs, &worker.ImageStage{Images: imagegen.NewGemini(gen)}, logger)
		_ = mem.Subscribe("audio", audioWorker.HandleFanOut)
		_ = mem.Subscribe("image", imageWorker.HandleFanOut)
		storyBus = mem
	}
	defer storyBus.Close()

	var lookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip unavailable")
	} else if resolver != nil {
		defer resolver.Close()
		lookup = resolver.CountryCode
	}

	app := &handlers.App{
		Logger:   logger,
		Producer: producer.New(store, blobs, textgen.NewGemini(gen), storyBus, logger),
		Query:    query.NewService(store, blobs, signer, cfg.SignedURLTTL, logger),
		Store:    store,
		Blobs:    blobs,
		Signer:   signer,
		URLTTL:   cfg.SignedURLTTL,
	}

	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:          logger,
		DefaultLocale:   cfg.DefaultLocale,
		CountryLookup:   lookup,
		RateLimitPerMin: cfg.RateLimitPerMin,
		AllowedOrigins:  cfg.AllowedOrigins,
	})
	srv := infra.NewHTTPServer(cfg, router)

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.Port).Msg("api listening")
		errCh <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		logger.Fatal().Err(err).Msg("server stopped")
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown incomplete")
	}
}
