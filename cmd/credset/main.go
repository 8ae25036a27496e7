package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"storyteller/internal/infra"
	"storyteller/internal/infra/credentials"
)

// credset stores provider API keys in the database so deployments can rotate
// them without restarting the api or worker.
func main() {
	var (
		nameFlag string
		keyFlag  string
	)
	flag.StringVar(&nameFlag, "name", credentials.NameGeminiAPIKey, "credential name (gemini_api_key or speech_api_key)")
	flag.StringVar(&keyFlag, "key", "", "credential value (falls back to environment)")
	flag.Parse()

	_ = godotenv.Load()

	name := strings.TrimSpace(strings.ToLower(nameFlag))
	switch name {
	case credentials.NameGeminiAPIKey, credentials.NameSpeechAPIKey:
	default:
		fmt.Fprintf(os.Stderr, "unsupported credential %q\n", nameFlag)
		os.Exit(1)
	}

	key := strings.TrimSpace(keyFlag)
	if key == "" {
		switch name {
		case credentials.NameSpeechAPIKey:
			key = strings.TrimSpace(os.Getenv("SPEECH_API_KEY"))
		default:
			key = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
		}
	}
	if key == "" {
		fmt.Fprintf(os.Stderr, "%s is required via -key or environment\n", name)
		os.Exit(1)
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "credset").Str("name", name).Logger()
	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))

	if err := store.Set(ctx, name, key); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist %s: %v\n", name, err)
		os.Exit(1)
	}
	fmt.Printf("%s stored successfully\n", name)
}
