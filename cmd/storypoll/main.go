package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"storyteller/internal/client"
	"storyteller/internal/domain/story"
	"storyteller/internal/infra"
)

// storypoll submits one story request and polls until the job settles,
// printing progress as artifacts arrive.
func main() {
	_ = godotenv.Load()
	defInterval, defDeadline, defMaxErrors := infra.PollSettings()

	var (
		baseURL   string
		owner     string
		name      string
		age       int
		theme     string
		length    string
		interval  time.Duration
		deadline  time.Duration
		maxErrors int
	)
	flag.StringVar(&baseURL, "base-url", "http://localhost:8080", "story API base URL")
	flag.StringVar(&owner, "owner", "", "owner id (required)")
	flag.StringVar(&name, "name", "", "child's name (required)")
	flag.IntVar(&age, "age", 0, "child's age")
	flag.StringVar(&theme, "theme", "", "story theme (required)")
	flag.StringVar(&length, "length", story.LengthShort, "length class: short, medium, or long")
	flag.DurationVar(&interval, "interval", defInterval, "poll interval")
	flag.DurationVar(&deadline, "deadline", defDeadline, "total polling budget")
	flag.IntVar(&maxErrors, "max-errors", defMaxErrors, "consecutive poll failures tolerated")
	flag.Parse()

	logger := infra.NewLogger(os.Getenv("APP_ENV")).With().Str("service", "storypoll").Logger()

	if owner == "" || name == "" || theme == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rec := client.NewReconciler(client.New(baseURL), client.Options{
		Interval:             interval,
		Deadline:             deadline,
		MaxTransientFailures: maxErrors,
	}, logger)
	rec.OnUpdate = func(state client.State, obs client.Observed) {
		fmt.Printf("%-10s text=%v audio=%v image=%v\n", state, obs.HasText, obs.HasAudio, obs.HasImage)
	}

	state, obs, err := rec.Run(ctx, story.GenerationRequest{
		OwnerID:     owner,
		SubjectName: name,
		SubjectAge:  age,
		Theme:       theme,
		LengthClass: length,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "submission failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("final: %s (story %s)\n", state, obs.ID)
	if state != client.StateSucceeded {
		os.Exit(1)
	}
}
