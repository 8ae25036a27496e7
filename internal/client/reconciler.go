package client

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"storyteller/internal/domain/story"
)

// State is the reconciler's lifecycle position.
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StatePolling    State = "polling"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
	StateTimedOut   State = "timed_out"
	StateCancelled  State = "cancelled"
)

// Terminal reports whether the state will never change again.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateTimedOut, StateCancelled:
		return true
	}
	return false
}

// Observed is the monotonic merge of everything polling has seen. Flags only
// flip to true; a later poll that reads stale data cannot un-observe progress.
type Observed struct {
	ID       string
	HasText  bool
	HasAudio bool
	HasImage bool
	Failed   bool

	AudioStatus story.Status
	ImageStatus story.Status
}

func (o *Observed) merge(view *story.View) {
	if view.Text != "" {
		o.HasText = true
	}
	if view.AudioStatus == story.StatusComplete {
		o.HasAudio = true
	}
	if view.ImageStatus == story.StatusComplete {
		o.HasImage = true
	}
	if view.AudioStatus == story.StatusError || view.ImageStatus == story.StatusError {
		o.Failed = true
	}
	o.AudioStatus = view.AudioStatus
	o.ImageStatus = view.ImageStatus
}

// settled reports whether polling can stop: an artifact errored, or the text
// and both derived artifacts have all been observed.
func (o Observed) settled() bool {
	return o.Failed || (o.HasText && o.HasAudio && o.HasImage)
}

// API is the surface the reconciler drives.
type API interface {
	Initiate(ctx context.Context, req story.GenerationRequest) (string, error)
	Metadata(ctx context.Context, id string) (*story.View, error)
}

// Options bounds the polling loop.
type Options struct {
	// Interval between polls.
	Interval time.Duration
	// Deadline is the total budget after submission.
	Deadline time.Duration
	// MaxTransientFailures is how many consecutive poll errors are tolerated
	// before the run is declared failed.
	MaxTransientFailures int
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = 3 * time.Second
	}
	if o.Deadline <= 0 {
		o.Deadline = 5 * time.Minute
	}
	if o.MaxTransientFailures <= 0 {
		o.MaxTransientFailures = 5
	}
	return o
}

// Reconciler submits one story job and polls it until every artifact settles,
// the deadline passes, or the context is cancelled.
type Reconciler struct {
	API     API
	Options Options
	Logger  zerolog.Logger

	// OnUpdate, when set, receives each state/observation change.
	OnUpdate func(State, Observed)

	// now is overridable for deadline tests.
	now func() time.Time
}

func NewReconciler(api API, opts Options, logger zerolog.Logger) *Reconciler {
	return &Reconciler{API: api, Options: opts.withDefaults(), Logger: logger, now: time.Now}
}

func (r *Reconciler) notify(state State, obs Observed) {
	if r.OnUpdate != nil {
		r.OnUpdate(state, obs)
	}
}

// Run drives one job end to end and returns the terminal state plus the last
// observation. The returned error is non-nil only for submission failures;
// poll-phase outcomes are expressed through the state.
func (r *Reconciler) Run(ctx context.Context, req story.GenerationRequest) (State, Observed, error) {
	opts := r.Options.withDefaults()
	var obs Observed

	r.notify(StateSubmitting, obs)
	id, err := r.API.Initiate(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			r.notify(StateCancelled, obs)
			return StateCancelled, obs, err
		}
		r.Logger.Error().Err(err).Msg("submission failed")
		r.notify(StateFailed, obs)
		return StateFailed, obs, err
	}
	obs.ID = id
	log := r.Logger.With().Str("story_id", id).Logger()
	log.Info().Msg("story submitted")

	deadline := r.now().Add(opts.Deadline)
	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	r.notify(StatePolling, obs)
	transient := 0
	for {
		select {
		case <-ctx.Done():
			r.notify(StateCancelled, obs)
			return StateCancelled, obs, nil
		case <-ticker.C:
		}

		if r.now().After(deadline) {
			log.Warn().Msg("polling deadline exceeded")
			r.notify(StateTimedOut, obs)
			return StateTimedOut, obs, nil
		}

		view, err := r.API.Metadata(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				r.notify(StateCancelled, obs)
				return StateCancelled, obs, nil
			}
			// A record we just created that 404s is as transient as a
			// network blip: the read side may lag the write side.
			transient++
			log.Warn().Err(err).Int("consecutive", transient).Msg("poll failed")
			if transient >= opts.MaxTransientFailures {
				r.notify(StateFailed, obs)
				return StateFailed, obs, nil
			}
			continue
		}
		transient = 0
		obs.merge(view)
		r.notify(StatePolling, obs)

		if obs.settled() {
			if obs.Failed {
				log.Warn().Msg("story settled with errors")
				r.notify(StateFailed, obs)
				return StateFailed, obs, nil
			}
			log.Info().Msg("story complete")
			r.notify(StateSucceeded, obs)
			return StateSucceeded, obs, nil
		}
	}
}
