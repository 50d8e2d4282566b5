// Package autocomplete moves confirmed bookings to completed once their end
// time plus the grace period has passed.
package autocomplete

import (
	"context"
	"errors"
	"sync"
	"time"

	"fieldbooking/internal/booking"
	"fieldbooking/internal/domain"
	"fieldbooking/internal/lock"
	"fieldbooking/internal/metrics"
	"fieldbooking/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Reason is recorded on every automatic completion.
const Reason = "auto-completed after end time plus grace period"

const runLockKey = "autocomplete:run"

// ErrRunInProgress is returned by RunNow when another run holds the run lock.
var ErrRunInProgress = errors.New("auto-completion run already in progress")

// Completer is the part of the booking service the engine drives.
type Completer interface {
	Get(ctx context.Context, id int64) (*models.Booking, error)
	RequestTransition(ctx context.Context, req booking.Request) (*models.Booking, error)
	EligibleForAutoCompletion(b *models.Booking, now time.Time) bool
	GracePeriod() time.Duration
	Location() *time.Location
}

// Config holds the engine schedule and pacing.
type Config struct {
	// Interval between runs. Default: 1 minute.
	Interval time.Duration
	// BatchSize caps candidates per run. Default: 500.
	BatchSize int
	// RatePerSecond paces completions; zero or less means unlimited.
	RatePerSecond float64
	// RunTimeout bounds a single run. Default: 5 minutes.
	RunTimeout time.Duration
	Now        func() time.Time
}

// RunResult summarizes one run.
type RunResult struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

type Engine struct {
	cfg        Config
	candidates domain.CandidateSource
	completer  Completer
	locker     lock.Locker
	limiter    *rate.Limiter
	logger     zerolog.Logger

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

func NewEngine(cfg Config, candidates domain.CandidateSource, completer Completer, locker lock.Locker, logger *zerolog.Logger) *Engine {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 5 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if locker == nil {
		locker = lock.NewLocalLocker()
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerSecond > 0 {
		burst := int(cfg.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	return &Engine{
		cfg:        cfg,
		candidates: candidates,
		completer:  completer,
		locker:     locker,
		limiter:    limiter,
		logger:     logger.With().Str("component", "autocomplete").Logger(),
	}
}

// Start begins the periodic loop. Calling Start twice is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	stopCh := make(chan struct{})
	e.stopCh = stopCh
	e.mu.Unlock()

	e.wg.Add(1)
	go e.loop(stopCh)

	e.logger.Info().
		Dur("interval", e.cfg.Interval).
		Dur("grace_period", e.completer.GracePeriod()).
		Int("batch_size", e.cfg.BatchSize).
		Msg("auto-completion engine started")
}

// Stop ends the loop and waits for an in-flight run to finish.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	stopCh := e.stopCh
	e.mu.Unlock()

	close(stopCh)
	e.wg.Wait()
	e.logger.Info().Msg("auto-completion engine stopped")
}

func (e *Engine) loop(stopCh <-chan struct{}) {
	defer e.wg.Done()

	e.tick(stopCh)

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			e.tick(stopCh)
		}
	}
}

func (e *Engine) tick(stopCh <-chan struct{}) {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.RunTimeout)
	defer cancel()

	// Stop aborts an in-flight run between bookings.
	go func() {
		select {
		case <-stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	if _, err := e.RunNow(ctx); err != nil && !errors.Is(err, ErrRunInProgress) {
		e.logger.Error().Err(err).Msg("auto-completion run failed")
	}
}

// RunNow performs one pass. Each candidate is re-read and re-checked before it
// is completed, so running twice over the same data completes nothing new.
func (e *Engine) RunNow(ctx context.Context) (RunResult, error) {
	var result RunResult

	token, ok, err := e.locker.TryAcquire(ctx, runLockKey, e.cfg.RunTimeout)
	if err != nil {
		metrics.IncAutoCompleteRun("error")
		return result, err
	}
	if !ok {
		metrics.IncAutoCompleteRun("locked")
		e.logger.Debug().Msg("another auto-completion run holds the lock")
		return result, ErrRunInProgress
	}
	defer func() {
		// The run context may already be done; release on a fresh one.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.locker.Release(releaseCtx, runLockKey, token); err != nil {
			e.logger.Warn().Err(err).Msg("release auto-completion lock")
		}
	}()

	started := time.Now()
	defer func() { metrics.ObserveAutoCompleteDuration(time.Since(started)) }()

	now := e.cfg.Now().In(e.completer.Location())
	candidates, err := e.candidates.SelectAutoCompletionCandidates(ctx, now, e.completer.GracePeriod(), e.cfg.BatchSize)
	if err != nil {
		metrics.IncAutoCompleteRun("error")
		return result, err
	}
	result.Total = len(candidates)

	for i := range candidates {
		if err := e.limiter.Wait(ctx); err != nil {
			result.Skipped += len(candidates) - i
			break
		}
		switch e.completeOne(ctx, candidates[i].ID) {
		case outcomeCompleted:
			result.Completed++
		case outcomeSkipped:
			result.Skipped++
		default:
			result.Failed++
		}
	}

	metrics.AddAutoCompleteBookings("completed", result.Completed)
	metrics.AddAutoCompleteBookings("skipped", result.Skipped)
	metrics.AddAutoCompleteBookings("failed", result.Failed)
	metrics.IncAutoCompleteRun("ok")

	if result.Total > 0 {
		e.logger.Info().
			Int("total", result.Total).
			Int("completed", result.Completed).
			Int("skipped", result.Skipped).
			Int("failed", result.Failed).
			Dur("took", time.Since(started)).
			Msg("auto-completion run finished")
	}
	return result, nil
}

type outcome int

const (
	outcomeCompleted outcome = iota
	outcomeSkipped
	outcomeFailed
)

func (e *Engine) completeOne(ctx context.Context, id int64) outcome {
	current, err := e.completer.Get(ctx, id)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			return outcomeSkipped
		}
		e.logger.Error().Err(err).Int64("booking_id", id).Msg("re-read candidate")
		return outcomeFailed
	}
	if !e.completer.EligibleForAutoCompletion(current, e.cfg.Now()) {
		return outcomeSkipped
	}

	_, err = e.completer.RequestTransition(ctx, booking.Request{
		BookingID: id,
		Action:    models.ActionComplete,
		Actor:     booking.SystemActor(),
		Reason:    Reason,
	})
	switch {
	case err == nil:
		return outcomeCompleted
	case errors.Is(err, booking.ErrInvalidTransition):
		// Cancelled or completed between the re-read and the write.
		return outcomeSkipped
	default:
		e.logger.Error().Err(err).Int64("booking_id", id).Msg("auto-complete booking")
		return outcomeFailed
	}
}
