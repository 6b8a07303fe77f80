package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/queue"
)

// ReaperConfig controls the expiry sweep.
type ReaperConfig struct {
	// Interval between two sweeps.
	Interval time.Duration
	// BatchSize caps the holds relabelled per sweep.
	BatchSize int
}

// DefaultReaperConfig returns the sweep settings used when none are given.
func DefaultReaperConfig() ReaperConfig {
	return ReaperConfig{Interval: 30 * time.Second, BatchSize: 100}
}

// Reaper relabels lapsed HELD reservations as EXPIRED and drops their index
// markers.  It is bookkeeping only: reads and holds already treat a lapsed
// hold as released.
type Reaper struct {
	store Store
	cfg   ReaperConfig
	opts  options

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool

	totalExpired int64
	lastSweep    time.Time
}

func NewReaper(store Store, cfg ReaperConfig, opts ...Option) *Reaper {
	def := DefaultReaperConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	return &Reaper{store: store, cfg: cfg, opts: buildOptions(opts)}
}

// Start launches the sweep loop.  It returns an error if already running.
// A stopped reaper may be started again.
func (r *Reaper) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return errors.New("reaper already running")
	}
	r.running = true
	stop := make(chan struct{})
	r.stopCh = stop
	r.mu.Unlock()

	r.opts.log.Info("starting expiry reaper",
		zap.Duration("interval", r.cfg.Interval), zap.Int("batch_size", r.cfg.BatchSize))

	r.wg.Add(1)
	go r.loop(ctx, stop)
	return nil
}

// Stop ends the sweep loop and waits for an in-flight sweep to finish.
func (r *Reaper) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	stop := r.stopCh
	r.stopCh = nil
	r.mu.Unlock()

	close(stop)
	r.wg.Wait()
	r.opts.log.Info("expiry reaper stopped")
}

func (r *Reaper) loop(ctx context.Context, stop <-chan struct{}) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.sweepLogged(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			r.sweepLogged(ctx)
		}
	}
}

func (r *Reaper) sweepLogged(ctx context.Context) {
	n, err := r.Sweep(ctx)
	if err != nil {
		r.opts.log.Error("expiry sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		r.opts.log.Info("expired lapsed holds", zap.Int("count", n))
	}
}

// Sweep runs one pass and returns how many reservations it relabelled.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	now := r.opts.clock()

	r.mu.Lock()
	r.lastSweep = now
	r.mu.Unlock()

	ids, err := r.store.ListLapsedHolds(ctx, now, r.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list lapsed holds: %w", err)
	}
	expired := 0
	for _, id := range ids {
		ok, err := r.expire(ctx, id, now)
		if err != nil {
			r.opts.log.Warn("expire reservation failed", zap.Uint64("reservation_id", id), zap.Error(err))
			continue
		}
		if ok {
			expired++
		}
	}

	r.mu.Lock()
	r.totalExpired += int64(expired)
	r.mu.Unlock()
	return expired, nil
}

var errNotLapsed = errors.New("reservation no longer a lapsed hold")

// expire relabels one reservation.  The lapse is re-checked under the row
// lock, since the owner may have confirmed or cancelled in between.
func (r *Reaper) expire(ctx context.Context, id uint64, now time.Time) (bool, error) {
	res, seatIDs, err := r.store.UpdateReservation(ctx, id, func(res *model.Reservation) error {
		if !res.HoldLapsed(now) {
			return errNotLapsed
		}
		res.Status = model.StatusExpired
		res.HoldExpiresAt = nil
		res.UpdatedAt = now
		return nil
	})
	if errors.Is(err, errNotLapsed) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	r.opts.releaseMarkers(ctx, res.ShowtimeID, seatIDs, res.ID)
	ev := queue.NewReservationEvent(queue.EventExpired, res.ID, res.UserID, res.ShowtimeID, seatIDs, now)
	ev.TotalPriceCents = res.TotalPriceCents
	r.opts.publish(ctx, ev)
	return true, nil
}

// ReaperStats is a snapshot of sweep counters.
type ReaperStats struct {
	Running      bool      `json:"running"`
	TotalExpired int64     `json:"total_expired"`
	LastSweep    time.Time `json:"last_sweep"`
}

func (r *Reaper) Stats() ReaperStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ReaperStats{Running: r.running, TotalExpired: r.totalExpired, LastSweep: r.lastSweep}
}
