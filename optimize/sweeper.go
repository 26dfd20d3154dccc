package optimize

import (
	"context"
	"sync"
	"time"

	"github.com/streammind/streammind/storage"
)

// DefaultSweepInterval is how often the sweeper re-checks rooms.
const DefaultSweepInterval = 10 * time.Minute

// SweeperConfig holds configuration for the periodic sweep.
type SweeperConfig struct {
	// Interval between sweeps. Default: 10 minutes.
	Interval time.Duration

	// OnError is called when listing rooms fails.
	OnError func(err error)
}

// Sweeper periodically walks every persisted room and runs the scheduler's
// threshold check against each one. It catches rooms whose notepads grew
// past the threshold while no foreground turn arrived to trigger the
// check.
type Sweeper struct {
	scheduler *Scheduler
	store     storage.Store
	config    *SweeperConfig

	// mu guards the loop lifecycle so Start and Stop can race safely and
	// a stopped sweeper can be started again.
	mu      sync.Mutex
	running bool
	done    chan struct{}
	cancel  context.CancelFunc
}

// NewSweeper creates a sweeper driving the given scheduler.
func NewSweeper(scheduler *Scheduler, store storage.Store, config *SweeperConfig) *Sweeper {
	if config == nil {
		config = &SweeperConfig{}
	}
	if config.Interval <= 0 {
		config.Interval = DefaultSweepInterval
	}
	return &Sweeper{
		scheduler: scheduler,
		store:     store,
		config:    config,
	}
}

// Start begins the sweep loop in a goroutine. It returns immediately and
// is a no-op if the sweeper is already running. A sweeper may be started
// again after Stop.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.done = make(chan struct{})
	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx, s.done)
}

// Stop cancels the loop and waits for it to exit. Stopping a sweeper that
// is not running is a no-op.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.running = false
	s.mu.Unlock()

	cancel()
	<-done
}

func (s *Sweeper) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	rooms, err := s.store.ListRooms(ctx)
	if err != nil {
		if s.config.OnError != nil {
			s.config.OnError(err)
		}
		return
	}
	for _, roomID := range rooms {
		s.scheduler.ScheduleIfNeeded(ctx, roomID)
	}
}
