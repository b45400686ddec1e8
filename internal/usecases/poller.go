package usecases

import (
	"context"
	"sync"
	"time"

	"github.com/abelzeko/aquaguard/internal/entities"
	"github.com/abelzeko/aquaguard/internal/integration"
	"github.com/abelzeko/aquaguard/internal/logger"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Refresh intervals of the dashboard views
const (
	LiveReadingsInterval = 10 * time.Second
	AlertsInterval       = 15 * time.Second
	SensorsInterval      = 30 * time.Second
	StatsInterval        = 30 * time.Second
)

// DefaultAlertsViewLimit is the number of alerts the alerts view keeps
const DefaultAlertsViewLimit = 100

// PollState is the view-facing snapshot of a poller
type PollState[T any] struct {
	Data      T
	Loading   bool
	Err       error
	UpdatedAt time.Time
}

// FetchFunc loads one value for the given params
type FetchFunc[P comparable, T any] func(ctx context.Context, params P) (T, error)

// Poller keeps a value fresh by re-fetching it on a fixed interval while
// active. Only the poller writes its state, except through Update.
type Poller[P comparable, T any] struct {
	name     string
	interval time.Duration
	fetch    FetchFunc[P, T]
	ready    func(P) bool
	logger   *zap.Logger

	mu         sync.Mutex
	state      PollState[T]
	params     P
	active     bool
	generation uint64
	inFlight   bool
	cancel     context.CancelFunc
	scheduler  *cron.Cron
	listeners  []func(PollState[T])
}

// NewPoller creates an inactive poller. A nil ready accepts every params value.
// A non-positive interval falls back to StatsInterval.
func NewPoller[P comparable, T any](name string, interval time.Duration, initial T, fetch FetchFunc[P, T], ready func(P) bool, l *zap.Logger) *Poller[P, T] {
	if l == nil {
		l = zap.NewNop()
	}
	if interval <= 0 {
		l.Warn("Invalid poll interval, using default",
			zap.String("poller", name),
			zap.Duration("interval", interval),
			zap.Duration("default", StatsInterval))
		interval = StatsInterval
	}
	if ready == nil {
		ready = func(P) bool { return true }
	}
	return &Poller[P, T]{
		name:     name,
		interval: interval,
		fetch:    fetch,
		ready:    ready,
		logger:   l.With(zap.String("poller", name)),
		state:    PollState[T]{Data: initial},
	}
}

// Activate starts polling for params: one fetch right away, then one per
// interval. Activating again with the same params is a no-op; different
// params restart the schedule. Params that are not ready leave the poller idle.
func (p *Poller[P, T]) Activate(params P) {
	p.mu.Lock()
	if p.active && p.params == params {
		p.mu.Unlock()
		return
	}
	p.stopLocked()
	p.params = params
	p.active = true

	if !p.ready(params) {
		p.mu.Unlock()
		p.logger.Debug("Poller idle, params not ready")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	gen := p.generation

	scheduler := cron.New(
		cron.WithLogger(logger.NewCronLogger(p.logger)),
		cron.WithChain(cron.Recover(logger.NewCronLogger(p.logger))),
	)
	scheduler.Schedule(intervalSchedule(p.interval), cron.FuncJob(func() {
		p.tick(ctx, gen, params)
	}))
	scheduler.Start()
	p.scheduler = scheduler
	p.mu.Unlock()

	p.logger.Debug("Poller activated", zap.Duration("interval", p.interval))
	go p.tick(ctx, gen, params)
}

// Deactivate stops the schedule. No fetch starts afterwards and a response
// still in flight is dropped.
func (p *Poller[P, T]) Deactivate() {
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return
	}
	p.stopLocked()
	p.active = false
	var zero P
	p.params = zero
	p.mu.Unlock()
	p.logger.Debug("Poller deactivated")
}

// Active reports whether the poller has been activated
func (p *Poller[P, T]) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Snapshot returns a copy of the current state
func (p *Poller[P, T]) Snapshot() PollState[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Update applies a local mutation to the held data, e.g. after a successful
// write the backend will only reflect on the next tick.
func (p *Poller[P, T]) Update(fn func(T) T) {
	p.mu.Lock()
	p.state.Data = fn(p.state.Data)
	snapshot := p.state
	p.mu.Unlock()
	p.notify(snapshot)
}

// OnChange registers fn to be called after every state change
func (p *Poller[P, T]) OnChange(fn func(PollState[T])) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// stopLocked must be called with p.mu held
func (p *Poller[P, T]) stopLocked() {
	if p.scheduler != nil {
		p.scheduler.Stop()
		p.scheduler = nil
	}
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.generation++
	p.inFlight = false
	p.state.Loading = false
}

func (p *Poller[P, T]) tick(ctx context.Context, gen uint64, params P) {
	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		return
	}
	if p.inFlight {
		p.mu.Unlock()
		p.logger.Debug("Skipping tick, previous fetch still running")
		return
	}
	p.inFlight = true
	p.state.Loading = true
	snapshot := p.state
	p.mu.Unlock()
	p.notify(snapshot)

	data, err := p.fetch(ctx, params)

	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		p.logger.Debug("Discarding stale response")
		return
	}
	p.inFlight = false
	p.state.Loading = false
	if err != nil {
		// keep the last good data
		p.state.Err = err
	} else {
		p.state.Data = data
		p.state.Err = nil
		p.state.UpdatedAt = time.Now()
	}
	snapshot = p.state
	p.mu.Unlock()

	if err != nil {
		p.logger.Warn("Poll failed", zap.Error(err))
	}
	p.notify(snapshot)
}

func (p *Poller[P, T]) notify(state PollState[T]) {
	p.mu.Lock()
	listeners := append([]func(PollState[T]){}, p.listeners...)
	p.mu.Unlock()
	for _, fn := range listeners {
		fn(state)
	}
}

// everyInterval is a cron schedule without the one-second floor of cron.Every
type everyInterval time.Duration

func (e everyInterval) Next(t time.Time) time.Time {
	return t.Add(time.Duration(e))
}

func intervalSchedule(d time.Duration) cron.Schedule {
	if d >= time.Second && d%time.Second == 0 {
		return cron.Every(d)
	}
	return everyInterval(d)
}

// WindowParams selects a sensor and a look-back window in hours
type WindowParams struct {
	SensorID string
	Hours    int
}

func windowReady(p WindowParams) bool {
	return p.SensorID != ""
}

// NewSensorsPoller polls the sensor list every 30 seconds
func NewSensorsPoller(backend *integration.Backend, l *zap.Logger) *Poller[struct{}, []entities.Sensor] {
	return NewPoller("sensors", SensorsInterval, []entities.Sensor{},
		func(ctx context.Context, _ struct{}) ([]entities.Sensor, error) {
			return backend.Sensors.GetAllSensors(ctx)
		}, nil, l)
}

// NewReadingsPoller polls the readings of one sensor every 10 seconds
func NewReadingsPoller(backend *integration.Backend, l *zap.Logger) *Poller[WindowParams, []entities.Reading] {
	return NewPoller("readings", LiveReadingsInterval, []entities.Reading{},
		func(ctx context.Context, p WindowParams) ([]entities.Reading, error) {
			return backend.Readings.GetReadingsByTimeRange(ctx, p.SensorID, p.Hours)
		}, windowReady, l)
}

// NewSensorStatsPoller polls the statistics of one sensor every 30 seconds
func NewSensorStatsPoller(backend *integration.Backend, l *zap.Logger) *Poller[WindowParams, entities.SensorStats] {
	return NewPoller("sensor_stats", StatsInterval, entities.SensorStats{},
		func(ctx context.Context, p WindowParams) (entities.SensorStats, error) {
			return backend.Sensors.GetSensorStats(ctx, p.SensorID, p.Hours)
		}, windowReady, l)
}

// NewAlertsPoller polls the latest alerts every 15 seconds. The params value
// is the alert limit.
func NewAlertsPoller(backend *integration.Backend, l *zap.Logger) *Poller[int, []entities.Alert] {
	return NewPoller("alerts", AlertsInterval, []entities.Alert{},
		func(ctx context.Context, limit int) ([]entities.Alert, error) {
			return backend.Alerts.GetAlerts(ctx, limit)
		}, nil, l)
}

// NewSystemStatsPoller polls the system snapshot every 30 seconds
func NewSystemStatsPoller(backend *integration.Backend, l *zap.Logger) *Poller[struct{}, entities.SystemStats] {
	return NewPoller("system_stats", StatsInterval, entities.SystemStats{},
		func(ctx context.Context, _ struct{}) (entities.SystemStats, error) {
			return backend.System.GetStats(ctx)
		}, nil, l)
}
