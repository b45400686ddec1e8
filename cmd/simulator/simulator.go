package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/abelzeko/aquaguard/internal/config"
	"github.com/abelzeko/aquaguard/internal/entities"
	"github.com/abelzeko/aquaguard/internal/integration"
	"github.com/abelzeko/aquaguard/internal/logger"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Share of readings generated outside the normal band
const anomalyRate = 0.05

// Baselines of a healthy household supply
const (
	phBaseline        = 7.0
	tdsBaseline       = 200.0
	turbidityBaseline = 1.0
	temperature       = 25.0
)

type deviceConfig struct {
	location   string
	deviceType entities.DeviceType
}

var deviceConfigs = []deviceConfig{
	{location: "Overhead Tank - Main House", deviceType: entities.DeviceOverheadTank},
	{location: "Kitchen Tap - Ground Floor", deviceType: entities.DeviceKitchenTap},
	{location: "Underground Tank - Basement", deviceType: entities.DeviceUndergroundTank},
	{location: "Storage Bucket - Courtyard", deviceType: entities.DeviceStorageBucket},
}

// device is one simulated ESP32 board
type device struct {
	id         string
	location   string
	deviceType entities.DeviceType
	sensorID   string
}

func newDevices(n int) []*device {
	if n > len(deviceConfigs) {
		n = len(deviceConfigs)
	}
	devices := make([]*device, 0, n)
	for i := 0; i < n; i++ {
		devices = append(devices, &device{
			id:         fmt.Sprintf("ESP32-%03d", i+1),
			location:   deviceConfigs[i].location,
			deviceType: deviceConfigs[i].deviceType,
		})
	}
	return devices
}

// generateReading draws one measurement. With probability anomaly the values
// fall in the contaminated band.
func (d *device) generateReading(rng *rand.Rand, anomaly float64) entities.ReadingCreate {
	var ph, tds, turbidity float64
	if rng.Float64() < anomaly {
		ph = uniform(rng, 5.0, 9.5)
		tds = uniform(rng, 300, 800)
		turbidity = uniform(rng, 5, 15)
	} else {
		ph = phBaseline + uniform(rng, -0.5, 0.5)
		tds = tdsBaseline + uniform(rng, -30, 30)
		turbidity = turbidityBaseline + uniform(rng, -0.2, 0.2)
	}

	temp := temperature
	return entities.ReadingCreate{
		SensorID:    d.sensorID,
		PHLevel:     round(math.Max(0, math.Min(14, ph)), 2),
		TDSLevel:    round(math.Max(0, tds), 1),
		Turbidity:   round(math.Max(0, turbidity), 2),
		Temperature: &temp,
	}
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// simulator registers its devices once and then submits a reading per device
// on every round
type simulator struct {
	backend *integration.Backend
	devices []*device
	logger  *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

func newSimulator(backend *integration.Backend, devices []*device, seed int64, logger *zap.Logger) *simulator {
	return &simulator{
		backend: backend,
		devices: devices,
		logger:  logger,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// register creates a backend sensor for every device not yet registered
func (s *simulator) register(ctx context.Context) error {
	var errs []error
	for _, d := range s.devices {
		if d.sensorID != "" {
			continue
		}
		sensor, err := s.backend.Sensors.CreateSensor(ctx, entities.SensorCreate{
			Name:       "Sensor-" + d.id,
			Location:   d.location,
			DeviceType: d.deviceType,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("register %s: %w", d.id, err))
			continue
		}
		d.sensorID = sensor.ID
		s.logger.Info("Sensor registered", zap.String("device", d.id), zap.String("sensor_id", d.sensorID))
	}
	return errors.Join(errs...)
}

// submitRound posts one reading per registered device and returns how many
// were accepted
func (s *simulator) submitRound(ctx context.Context) int {
	accepted := 0
	for _, d := range s.devices {
		if d.sensorID == "" {
			s.logger.Warn("Sensor not registered", zap.String("device", d.id))
			continue
		}

		s.mu.Lock()
		reading := d.generateReading(s.rng, anomalyRate)
		s.mu.Unlock()

		created, err := s.backend.Readings.CreateReading(ctx, reading)
		if err != nil {
			continue
		}
		accepted++
		s.logger.Info("Reading submitted",
			zap.String("location", d.location),
			zap.Float64("ph", reading.PHLevel),
			zap.Float64("tds", reading.TDSLevel),
			zap.Float64("turbidity", reading.Turbidity),
			zap.Bool("anomaly", created.IsAnomaly))
	}
	return accepted
}

// runBatch submits n rounds spaced by interval
func (s *simulator) runBatch(ctx context.Context, n int, interval time.Duration) {
	for i := 0; i < n; i++ {
		s.logger.Info("Batch round", zap.Int("round", i+1), zap.Int("of", n))
		s.submitRound(ctx)
		if i == n-1 {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
	s.logger.Info("Batch simulation completed")
}

func main() {
	configDir := flag.String("config", ".", "directory holding .env and config.yaml")
	batch := flag.Int("batch", 0, "submit this many rounds and exit; 0 runs until interrupted")
	flag.Parse()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "aquaguard-simulator")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	interval := cfg.Simulator.Interval
	if interval < time.Second {
		interval = time.Second
	}
	log.Info("Starting IoT sensor simulator",
		zap.String("backend", cfg.Backend.URL),
		zap.Int("devices", cfg.Simulator.Devices),
		zap.Duration("interval", interval))

	backend := integration.NewBackend(integration.ClientOptions{
		BaseURL:    cfg.Backend.URL,
		Timeout:    cfg.Backend.Timeout,
		RetryCount: cfg.Backend.RetryCount,
	}, log.Named("backend"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sim := newSimulator(backend, newDevices(cfg.Simulator.Devices), time.Now().UnixNano(), log)
	if err := sim.register(ctx); err != nil {
		log.Fatal("Failed to initialize sensors", zap.Error(err))
	}

	if *batch > 0 {
		sim.runBatch(ctx, *batch, interval)
		return
	}

	c := cron.New(cron.WithLogger(logger.NewCronLogger(log)))
	_, err = c.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		sim.submitRound(ctx)
	})
	if err != nil {
		log.Fatal("Failed to set up cron job", zap.Error(err))
	}

	sim.submitRound(ctx)
	c.Start()
	log.Info("Simulator scheduled, press Ctrl+C to stop")

	<-ctx.Done()
	<-c.Stop().Done()
	log.Info("Simulation stopped")
}
