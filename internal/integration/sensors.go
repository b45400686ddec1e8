package integration

import (
	"context"
	"net/url"
	"strconv"

	"github.com/abelzeko/aquaguard/internal/entities"
	"go.uber.org/zap"
)

// Default query values used when a caller passes zero
const (
	DefaultHours        = 24
	DefaultReadingLimit = 100
	DefaultAlertLimit   = 50
)

// SensorAPI maps the /api/sensors endpoints.
// Reads return a safe default alongside any error; writes return the error.
type SensorAPI struct {
	client *APIClient
	logger *zap.Logger
}

// NewSensorAPI creates a sensor accessor on top of client
func NewSensorAPI(client *APIClient) *SensorAPI {
	return &SensorAPI{client: client, logger: client.logger}
}

// GetAllSensors lists every sensor. On failure it returns an empty slice.
func (a *SensorAPI) GetAllSensors(ctx context.Context) ([]entities.Sensor, error) {
	var sensors []entities.Sensor
	if err := a.client.Get(ctx, "/api/sensors", nil, &sensors); err != nil {
		a.logger.Warn("Error fetching sensors", zap.Error(err))
		return []entities.Sensor{}, err
	}
	if sensors == nil {
		sensors = []entities.Sensor{}
	}
	return sensors, nil
}

// GetSensorByID fetches one sensor. On failure it returns nil.
func (a *SensorAPI) GetSensorByID(ctx context.Context, sensorID string) (*entities.Sensor, error) {
	var sensor entities.Sensor
	if err := a.client.Get(ctx, "/api/sensors/"+url.PathEscape(sensorID), nil, &sensor); err != nil {
		a.logger.Warn("Error fetching sensor", zap.String("sensor_id", sensorID), zap.Error(err))
		return nil, err
	}
	return &sensor, nil
}

// CreateSensor registers a new sensor. Failures are logged and returned.
func (a *SensorAPI) CreateSensor(ctx context.Context, sensor entities.SensorCreate) (*entities.Sensor, error) {
	var created entities.Sensor
	if err := a.client.Post(ctx, "/api/sensors", nil, sensor, &created); err != nil {
		a.logger.Error("Error creating sensor", zap.String("name", sensor.Name), zap.Error(err))
		return nil, err
	}
	return &created, nil
}

// GetSensorStats fetches reading statistics for the last hours. On failure it
// returns empty stats.
func (a *SensorAPI) GetSensorStats(ctx context.Context, sensorID string, hours int) (entities.SensorStats, error) {
	var stats entities.SensorStats
	path := "/api/sensors/" + url.PathEscape(sensorID) + "/stats"
	if err := a.client.Get(ctx, path, hoursQuery(hours), &stats); err != nil {
		a.logger.Warn("Error fetching sensor stats", zap.String("sensor_id", sensorID), zap.Error(err))
		return entities.SensorStats{}, err
	}
	return stats, nil
}

func hoursQuery(hours int) map[string]string {
	if hours <= 0 {
		hours = DefaultHours
	}
	return map[string]string{"hours": strconv.Itoa(hours)}
}

func limitQuery(limit, fallback int) map[string]string {
	if limit <= 0 {
		limit = fallback
	}
	return map[string]string{"limit": strconv.Itoa(limit)}
}
