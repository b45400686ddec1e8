package integration

import (
	"context"
	"net/url"

	"github.com/abelzeko/aquaguard/internal/entities"
	"go.uber.org/zap"
)

// ReadingAPI maps the /api/readings endpoints
type ReadingAPI struct {
	client *APIClient
	logger *zap.Logger
}

// NewReadingAPI creates a reading accessor on top of client
func NewReadingAPI(client *APIClient) *ReadingAPI {
	return &ReadingAPI{client: client, logger: client.logger}
}

// GetReadings returns the latest readings of a sensor. On failure it returns
// an empty slice.
func (a *ReadingAPI) GetReadings(ctx context.Context, sensorID string, limit int) ([]entities.Reading, error) {
	path := "/api/readings/sensor/" + url.PathEscape(sensorID)
	return a.list(ctx, path, limitQuery(limit, DefaultReadingLimit), sensorID)
}

// GetReadingsByTimeRange returns the readings of the last hours. On failure it
// returns an empty slice.
func (a *ReadingAPI) GetReadingsByTimeRange(ctx context.Context, sensorID string, hours int) ([]entities.Reading, error) {
	path := "/api/readings/sensor/" + url.PathEscape(sensorID) + "/range"
	return a.list(ctx, path, hoursQuery(hours), sensorID)
}

func (a *ReadingAPI) list(ctx context.Context, path string, query map[string]string, sensorID string) ([]entities.Reading, error) {
	var readings []entities.Reading
	if err := a.client.Get(ctx, path, query, &readings); err != nil {
		a.logger.Warn("Error fetching readings", zap.String("sensor_id", sensorID), zap.Error(err))
		return []entities.Reading{}, err
	}
	if readings == nil {
		readings = []entities.Reading{}
	}
	return readings, nil
}

// CreateReading submits a measurement. Failures are logged and returned.
func (a *ReadingAPI) CreateReading(ctx context.Context, reading entities.ReadingCreate) (*entities.Reading, error) {
	var saved entities.Reading
	if err := a.client.Post(ctx, "/api/readings", nil, reading, &saved); err != nil {
		a.logger.Error("Error submitting reading", zap.String("sensor_id", reading.SensorID), zap.Error(err))
		return nil, err
	}
	return &saved, nil
}

// GetAllStats returns reading statistics for every sensor. On failure it
// returns an empty slice.
func (a *ReadingAPI) GetAllStats(ctx context.Context) ([]entities.SensorStats, error) {
	var resp struct {
		Sensors []entities.SensorStats `json:"sensors"`
	}
	if err := a.client.Get(ctx, "/api/readings/stats/all", nil, &resp); err != nil {
		a.logger.Warn("Error fetching reading stats", zap.Error(err))
		return []entities.SensorStats{}, err
	}
	if resp.Sensors == nil {
		resp.Sensors = []entities.SensorStats{}
	}
	return resp.Sensors, nil
}
