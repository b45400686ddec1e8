package integration

import (
	"context"
	"strconv"

	"github.com/abelzeko/aquaguard/internal/entities"
	"go.uber.org/zap"
)

// AnomalyAPI maps the /api/anomalies endpoints
type AnomalyAPI struct {
	client *APIClient
	logger *zap.Logger
}

// NewAnomalyAPI creates an anomaly accessor on top of client
func NewAnomalyAPI(client *APIClient) *AnomalyAPI {
	return &AnomalyAPI{client: client, logger: client.logger}
}

func sensorWindowQuery(sensorID string, hours int) map[string]string {
	if hours <= 0 {
		hours = DefaultHours
	}
	return map[string]string{"sensor_id": sensorID, "hours": strconv.Itoa(hours)}
}

// DetectAnomalies runs the backend detector for a sensor. Although it is a POST
// it is treated as a read: on failure it returns a result with no details.
func (a *AnomalyAPI) DetectAnomalies(ctx context.Context, sensorID string, hours int) (entities.AnomalyDetection, error) {
	var result entities.AnomalyDetection
	if err := a.client.Post(ctx, "/api/anomalies/detect", sensorWindowQuery(sensorID, hours), nil, &result); err != nil {
		a.logger.Warn("Error detecting anomalies", zap.String("sensor_id", sensorID), zap.Error(err))
		return entities.AnomalyDetection{SensorID: sensorID, AnomalyIDs: []string{}, Details: []entities.AnomalyDetail{}}, err
	}
	if result.Details == nil {
		result.Details = []entities.AnomalyDetail{}
	}
	if result.AnomalyIDs == nil {
		result.AnomalyIDs = []string{}
	}
	return result, nil
}

// GetAnomalyStats returns anomaly statistics for a sensor. On failure it
// returns empty stats.
func (a *AnomalyAPI) GetAnomalyStats(ctx context.Context, sensorID string, hours int) (entities.AnomalyStats, error) {
	var stats entities.AnomalyStats
	if err := a.client.Get(ctx, "/api/anomalies/stats", sensorWindowQuery(sensorID, hours), &stats); err != nil {
		a.logger.Warn("Error fetching anomaly stats", zap.String("sensor_id", sensorID), zap.Error(err))
		return entities.AnomalyStats{}, err
	}
	return stats, nil
}

// GetAllAnomalyStats returns anomaly statistics for every sensor. On failure it
// returns an empty slice.
func (a *AnomalyAPI) GetAllAnomalyStats(ctx context.Context, hours int) ([]entities.AnomalyStats, error) {
	var resp struct {
		Sensors []entities.AnomalyStats `json:"sensors"`
	}
	if err := a.client.Get(ctx, "/api/anomalies/all-stats", hoursQuery(hours), &resp); err != nil {
		a.logger.Warn("Error fetching anomaly stats", zap.Error(err))
		return []entities.AnomalyStats{}, err
	}
	if resp.Sensors == nil {
		resp.Sensors = []entities.AnomalyStats{}
	}
	return resp.Sensors, nil
}
