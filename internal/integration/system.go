package integration

import (
	"context"
	"net/http"

	"github.com/abelzeko/aquaguard/internal/entities"
	"go.uber.org/zap"
)

// SystemAPI maps the health and system statistics endpoints
type SystemAPI struct {
	client *APIClient
	logger *zap.Logger
}

// NewSystemAPI creates a system accessor on top of client
func NewSystemAPI(client *APIClient) *SystemAPI {
	return &SystemAPI{client: client, logger: client.logger}
}

// HealthCheck pings the backend. On failure it returns a health value with
// status "error".
func (a *SystemAPI) HealthCheck(ctx context.Context) (entities.Health, error) {
	var health entities.Health
	if err := a.client.Get(ctx, "/api/health", nil, &health); err != nil {
		a.logger.Warn("Error checking health", zap.Error(err))
		return entities.Health{Status: entities.HealthError}, err
	}
	return health, nil
}

// GetStats returns the system snapshot. On failure it returns empty stats.
// The backend answers internal failures with 200 and an error field, which
// is reported as an *APIError wrapping ErrBackendReported.
func (a *SystemAPI) GetStats(ctx context.Context) (entities.SystemStats, error) {
	var stats entities.SystemStats
	if err := a.client.Get(ctx, "/api/stats", nil, &stats); err != nil {
		a.logger.Warn("Error fetching stats", zap.Error(err))
		return entities.SystemStats{}, err
	}
	if stats.Error != "" {
		err := &APIError{
			Method:     http.MethodGet,
			Path:       "/api/stats",
			StatusCode: http.StatusOK,
			Payload:    truncate(stats.Error),
			Err:        ErrBackendReported,
		}
		a.logger.Warn("Backend reported a stats failure", zap.String("error", stats.Error))
		return entities.SystemStats{}, err
	}
	return stats, nil
}

// Backend bundles every resource accessor over one shared client
type Backend struct {
	Client    *APIClient
	Sensors   *SensorAPI
	Readings  *ReadingAPI
	Anomalies *AnomalyAPI
	Alerts    *AlertAPI
	System    *SystemAPI
}

// NewBackend creates all accessors for the backend described by opts
func NewBackend(opts ClientOptions, logger *zap.Logger) *Backend {
	client := NewAPIClient(opts, logger)
	return &Backend{
		Client:    client,
		Sensors:   NewSensorAPI(client),
		Readings:  NewReadingAPI(client),
		Anomalies: NewAnomalyAPI(client),
		Alerts:    NewAlertAPI(client),
		System:    NewSystemAPI(client),
	}
}
