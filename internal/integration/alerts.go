package integration

import (
	"context"
	"net/url"

	"github.com/abelzeko/aquaguard/internal/entities"
	"go.uber.org/zap"
)

// AlertAPI maps the /api/alerts endpoints
type AlertAPI struct {
	client *APIClient
	logger *zap.Logger
}

// NewAlertAPI creates an alert accessor on top of client
func NewAlertAPI(client *APIClient) *AlertAPI {
	return &AlertAPI{client: client, logger: client.logger}
}

// GetAlerts returns the most recent alerts. On failure it returns an empty slice.
func (a *AlertAPI) GetAlerts(ctx context.Context, limit int) ([]entities.Alert, error) {
	return a.list(ctx, "/api/alerts", limit)
}

// GetUnacknowledgedAlerts returns pending alerts. On failure it returns an
// empty slice.
func (a *AlertAPI) GetUnacknowledgedAlerts(ctx context.Context, limit int) ([]entities.Alert, error) {
	return a.list(ctx, "/api/alerts/unacknowledged", limit)
}

// GetSensorAlerts returns the alerts raised for one sensor. On failure it
// returns an empty slice.
func (a *AlertAPI) GetSensorAlerts(ctx context.Context, sensorID string, limit int) ([]entities.Alert, error) {
	return a.list(ctx, "/api/alerts/sensor/"+url.PathEscape(sensorID), limit)
}

func (a *AlertAPI) list(ctx context.Context, path string, limit int) ([]entities.Alert, error) {
	var alerts []entities.Alert
	if err := a.client.Get(ctx, path, limitQuery(limit, DefaultAlertLimit), &alerts); err != nil {
		a.logger.Warn("Error fetching alerts", zap.String("path", path), zap.Error(err))
		return []entities.Alert{}, err
	}
	if alerts == nil {
		alerts = []entities.Alert{}
	}
	return alerts, nil
}

// AcknowledgeAlert marks an alert as handled on the backend. Failures are
// logged and returned.
func (a *AlertAPI) AcknowledgeAlert(ctx context.Context, alertID string) error {
	var resp struct {
		Message string `json:"message"`
	}
	if err := a.client.Put(ctx, "/api/alerts/"+url.PathEscape(alertID)+"/acknowledge", nil, &resp); err != nil {
		a.logger.Error("Error acknowledging alert", zap.String("alert_id", alertID), zap.Error(err))
		return err
	}
	a.logger.Info("Alert acknowledged", zap.String("alert_id", alertID), zap.String("message", resp.Message))
	return nil
}
