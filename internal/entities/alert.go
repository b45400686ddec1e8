package entities

// AlertType categorises what triggered an alert
type AlertType string

const (
	AlertPHHigh        AlertType = "ph_high"
	AlertPHLow         AlertType = "ph_low"
	AlertTDSHigh       AlertType = "tds_high"
	AlertTurbidityHigh AlertType = "turbidity_high"
	AlertAnomaly       AlertType = "anomaly"
)

// Label returns the display label for the alert type
func (t AlertType) Label() string {
	switch t {
	case AlertPHHigh:
		return "📈 High pH"
	case AlertPHLow:
		return "📉 Low pH"
	case AlertTDSHigh:
		return "💧 High TDS"
	case AlertTurbidityHigh:
		return "🌫️ High Turbidity"
	case AlertAnomaly:
		return "⚠️ Anomaly"
	default:
		return string(t)
	}
}

// Severity ranks how urgent an alert or anomaly is
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Icon returns a short marker used when rendering the severity
func (s Severity) Icon() string {
	switch s {
	case SeverityCritical, SeverityHigh:
		return "🔴"
	case SeverityMedium:
		return "🟠"
	case SeverityLow:
		return "🔵"
	default:
		return "⚪"
	}
}

// Alert is a threshold or anomaly notification raised by the backend
type Alert struct {
	ID             string    `json:"id"`
	SensorID       string    `json:"sensor_id"`
	AlertType      AlertType `json:"alert_type"`
	Severity       Severity  `json:"severity"`
	Message        string    `json:"message"`
	ReadingID      string    `json:"reading_id,omitempty"`
	IsAcknowledged bool      `json:"is_acknowledged"`
	AcknowledgedAt string    `json:"acknowledged_at,omitempty"`
	NotifiedVia    []string  `json:"notified_via,omitempty"`
	CreatedAt      string    `json:"created_at,omitempty"`
}

// AcknowledgeLocal returns a copy of alerts where only the alert with the given
// id is marked acknowledged. Acknowledgement never flips back to false.
func AcknowledgeLocal(alerts []Alert, id string) []Alert {
	out := make([]Alert, len(alerts))
	copy(out, alerts)
	for i := range out {
		if out[i].ID == id {
			out[i].IsAcknowledged = true
		}
	}
	return out
}

// CountUnacknowledged returns how many alerts are still pending
func CountUnacknowledged(alerts []Alert) int {
	n := 0
	for _, a := range alerts {
		if !a.IsAcknowledged {
			n++
		}
	}
	return n
}
