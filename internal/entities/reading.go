package entities

import "time"

// Quality status values assigned to readings
const (
	QualityGood = "good"
	QualityFair = "fair"
	QualityPoor = "poor"
)

// Reading is a single measurement reported by a sensor
type Reading struct {
	ID            string   `json:"id"`
	SensorID      string   `json:"sensor_id"`
	PHLevel       float64  `json:"ph_level"`  // 0-14
	TDSLevel      float64  `json:"tds_level"` // ppm
	Turbidity     float64  `json:"turbidity"` // NTU
	Temperature   *float64 `json:"temperature,omitempty"`
	IsAnomaly     bool     `json:"is_anomaly"`
	AnomalyScore  *float64 `json:"anomaly_score,omitempty"`
	QualityStatus string   `json:"quality_status"`
	CreatedAt     string   `json:"created_at"`
}

// ReadingCreate is the body sent when submitting a measurement
type ReadingCreate struct {
	SensorID    string     `json:"sensor_id"`
	PHLevel     float64    `json:"ph_level"`
	TDSLevel    float64    `json:"tds_level"`
	Turbidity   float64    `json:"turbidity"`
	Temperature *float64   `json:"temperature,omitempty"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
}

// AssessQuality grades a measurement the same way the backend does
func AssessQuality(ph, tds, turbidity float64) string {
	if ph < 6.5 || ph > 8.5 || tds > 500 || turbidity > 5 {
		return QualityPoor
	}
	if ph < 7.0 || ph > 8.0 || tds > 300 || turbidity > 2 {
		return QualityFair
	}
	return QualityGood
}

// QualityLabel returns the display label for a quality status
func QualityLabel(status string) string {
	switch status {
	case QualityGood:
		return "✓ Good"
	case QualityFair:
		return "⚠ Fair"
	case QualityPoor:
		return "✗ Poor"
	default:
		return "Unknown"
	}
}
