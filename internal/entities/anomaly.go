package entities

// AnomalyDetail describes one reading flagged by the backend detector
type AnomalyDetail struct {
	ReadingID    string   `json:"reading_id"`
	SensorID     string   `json:"sensor_id"`
	Timestamp    string   `json:"timestamp"`
	PHLevel      float64  `json:"ph_level"`
	TDSLevel     float64  `json:"tds_level"`
	Turbidity    float64  `json:"turbidity"`
	AnomalyScore float64  `json:"anomaly_score"`
	Severity     Severity `json:"severity"`
}

// AnomalyDetection is the result of an on-demand detection run
type AnomalyDetection struct {
	SensorID       string          `json:"sensor_id"`
	TotalAnomalies int             `json:"total_anomalies"`
	AnomalyIDs     []string        `json:"anomaly_ids"`
	Details        []AnomalyDetail `json:"details"`
}

// AnomalyStats summarises anomalies for a sensor over a time window
type AnomalyStats struct {
	SensorID            string  `json:"sensor_id,omitempty"`
	SensorName          string  `json:"sensor_name,omitempty"`
	TotalReadings       int     `json:"total_readings"`
	AnomaliesDetected   int     `json:"anomalies_detected"`
	AnomalyPercentage   float64 `json:"anomaly_percentage"`
	LastAnomalyTime     *string `json:"last_anomaly_time,omitempty"`
	AverageAnomalyScore float64 `json:"average_anomaly_score"`
}
