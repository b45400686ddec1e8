// Package entities contains the core domain objects for the aquaguard dashboard
package entities

import (
	"time"
)

// DeviceType identifies where a sensor is installed in a household
type DeviceType string

const (
	DeviceOverheadTank    DeviceType = "overhead_tank"
	DeviceUndergroundTank DeviceType = "underground_tank"
	DeviceKitchenTap      DeviceType = "kitchen_tap"
	DeviceStorageBucket   DeviceType = "storage_bucket"
)

// DeviceTypes lists every device category the backend accepts
var DeviceTypes = []DeviceType{
	DeviceOverheadTank,
	DeviceUndergroundTank,
	DeviceKitchenTap,
	DeviceStorageBucket,
}

// Valid reports whether d is one of the known device categories
func (d DeviceType) Valid() bool {
	for _, known := range DeviceTypes {
		if d == known {
			return true
		}
	}
	return false
}

// Label returns a human readable name for the device category
func (d DeviceType) Label() string {
	switch d {
	case DeviceOverheadTank:
		return "Overhead Tank"
	case DeviceUndergroundTank:
		return "Underground Tank"
	case DeviceKitchenTap:
		return "Kitchen Tap"
	case DeviceStorageBucket:
		return "Storage Bucket"
	default:
		return string(d)
	}
}

// Sensor status values reported by the backend
const (
	SensorActive   = "active"
	SensorInactive = "inactive"
)

// Sensor is a registered water quality monitoring device
type Sensor struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Location      string     `json:"location"`
	DeviceType    DeviceType `json:"device_type"`
	Status        string     `json:"status"`
	Latitude      *float64   `json:"latitude,omitempty"`
	Longitude     *float64   `json:"longitude,omitempty"`
	CreatedAt     string     `json:"created_at,omitempty"`
	LastReadingAt string     `json:"last_reading_at,omitempty"`
}

// IsActive reports whether the sensor is currently reporting
func (s Sensor) IsActive() bool {
	return s.Status == SensorActive
}

// SensorCreate is the body sent when registering a new sensor
type SensorCreate struct {
	Name       string     `json:"name"`
	Location   string     `json:"location"`
	DeviceType DeviceType `json:"device_type"`
	Latitude   *float64   `json:"latitude,omitempty"`
	Longitude  *float64   `json:"longitude,omitempty"`
}

// SensorStats is the backend aggregate of a sensor's readings over a time window
type SensorStats struct {
	SensorID     string  `json:"sensor_id,omitempty"`
	ReadingCount int     `json:"reading_count"`
	AvgPH        float64 `json:"avg_ph"`
	AvgTDS       float64 `json:"avg_tds"`
	AvgTurbidity float64 `json:"avg_turbidity"`
	MinPH        float64 `json:"min_ph"`
	MaxPH        float64 `json:"max_ph"`
	MinTDS       float64 `json:"min_tds"`
	MaxTDS       float64 `json:"max_tds"`
	MinTurbidity float64 `json:"min_turbidity"`
	MaxTurbidity float64 `json:"max_turbidity"`
	AnomalyCount int     `json:"anomaly_count"`
	SensorName   string  `json:"sensor_name,omitempty"`
}

// SystemStats is a point-in-time snapshot of the whole deployment
type SystemStats struct {
	TotalSensors   int    `json:"total_sensors"`
	TotalReadings  int    `json:"total_readings"`
	TotalAnomalies int    `json:"total_anomalies"`
	ActiveAlerts   int    `json:"active_alerts"`
	Timestamp      string `json:"timestamp,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Health status values
const (
	HealthHealthy = "healthy"
	HealthError   = "error"
)

// Health is the backend liveness response
type Health struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp,omitempty"`
	Service   string `json:"service,omitempty"`
}

// OK reports whether the backend declared itself healthy
func (h Health) OK() bool {
	return h.Status == HealthHealthy
}

// ParseTime parses the ISO timestamps the backend emits, with or without a zone
func ParseTime(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
