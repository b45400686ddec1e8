package entities

import "math"

// Scale maxima used by the sensor card indicators
const (
	PHScaleMax        = 14.0
	TDSScaleMax       = 500.0 // ppm
	TurbidityScaleMax = 5.0   // NTU
	neutralPH         = 7.0
)

// PHPercent is the pH indicator value. A missing average is shown as neutral.
// The value is not clamped because pH never exceeds the scale.
func PHPercent(stats SensorStats) float64 {
	ph := stats.AvgPH
	if ph == 0 {
		ph = neutralPH
	}
	return ph / PHScaleMax * 100
}

// TDSPercent is the TDS indicator value, clamped to 100
func TDSPercent(stats SensorStats) float64 {
	return math.Min(stats.AvgTDS/TDSScaleMax*100, 100)
}

// TurbidityPercent is the turbidity indicator value, clamped to 100
func TurbidityPercent(stats SensorStats) float64 {
	return math.Min(stats.AvgTurbidity/TurbidityScaleMax*100, 100)
}
