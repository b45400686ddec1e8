package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPHPercent(t *testing.T) {
	assert.InDelta(t, 60.0, PHPercent(SensorStats{AvgPH: 8.4}), 1e-9)
	// Missing average renders as neutral water.
	assert.InDelta(t, 50.0, PHPercent(SensorStats{}), 1e-9)
}

func TestTDSPercentClamps(t *testing.T) {
	assert.Equal(t, 100.0, TDSPercent(SensorStats{AvgTDS: 600}))
	assert.Equal(t, 100.0, TDSPercent(SensorStats{AvgTDS: 50000}))
	assert.InDelta(t, 60.0, TDSPercent(SensorStats{AvgTDS: 300}), 1e-9)
	assert.Equal(t, 0.0, TDSPercent(SensorStats{}))
}

func TestTurbidityPercentClamps(t *testing.T) {
	assert.InDelta(t, 50.0, TurbidityPercent(SensorStats{AvgTurbidity: 2.5}), 1e-9)
	assert.Equal(t, 100.0, TurbidityPercent(SensorStats{AvgTurbidity: 12}))
}

func TestAcknowledgeLocalFlipsOnlyTarget(t *testing.T) {
	alerts := []Alert{
		{ID: "1", IsAcknowledged: false},
		{ID: "2", IsAcknowledged: false},
	}

	got := AcknowledgeLocal(alerts, "1")

	assert.Equal(t, []Alert{
		{ID: "1", IsAcknowledged: true},
		{ID: "2", IsAcknowledged: false},
	}, got)
	// The input slice is left untouched.
	assert.False(t, alerts[0].IsAcknowledged)
}

func TestAcknowledgeLocalNeverReverts(t *testing.T) {
	alerts := []Alert{{ID: "1", IsAcknowledged: true}, {ID: "2", IsAcknowledged: true}}

	got := AcknowledgeLocal(alerts, "3")

	assert.True(t, got[0].IsAcknowledged)
	assert.True(t, got[1].IsAcknowledged)
	assert.Equal(t, 0, CountUnacknowledged(got))
}

func TestAssessQuality(t *testing.T) {
	cases := []struct {
		name               string
		ph, tds, turbidity float64
		want               string
	}{
		{"clean", 7.4, 200, 1.0, QualityGood},
		{"slightly acidic", 6.8, 200, 1.0, QualityFair},
		{"hard water", 7.2, 350, 1.0, QualityFair},
		{"cloudy", 7.2, 200, 3, QualityFair},
		{"alkaline", 8.7, 200, 1.0, QualityPoor},
		{"high tds", 7.2, 650, 1.0, QualityPoor},
		{"turbid", 7.2, 200, 6, QualityPoor},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, AssessQuality(tc.ph, tc.tds, tc.turbidity))
		})
	}
}

func TestDeviceTypeValid(t *testing.T) {
	assert.True(t, DeviceKitchenTap.Valid())
	assert.False(t, DeviceType("bathtub").Valid())
	assert.Equal(t, "Kitchen Tap", DeviceKitchenTap.Label())
}

func TestParseTime(t *testing.T) {
	_, ok := ParseTime("2026-02-20T10:15:00.123456")
	assert.True(t, ok)
	_, ok = ParseTime("2026-02-20T10:15:00Z")
	assert.True(t, ok)
	_, ok = ParseTime("yesterday")
	assert.False(t, ok)
}
