package usecases

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/abelzeko/aquaguard/internal/entities"
)

const gaugeWidth = 10

// gauge renders a percentage as a text progress bar
func gauge(percent float64) string {
	filled := int(percent/100*gaugeWidth + 0.5)
	if filled < 0 {
		filled = 0
	}
	if filled > gaugeWidth {
		filled = gaugeWidth
	}
	return strings.Repeat("▓", filled) + strings.Repeat("░", gaugeWidth-filled)
}

// FormatSensorCard formats a sensor with its 24h averages for display
func (uc *DashboardUseCase) FormatSensorCard(sensor entities.Sensor, stats entities.SensorStats) string {
	var result strings.Builder
	status := "🟢"
	if !sensor.IsActive() {
		status = "⚫"
	}
	result.WriteString(fmt.Sprintf("%s %s (%s)\n", status, sensor.Name, sensor.ID))
	result.WriteString(fmt.Sprintf("📍 %s · %s\n", sensor.Location, sensor.DeviceType.Label()))

	if stats.ReadingCount == 0 {
		result.WriteString("No readings in the last 24 hours.\n")
		return result.String()
	}

	result.WriteString(fmt.Sprintf("pH        %s %5.2f\n", gauge(entities.PHPercent(stats)), stats.AvgPH))
	result.WriteString(fmt.Sprintf("TDS       %s %5.0f ppm\n", gauge(entities.TDSPercent(stats)), stats.AvgTDS))
	result.WriteString(fmt.Sprintf("Turbidity %s %5.2f NTU\n", gauge(entities.TurbidityPercent(stats)), stats.AvgTurbidity))
	quality := entities.AssessQuality(stats.AvgPH, stats.AvgTDS, stats.AvgTurbidity)
	result.WriteString(fmt.Sprintf("Quality: %s · %d readings · %d anomalies\n",
		entities.QualityLabel(quality), stats.ReadingCount, stats.AnomalyCount))
	return result.String()
}

// FormatSensorList formats the sensor list as one line per sensor
func (uc *DashboardUseCase) FormatSensorList(sensors []entities.Sensor) string {
	if len(sensors) == 0 {
		return "No sensors registered yet. Use /addsensor to add one."
	}
	var result strings.Builder
	result.WriteString(fmt.Sprintf("📡 Sensors (%d):\n\n", len(sensors)))
	for _, s := range sensors {
		status := "🟢"
		if !s.IsActive() {
			status = "⚫"
		}
		result.WriteString(fmt.Sprintf("%s %s [%s]\n   %s · %s\n", status, s.Name, s.ID, s.Location, s.DeviceType.Label()))
	}
	return result.String()
}

// FormatAlerts formats alerts newest first as delivered by the backend
func (uc *DashboardUseCase) FormatAlerts(alerts []entities.Alert) string {
	if len(alerts) == 0 {
		return "✅ No alerts. All systems operating normally."
	}
	var result strings.Builder
	result.WriteString(fmt.Sprintf("🚨 Alerts (%d pending of %d):\n\n", entities.CountUnacknowledged(alerts), len(alerts)))
	for _, a := range alerts {
		ack := "⏳ pending"
		if a.IsAcknowledged {
			ack = "✓ acknowledged"
		}
		result.WriteString(fmt.Sprintf("%s %s · %s\n", a.Severity.Icon(), a.AlertType.Label(), ack))
		result.WriteString(fmt.Sprintf("   %s\n", a.Message))
		result.WriteString(fmt.Sprintf("   sensor %s · id %s", a.SensorID, a.ID))
		if t, ok := entities.ParseTime(a.CreatedAt); ok {
			result.WriteString(" · " + t.Format("2006-01-02 15:04"))
		}
		result.WriteString("\n\n")
	}
	return strings.TrimRight(result.String(), "\n")
}

// FormatSystemStats formats the system snapshot together with backend health
func (uc *DashboardUseCase) FormatSystemStats(stats entities.SystemStats, health entities.Health) string {
	var result strings.Builder
	result.WriteString("💧 AquaGuard overview\n\n")
	result.WriteString(fmt.Sprintf("📡 Sensors: %d\n", stats.TotalSensors))
	result.WriteString(fmt.Sprintf("📊 Readings: %d\n", stats.TotalReadings))
	result.WriteString(fmt.Sprintf("⚠️ Anomalies: %d\n", stats.TotalAnomalies))
	result.WriteString(fmt.Sprintf("🚨 Active alerts: %d\n", stats.ActiveAlerts))
	if health.OK() {
		result.WriteString("Backend: 🟢 healthy")
	} else {
		result.WriteString("Backend: 🔴 unreachable")
	}
	if t, ok := entities.ParseTime(stats.Timestamp); ok {
		result.WriteString(fmt.Sprintf("\n🕒 %s", t.Format("2006-01-02 15:04:05")))
	}
	return result.String()
}

// FormatSensorAlerts summarises the latest alerts raised by one sensor
func (uc *DashboardUseCase) FormatSensorAlerts(alerts []entities.Alert) string {
	if len(alerts) == 0 {
		return "No recent alerts for this sensor."
	}
	var result strings.Builder
	result.WriteString(fmt.Sprintf("Recent alerts (%d pending):\n", entities.CountUnacknowledged(alerts)))
	for _, a := range alerts {
		result.WriteString(fmt.Sprintf("%s %s · %s\n", a.Severity.Icon(), a.AlertType.Label(), a.Message))
	}
	return strings.TrimRight(result.String(), "\n")
}

// FormatAnomalyOverview lists the sensors with anomalies in the window, worst first
func (uc *DashboardUseCase) FormatAnomalyOverview(stats []entities.AnomalyStats, hours int) string {
	flagged := make([]entities.AnomalyStats, 0, len(stats))
	for _, s := range stats {
		if s.AnomaliesDetected > 0 {
			flagged = append(flagged, s)
		}
	}
	if len(flagged) == 0 {
		return fmt.Sprintf("No anomalies in the last %dh.", hours)
	}
	sort.SliceStable(flagged, func(i, j int) bool {
		return flagged[i].AnomalyPercentage > flagged[j].AnomalyPercentage
	})

	var result strings.Builder
	result.WriteString(fmt.Sprintf("Anomalies in the last %dh:\n", hours))
	for _, s := range flagged {
		name := s.SensorName
		if name == "" {
			name = s.SensorID
		}
		result.WriteString(fmt.Sprintf("• %s: %d of %d readings (%.1f%%)\n",
			name, s.AnomaliesDetected, s.TotalReadings, s.AnomalyPercentage))
	}
	return strings.TrimRight(result.String(), "\n")
}

// FormatRefreshStatus notes that a polled view is showing data from an older
// refresh. It returns "" when the last refresh succeeded.
func (uc *DashboardUseCase) FormatRefreshStatus(err error, updatedAt time.Time) string {
	if err == nil {
		return ""
	}
	if updatedAt.IsZero() {
		return "⚠️ Statistics are unavailable, the last refresh failed."
	}
	return fmt.Sprintf("⚠️ Last refresh failed, showing data from %s.", updatedAt.Format("2006-01-02 15:04:05"))
}

// FormatReadings formats the most recent readings, at most limit of them
func (uc *DashboardUseCase) FormatReadings(readings []entities.Reading, limit int) string {
	if len(readings) == 0 {
		return "No readings in this window."
	}
	if limit <= 0 || limit > len(readings) {
		limit = len(readings)
	}
	var result strings.Builder
	result.WriteString(fmt.Sprintf("📈 Latest %d of %d readings:\n\n", limit, len(readings)))
	for _, r := range readings[:limit] {
		when := r.CreatedAt
		if t, ok := entities.ParseTime(r.CreatedAt); ok {
			when = t.Format("01-02 15:04")
		}
		marker := ""
		if r.IsAnomaly {
			marker = " ⚠️"
		}
		result.WriteString(fmt.Sprintf("%s  pH %.2f · TDS %.0f · %.2f NTU · %s%s\n",
			when, r.PHLevel, r.TDSLevel, r.Turbidity, entities.QualityLabel(r.QualityStatus), marker))
	}
	return result.String()
}

// FormatAnomalies formats a detection run and the anomaly statistics of a sensor
func (uc *DashboardUseCase) FormatAnomalies(detection entities.AnomalyDetection, stats entities.AnomalyStats) string {
	var result strings.Builder
	result.WriteString(fmt.Sprintf("🔍 Anomalies for sensor %s\n", detection.SensorID))
	result.WriteString(fmt.Sprintf("%d of %d readings flagged (%.1f%%), average score %.2f\n",
		stats.AnomaliesDetected, stats.TotalReadings, stats.AnomalyPercentage, stats.AverageAnomalyScore))
	if stats.LastAnomalyTime != nil {
		if t, ok := entities.ParseTime(*stats.LastAnomalyTime); ok {
			result.WriteString(fmt.Sprintf("Last anomaly: %s\n", t.Format("2006-01-02 15:04")))
		}
	}
	if len(detection.Details) == 0 {
		result.WriteString("\nNo anomalies detected in this window.")
		return result.String()
	}
	result.WriteString("\n")
	for _, d := range detection.Details {
		result.WriteString(fmt.Sprintf("%s pH %.2f · TDS %.0f · %.2f NTU · score %.2f\n",
			d.Severity.Icon(), d.PHLevel, d.TDSLevel, d.Turbidity, d.AnomalyScore))
	}
	return result.String()
}

// FormatComplaints formats a user's complaints
func (uc *DashboardUseCase) FormatComplaints(complaints []entities.Complaint) string {
	if len(complaints) == 0 {
		return "You have not filed any complaints."
	}
	var result strings.Builder
	result.WriteString("📋 Recent Complaints:\n\n")
	for _, c := range complaints {
		result.WriteString(fmt.Sprintf("• %s [%s]\n   %s · sensor %s\n",
			c.Subject, c.Status, c.CreatedAt.Format("2006-01-02"), c.SensorID))
	}
	return result.String()
}

// FormatReports formats the discrepancy reports of the government view
func (uc *DashboardUseCase) FormatReports(reports []entities.DiscrepancyReport) string {
	if len(reports) == 0 {
		return "No household reports."
	}
	var result strings.Builder
	result.WriteString("📑 Household Reports:\n\n")
	for _, r := range reports {
		mark := "⏳"
		if r.Status == entities.ReportVerified {
			mark = "✅"
		}
		result.WriteString(fmt.Sprintf("%s #%d %s\n   Date: %s · %s\n", mark, r.ID, r.Household, r.Date, r.Status))
		if r.Status == entities.ReportVerified && r.ChlorineLevel != "" {
			result.WriteString(fmt.Sprintf("   Chlorine %s mg/L tested %s by %s\n", r.ChlorineLevel, r.TestDate, r.VerifiedBy))
		}
	}
	return result.String()
}

// FormatDiscrepancies formats the monthly comparison and the household overview
func (uc *DashboardUseCase) FormatDiscrepancies(months []entities.MonthlyDiscrepancy, areas []entities.HouseholdArea) string {
	var result strings.Builder
	result.WriteString("📊 Disclosed vs official readings:\n\n")
	for _, m := range months {
		result.WriteString(fmt.Sprintf("%-4s disclosed %3d · official %3d · diff %+d\n", m.Month, m.Disclosed, m.Official, m.Difference))
	}
	if len(areas) > 0 {
		result.WriteString("\n🏘 Households:\n\n")
		for _, h := range areas {
			result.WriteString(fmt.Sprintf("%s · %d sensors · %d complaints · %s · %s\n", h.Area, h.Sensors, h.Complaints, h.Status, h.LastUpdate))
		}
	}
	return result.String()
}
