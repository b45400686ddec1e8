// Package usecases contains the application's business logic
package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abelzeko/aquaguard/internal/entities"
	"github.com/abelzeko/aquaguard/internal/integration"
	"github.com/abelzeko/aquaguard/internal/integration/openai"
	"github.com/abelzeko/aquaguard/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DashboardUseCase handles the view logic of the user and government dashboards
type DashboardUseCase struct {
	backend       *integration.Backend
	store         repository.Store
	openAIService openai.OpenAIService
	logger        *zap.Logger
	now           func() time.Time
}

// NewDashboardUseCase creates a new dashboard use case. openAIService may be
// nil, in which case free-text queries are answered with a hint.
func NewDashboardUseCase(backend *integration.Backend, store repository.Store, openAIService openai.OpenAIService, logger *zap.Logger) *DashboardUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardUseCase{
		backend:       backend,
		store:         store,
		openAIService: openAIService,
		logger:        logger,
		now:           time.Now,
	}
}

// Backend exposes the resource accessors to views that build their own pollers
func (uc *DashboardUseCase) Backend() *integration.Backend {
	return uc.backend
}

// Acknowledge acknowledges alert id on the backend and returns alerts with
// only that alert flipped. On failure the input is returned untouched.
func (uc *DashboardUseCase) Acknowledge(ctx context.Context, alerts []entities.Alert, id string) ([]entities.Alert, error) {
	if err := uc.backend.Alerts.AcknowledgeAlert(ctx, id); err != nil {
		return alerts, err
	}
	return entities.AcknowledgeLocal(alerts, id), nil
}

// AddSensor validates and registers a new sensor
func (uc *DashboardUseCase) AddSensor(ctx context.Context, in entities.SensorCreate) (*entities.Sensor, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Location = strings.TrimSpace(in.Location)
	if in.Name == "" || in.Location == "" {
		return nil, fmt.Errorf("%w: sensor name and location are required", ErrValidation)
	}
	if !in.DeviceType.Valid() {
		return nil, fmt.Errorf("%w: unknown device type %q", ErrValidation, in.DeviceType)
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		return nil, fmt.Errorf("%w: latitude and longitude must be given together", ErrValidation)
	}
	return uc.backend.Sensors.CreateSensor(ctx, in)
}

// FindSensor looks a sensor up by id or, failing that, by case-insensitive name
func (uc *DashboardUseCase) FindSensor(ctx context.Context, key string) (*entities.Sensor, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("%w: sensor id is required", ErrValidation)
	}
	sensors, err := uc.backend.Sensors.GetAllSensors(ctx)
	for _, s := range sensors {
		if s.ID == key || strings.EqualFold(s.Name, key) {
			sensor := s
			return &sensor, nil
		}
	}
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: sensor %q", ErrNotFound, key)
}

// FileComplaint stores a complaint filed by a household user
func (uc *DashboardUseCase) FileComplaint(ctx context.Context, user entities.User, in entities.ComplaintCreate) (entities.Complaint, error) {
	if user.Role != entities.RoleUser {
		return entities.Complaint{}, fmt.Errorf("%w: only household users file complaints", ErrForbidden)
	}
	in.Subject = strings.TrimSpace(in.Subject)
	in.Description = strings.TrimSpace(in.Description)
	in.SensorID = strings.TrimSpace(in.SensorID)
	if in.Subject == "" || in.Description == "" || in.SensorID == "" {
		return entities.Complaint{}, fmt.Errorf("%w: Please fill in all fields", ErrValidation)
	}

	complaint := entities.Complaint{
		ID:          uuid.NewString(),
		UserID:      user.ID,
		UserEmail:   user.Email,
		SensorID:    in.SensorID,
		Subject:     in.Subject,
		Description: in.Description,
		Status:      entities.ComplaintSubmitted,
		CreatedAt:   uc.now(),
	}
	if err := uc.store.SaveComplaint(complaint); err != nil {
		uc.logger.Error("Failed to save complaint", zap.String("user", user.Email), zap.Error(err))
		return entities.Complaint{}, err
	}
	return complaint, nil
}

// ListComplaints returns the complaints of a household user
func (uc *DashboardUseCase) ListComplaints(user entities.User) ([]entities.Complaint, error) {
	if user.Role != entities.RoleUser {
		return nil, fmt.Errorf("%w: only household users have complaints", ErrForbidden)
	}
	return uc.store.ListComplaints(user.Email)
}

// ListReports returns the discrepancy reports awaiting or past verification
func (uc *DashboardUseCase) ListReports(user entities.User) ([]entities.DiscrepancyReport, error) {
	if err := requireGovernment(user); err != nil {
		return nil, err
	}
	return uc.store.ListReports()
}

// VerifyReport moves a pending report to verified with the given lab results
func (uc *DashboardUseCase) VerifyReport(ctx context.Context, id int64, v entities.Verification, user entities.User) (entities.DiscrepancyReport, error) {
	if err := requireGovernment(user); err != nil {
		return entities.DiscrepancyReport{}, err
	}
	v.ChlorineLevel = strings.TrimSpace(v.ChlorineLevel)
	v.TestDate = strings.TrimSpace(v.TestDate)
	if v.ChlorineLevel == "" || v.TestDate == "" {
		return entities.DiscrepancyReport{}, fmt.Errorf("%w: chlorine level and test date are required", ErrValidation)
	}
	if _, err := time.Parse("2006-01-02", v.TestDate); err != nil {
		return entities.DiscrepancyReport{}, fmt.Errorf("%w: test date must look like 2026-02-21", ErrValidation)
	}

	err := uc.store.VerifyReport(id, v, user.Email, uc.now())
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return entities.DiscrepancyReport{}, fmt.Errorf("%w: report %d", ErrNotFound, id)
	case errors.Is(err, repository.ErrAlreadyVerified):
		return entities.DiscrepancyReport{}, fmt.Errorf("%w: report %d is already verified", ErrValidation, id)
	case err != nil:
		return entities.DiscrepancyReport{}, err
	}
	return uc.store.GetReport(id)
}

// MonthlyDiscrepancies returns the disclosed vs official comparison
func (uc *DashboardUseCase) MonthlyDiscrepancies(user entities.User) ([]entities.MonthlyDiscrepancy, error) {
	if err := requireGovernment(user); err != nil {
		return nil, err
	}
	return uc.store.ListMonthlyDiscrepancies()
}

// HouseholdAreas returns the household overview
func (uc *DashboardUseCase) HouseholdAreas(user entities.User) ([]entities.HouseholdArea, error) {
	if err := requireGovernment(user); err != nil {
		return nil, err
	}
	return uc.store.ListHouseholdAreas()
}

func requireGovernment(user entities.User) error {
	if user.Role != entities.RoleGovernment {
		return fmt.Errorf("%w: government access required", ErrForbidden)
	}
	return nil
}

// Export builds the requested workbook and returns its file name and contents.
// sensorID is only used by the readings export.
func (uc *DashboardUseCase) Export(ctx context.Context, user entities.User, kind ExportKind, sensorID string) (string, []byte, error) {
	if !kind.Valid() {
		return "", nil, fmt.Errorf("%w: unknown export %q", ErrValidation, kind)
	}
	if kind.GovernmentOnly() {
		if err := requireGovernment(user); err != nil {
			return "", nil, err
		}
	}

	var sheets []Sheet
	switch kind {
	case ExportMonthly:
		months, err := uc.store.ListMonthlyDiscrepancies()
		if err != nil {
			return "", nil, err
		}
		areas, err := uc.store.ListHouseholdAreas()
		if err != nil {
			return "", nil, err
		}
		sheets = append(sheets, monthlySheet(months), areasSheet(areas))
	case ExportDiscrepancy:
		months, err := uc.store.ListMonthlyDiscrepancies()
		if err != nil {
			return "", nil, err
		}
		reports, err := uc.store.ListReports()
		if err != nil {
			return "", nil, err
		}
		sheets = append(sheets, monthlySheet(months), reportsSheet("Reports", reports))
	case ExportVerified:
		reports, err := uc.store.ListReports()
		if err != nil {
			return "", nil, err
		}
		var verified []entities.DiscrepancyReport
		for _, r := range reports {
			if r.Status == entities.ReportVerified {
				verified = append(verified, r)
			}
		}
		complaints, err := uc.store.ListAllComplaints()
		if err != nil {
			return "", nil, err
		}
		sheets = append(sheets, reportsSheet("Verified Reports", verified), complaintsSheet(complaints))
	case ExportReadings:
		if strings.TrimSpace(sensorID) == "" {
			return "", nil, fmt.Errorf("%w: sensor id is required", ErrValidation)
		}
		readings, err := uc.backend.Readings.GetReadingsByTimeRange(ctx, sensorID, integration.DefaultHours)
		if err != nil {
			return "", nil, err
		}
		sheets = append(sheets, readingsSheet(readings))
	}

	data, err := ExportWorkbook(sheets...)
	if err != nil {
		uc.logger.Error("Failed to build export", zap.String("kind", string(kind)), zap.Error(err))
		return "", nil, err
	}
	name := fmt.Sprintf("aquaguard-%s-%s.xlsx", kind, uc.now().Format("20060102"))
	return name, data, nil
}

func monthlySheet(months []entities.MonthlyDiscrepancy) Sheet {
	s := Sheet{Name: "Monthly", Header: []string{"Month", "Disclosed", "Official", "Difference"}}
	for _, m := range months {
		s.Rows = append(s.Rows, []interface{}{m.Month, m.Disclosed, m.Official, m.Difference})
	}
	return s
}

func areasSheet(areas []entities.HouseholdArea) Sheet {
	s := Sheet{Name: "Households", Header: []string{"Area", "Sensors", "Complaints", "Status", "Last Update"}}
	for _, h := range areas {
		s.Rows = append(s.Rows, []interface{}{h.Area, h.Sensors, h.Complaints, h.Status, h.LastUpdate})
	}
	return s
}

func reportsSheet(name string, reports []entities.DiscrepancyReport) Sheet {
	s := Sheet{Name: name, Header: []string{"ID", "Household", "Date", "Status", "Chlorine Level", "Test Date", "Notes", "Verified By", "Verified At"}}
	for _, r := range reports {
		verifiedAt := ""
		if !r.VerifiedAt.IsZero() {
			verifiedAt = r.VerifiedAt.Format("2006-01-02 15:04:05")
		}
		s.Rows = append(s.Rows, []interface{}{r.ID, r.Household, r.Date, r.Status, r.ChlorineLevel, r.TestDate, r.Notes, r.VerifiedBy, verifiedAt})
	}
	return s
}

func complaintsSheet(complaints []entities.Complaint) Sheet {
	s := Sheet{Name: "Complaints", Header: []string{"ID", "User", "Sensor", "Subject", "Description", "Status", "Filed At"}}
	for _, c := range complaints {
		s.Rows = append(s.Rows, []interface{}{c.ID, c.UserEmail, c.SensorID, c.Subject, c.Description, c.Status, c.CreatedAt.Format("2006-01-02 15:04:05")})
	}
	return s
}

func readingsSheet(readings []entities.Reading) Sheet {
	s := Sheet{Name: "Readings", Header: []string{"Time", "Sensor", "pH", "TDS (ppm)", "Turbidity (NTU)", "Quality", "Anomaly"}}
	for _, r := range readings {
		s.Rows = append(s.Rows, []interface{}{r.CreatedAt, r.SensorID, r.PHLevel, r.TDSLevel, r.Turbidity, r.QualityStatus, r.IsAnomaly})
	}
	return s
}

// HandleNaturalLanguageQuery interprets a user's free-text query using the AI service
// and returns an appropriate response string.
func (uc *DashboardUseCase) HandleNaturalLanguageQuery(ctx context.Context, query string) (string, error) {
	if uc.openAIService == nil {
		return "I only understand commands right now. Use /help to see them.", nil
	}
	uc.logger.Debug("Interpreting natural language query", zap.String("query", query))

	sensors, _ := uc.backend.Sensors.GetAllSensors(ctx)
	names := make([]string, 0, len(sensors))
	for _, s := range sensors {
		names = append(names, s.Name)
	}

	agentResp, err := uc.openAIService.InterpretUserQuery(ctx, query, names)
	if err != nil {
		uc.logger.Error("Error interpreting user query via OpenAI", zap.Error(err))
		return "Sorry, I'm having trouble understanding right now. Please try again later or use /help.", nil
	}

	uc.logger.Info("Agent response",
		zap.String("command", agentResp.CommandName),
		zap.String("sensor", agentResp.SensorName))

	msg := agentResp.UserMessage
	if msg != "" {
		msg += "\n\n"
	}

	switch agentResp.CommandName {
	case openai.CommandGetSensorStats:
		if agentResp.SensorName == "" {
			return agentResp.UserMessage, nil
		}
		sensor, err := uc.FindSensor(ctx, agentResp.SensorName)
		if err != nil {
			return msg + fmt.Sprintf("However, I couldn't find sensor '%s'. Use /sensors to see available ones.", agentResp.SensorName), nil
		}
		stats, _ := uc.backend.Sensors.GetSensorStats(ctx, sensor.ID, integration.DefaultHours)
		return msg + uc.FormatSensorCard(*sensor, stats), nil
	case openai.CommandGetAlerts:
		alerts, err := uc.backend.Alerts.GetUnacknowledgedAlerts(ctx, integration.DefaultAlertLimit)
		if err != nil {
			return msg + "Sorry, I couldn't fetch the alerts right now.", nil
		}
		return msg + uc.FormatAlerts(alerts), nil
	default:
		return agentResp.UserMessage, nil
	}
}
