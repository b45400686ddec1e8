// Package repository provides data access implementations
package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/abelzeko/aquaguard/internal/entities"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// DefaultDBPath is used when no database path is configured
const DefaultDBPath = "data/aquaguard.db"

var (
	ErrNotFound        = errors.New("record not found")
	ErrAlreadyVerified = errors.New("report already verified")
)

// Store defines the persistence operations for locally held dashboard data
type Store interface {
	SaveComplaint(c entities.Complaint) error
	ListComplaints(userEmail string) ([]entities.Complaint, error)
	ListAllComplaints() ([]entities.Complaint, error)
	ListReports() ([]entities.DiscrepancyReport, error)
	GetReport(id int64) (entities.DiscrepancyReport, error)
	VerifyReport(id int64, v entities.Verification, verifiedBy string, at time.Time) error
	ListMonthlyDiscrepancies() ([]entities.MonthlyDiscrepancy, error)
	ListHouseholdAreas() ([]entities.HouseholdArea, error)
	Close() error
}

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db     *sql.DB
	DBPath string
	logger *zap.Logger
}

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS complaints (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		user_email TEXT NOT NULL,
		sensor_id TEXT NOT NULL,
		subject TEXT NOT NULL,
		description TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_complaints_email ON complaints(user_email);

	CREATE TABLE IF NOT EXISTS discrepancy_reports (
		id INTEGER PRIMARY KEY,
		household TEXT NOT NULL,
		date TEXT NOT NULL,
		status TEXT NOT NULL,
		chlorine_level TEXT NOT NULL DEFAULT '',
		test_date TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		verified_by TEXT NOT NULL DEFAULT '',
		verified_at TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS monthly_discrepancies (
		position INTEGER PRIMARY KEY,
		month TEXT NOT NULL,
		disclosed INTEGER NOT NULL,
		official INTEGER NOT NULL,
		difference INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS household_areas (
		id INTEGER PRIMARY KEY,
		area TEXT NOT NULL,
		sensors INTEGER NOT NULL,
		complaints INTEGER NOT NULL,
		status TEXT NOT NULL,
		last_update TEXT NOT NULL
	);`

// NewSQLiteStore opens (and on first use creates and seeds) the database at dbPath
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dbPath == "" {
		dbPath = DefaultDBPath
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	logger.Info("Opening database", zap.String("path", dbPath))
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer keeps SQLite from reporting "database is locked"
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	s := &SQLiteStore{db: db, DBPath: dbPath, logger: logger}
	if err := s.seed(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// seed fills the government overview tables the first time the database is created
func (s *SQLiteStore) seed() error {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM discrepancy_reports").Scan(&count); err != nil {
		return fmt.Errorf("failed to check seed state: %w", err)
	}
	if count > 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	for _, r := range seedReports {
		if _, err := tx.Exec(`INSERT INTO discrepancy_reports(id, household, date, status) VALUES(?, ?, ?, ?)`,
			r.ID, r.Household, r.Date, r.Status); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to seed report %d: %w", r.ID, err)
		}
	}
	for i, m := range seedMonthly {
		if _, err := tx.Exec(`INSERT INTO monthly_discrepancies(position, month, disclosed, official, difference) VALUES(?, ?, ?, ?, ?)`,
			i, m.Month, m.Disclosed, m.Official, m.Difference); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to seed monthly row %s: %w", m.Month, err)
		}
	}
	for _, h := range seedAreas {
		if _, err := tx.Exec(`INSERT INTO household_areas(id, area, sensors, complaints, status, last_update) VALUES(?, ?, ?, ?, ?, ?)`,
			h.ID, h.Area, h.Sensors, h.Complaints, h.Status, h.LastUpdate); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to seed area %s: %w", h.Area, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.logger.Info("Seeded dashboard data",
		zap.Int("reports", len(seedReports)),
		zap.Int("months", len(seedMonthly)),
		zap.Int("areas", len(seedAreas)))
	return nil
}

// SaveComplaint inserts a new complaint
func (s *SQLiteStore) SaveComplaint(c entities.Complaint) error {
	_, err := s.db.Exec(`
		INSERT INTO complaints(id, user_id, user_email, sensor_id, subject, description, status, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.UserEmail, c.SensorID, c.Subject, c.Description, c.Status,
		c.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save complaint: %w", err)
	}
	s.logger.Info("Complaint saved", zap.String("complaint_id", c.ID), zap.String("sensor_id", c.SensorID))
	return nil
}

// ListComplaints returns the complaints filed by one user, newest first
func (s *SQLiteStore) ListComplaints(userEmail string) ([]entities.Complaint, error) {
	return s.queryComplaints(`
		SELECT id, user_id, user_email, sensor_id, subject, description, status, created_at
		FROM complaints WHERE user_email = ?
		ORDER BY created_at DESC`, userEmail)
}

// ListAllComplaints returns every complaint, newest first
func (s *SQLiteStore) ListAllComplaints() ([]entities.Complaint, error) {
	return s.queryComplaints(`
		SELECT id, user_id, user_email, sensor_id, subject, description, status, created_at
		FROM complaints
		ORDER BY created_at DESC`)
}

func (s *SQLiteStore) queryComplaints(query string, args ...interface{}) ([]entities.Complaint, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query complaints: %w", err)
	}
	defer rows.Close()

	result := []entities.Complaint{}
	for rows.Next() {
		var c entities.Complaint
		var createdAt string
		if err := rows.Scan(&c.ID, &c.UserID, &c.UserEmail, &c.SensorID, &c.Subject, &c.Description, &c.Status, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		c.CreatedAt, _ = entities.ParseTime(createdAt)
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return result, nil
}

const reportColumns = `id, household, date, status, chlorine_level, test_date, notes, verified_by, verified_at`

// ListReports returns all discrepancy reports, newest report date first
func (s *SQLiteStore) ListReports() ([]entities.DiscrepancyReport, error) {
	rows, err := s.db.Query(`SELECT ` + reportColumns + ` FROM discrepancy_reports ORDER BY date DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	result := []entities.DiscrepancyReport{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return result, nil
}

// GetReport returns one report or ErrNotFound
func (s *SQLiteStore) GetReport(id int64) (entities.DiscrepancyReport, error) {
	r, err := scanReport(s.db.QueryRow(`SELECT `+reportColumns+` FROM discrepancy_reports WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return entities.DiscrepancyReport{}, fmt.Errorf("report %d: %w", id, ErrNotFound)
	}
	return r, err
}

// VerifyReport records the verification of a pending report
func (s *SQLiteStore) VerifyReport(id int64, v entities.Verification, verifiedBy string, at time.Time) error {
	res, err := s.db.Exec(`
		UPDATE discrepancy_reports
		SET status = ?, chlorine_level = ?, test_date = ?, notes = ?, verified_by = ?, verified_at = ?
		WHERE id = ? AND status = ?`,
		entities.ReportVerified, v.ChlorineLevel, v.TestDate, v.Notes, verifiedBy,
		at.UTC().Format(time.RFC3339Nano), id, entities.ReportPending)
	if err != nil {
		return fmt.Errorf("failed to verify report %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.logger.Info("Report verified", zap.Int64("report_id", id), zap.String("verified_by", verifiedBy))
		return nil
	}

	// nothing updated: either unknown or not pending
	if _, err := s.GetReport(id); err != nil {
		return err
	}
	return fmt.Errorf("report %d: %w", id, ErrAlreadyVerified)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReport(row rowScanner) (entities.DiscrepancyReport, error) {
	var r entities.DiscrepancyReport
	var verifiedAt string
	if err := row.Scan(&r.ID, &r.Household, &r.Date, &r.Status, &r.ChlorineLevel, &r.TestDate, &r.Notes, &r.VerifiedBy, &verifiedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("failed to scan row: %w", err)
	}
	r.VerifiedAt, _ = entities.ParseTime(verifiedAt)
	return r, nil
}

// ListMonthlyDiscrepancies returns the disclosed vs official rows in month order
func (s *SQLiteStore) ListMonthlyDiscrepancies() ([]entities.MonthlyDiscrepancy, error) {
	rows, err := s.db.Query(`SELECT month, disclosed, official, difference FROM monthly_discrepancies ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query monthly discrepancies: %w", err)
	}
	defer rows.Close()

	result := []entities.MonthlyDiscrepancy{}
	for rows.Next() {
		var m entities.MonthlyDiscrepancy
		if err := rows.Scan(&m.Month, &m.Disclosed, &m.Official, &m.Difference); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return result, nil
}

// ListHouseholdAreas returns the household overview rows
func (s *SQLiteStore) ListHouseholdAreas() ([]entities.HouseholdArea, error) {
	rows, err := s.db.Query(`SELECT id, area, sensors, complaints, status, last_update FROM household_areas ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query household areas: %w", err)
	}
	defer rows.Close()

	result := []entities.HouseholdArea{}
	for rows.Next() {
		var h entities.HouseholdArea
		if err := rows.Scan(&h.ID, &h.Area, &h.Sensors, &h.Complaints, &h.Status, &h.LastUpdate); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return result, nil
}
