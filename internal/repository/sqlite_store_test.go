package repository

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/abelzeko/aquaguard/internal/entities"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "nested", "test-aquaguard.db")
	store, err := NewSQLiteStore(dbPath, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to initialize store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// TestSeedData checks the government overview rows exist after first open
func TestSeedData(t *testing.T) {
	store := newTestStore(t)

	reports, err := store.ListReports()
	if err != nil {
		t.Fatalf("Failed to list reports: %v", err)
	}
	if len(reports) != 3 {
		t.Fatalf("Expected 3 seeded reports, got %d", len(reports))
	}
	if reports[0].ID != 101 || reports[0].Household != "Downtown - Block A" {
		t.Errorf("Expected newest report 101 first, got %+v", reports[0])
	}

	months, err := store.ListMonthlyDiscrepancies()
	if err != nil {
		t.Fatalf("Failed to list monthly rows: %v", err)
	}
	if len(months) != 5 || months[0].Month != "Jan" || months[4].Difference != -2 {
		t.Errorf("Unexpected monthly rows: %+v", months)
	}

	areas, err := store.ListHouseholdAreas()
	if err != nil {
		t.Fatalf("Failed to list areas: %v", err)
	}
	if len(areas) != 4 || areas[3].Area != "Industrial" || areas[3].Sensors != 15 {
		t.Errorf("Unexpected household areas: %+v", areas)
	}
}

// TestSeedRunsOnce reopens the same database and expects no duplicate rows
func TestSeedRunsOnce(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reopen.db")
	for i := 0; i < 2; i++ {
		store, err := NewSQLiteStore(dbPath, nil)
		if err != nil {
			t.Fatalf("Open %d failed: %v", i, err)
		}
		reports, err := store.ListReports()
		store.Close()
		if err != nil {
			t.Fatalf("Failed to list reports: %v", err)
		}
		if len(reports) != 3 {
			t.Fatalf("Open %d: expected 3 reports, got %d", i, len(reports))
		}
	}
}

func TestComplaintsAreScopedByEmail(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	complaints := []entities.Complaint{
		{ID: "c1", UserID: "u1", UserEmail: "a@b.com", SensorID: "s1", Subject: "Discolored water", Description: "brown", Status: entities.ComplaintSubmitted, CreatedAt: now.Add(-time.Hour)},
		{ID: "c2", UserID: "u2", UserEmail: "a@b.com", SensorID: "s2", Subject: "Strange odor", Description: "smell", Status: entities.ComplaintSubmitted, CreatedAt: now},
		{ID: "c3", UserID: "u3", UserEmail: "other@b.com", SensorID: "s1", Subject: "High TDS levels", Description: "salty", Status: entities.ComplaintSubmitted, CreatedAt: now},
	}
	for _, c := range complaints {
		if err := store.SaveComplaint(c); err != nil {
			t.Fatalf("Failed to save complaint %s: %v", c.ID, err)
		}
	}

	mine, err := store.ListComplaints("a@b.com")
	if err != nil {
		t.Fatalf("Failed to list complaints: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("Expected 2 complaints, got %d", len(mine))
	}
	if mine[0].ID != "c2" {
		t.Errorf("Expected newest complaint first, got %s", mine[0].ID)
	}
	if mine[0].CreatedAt.IsZero() {
		t.Error("CreatedAt was not parsed")
	}

	all, err := store.ListAllComplaints()
	if err != nil {
		t.Fatalf("Failed to list all complaints: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Expected 3 complaints, got %d", len(all))
	}

	none, err := store.ListComplaints("nobody@b.com")
	if err != nil {
		t.Fatalf("Failed to list complaints: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("Expected empty non-nil slice, got %#v", none)
	}
}

func TestVerifyReport(t *testing.T) {
	store := newTestStore(t)
	at := time.Date(2026, 2, 21, 10, 0, 0, 0, time.UTC)

	err := store.VerifyReport(101, entities.Verification{ChlorineLevel: "0.4", TestDate: "2026-02-21", Notes: "within limits"}, "gov@city.org", at)
	if err != nil {
		t.Fatalf("Failed to verify report: %v", err)
	}

	report, err := store.GetReport(101)
	if err != nil {
		t.Fatalf("Failed to get report: %v", err)
	}
	if report.Status != entities.ReportVerified || report.ChlorineLevel != "0.4" || report.VerifiedBy != "gov@city.org" {
		t.Errorf("Unexpected report after verification: %+v", report)
	}
	if !report.VerifiedAt.Equal(at) {
		t.Errorf("Expected verified_at %v, got %v", at, report.VerifiedAt)
	}

	// verified reports stay verified
	err = store.VerifyReport(101, entities.Verification{ChlorineLevel: "9"}, "someone@else.org", at)
	if !errors.Is(err, ErrAlreadyVerified) {
		t.Errorf("Expected ErrAlreadyVerified, got %v", err)
	}

	err = store.VerifyReport(999, entities.Verification{}, "gov@city.org", at)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
