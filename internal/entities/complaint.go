package entities

import "time"

// Complaint status values
const (
	ComplaintSubmitted    = "submitted"
	ComplaintAcknowledged = "acknowledged"
	ComplaintInProgress   = "in-progress"
	ComplaintResolved     = "resolved"
)

// Complaint is a water quality issue filed by a household user. Complaints
// are owned by the user's email, since user ids change at every login.
type Complaint struct {
	ID          string
	UserID      string
	UserEmail   string
	SensorID    string
	Subject     string
	Description string
	Status      string
	CreatedAt   time.Time
}

// ComplaintCreate holds the fields a user fills in when filing a complaint
type ComplaintCreate struct {
	SensorID    string
	Subject     string
	Description string
}

// Discrepancy report status values
const (
	ReportPending  = "pending"
	ReportVerified = "verified"
)

// DiscrepancyReport is a household report awaiting government verification
type DiscrepancyReport struct {
	ID            int64
	Household     string
	Date          string
	Status        string
	ChlorineLevel string
	TestDate      string
	Notes         string
	VerifiedBy    string
	VerifiedAt    time.Time
}

// Verification holds the lab results an official records when verifying a report
type Verification struct {
	ChlorineLevel string
	TestDate      string
	Notes         string
}

// MonthlyDiscrepancy compares disclosed and official figures for a month
type MonthlyDiscrepancy struct {
	Month      string
	Disclosed  int
	Official   int
	Difference int
}

// HouseholdArea is an aggregate row of the government overview
type HouseholdArea struct {
	ID         int64
	Area       string
	Sensors    int
	Complaints int
	Status     string
	LastUpdate string
}
