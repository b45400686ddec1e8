package repository

import "github.com/abelzeko/aquaguard/internal/entities"

// Initial rows of the government overview
var (
	seedReports = []entities.DiscrepancyReport{
		{ID: 101, Household: "Downtown - Block A", Date: "2026-02-20", Status: entities.ReportPending},
		{ID: 102, Household: "Suburban - Zone B", Date: "2026-02-19", Status: entities.ReportVerified},
		{ID: 103, Household: "Industrial - Sector C", Date: "2026-02-18", Status: entities.ReportPending},
	}

	seedMonthly = []entities.MonthlyDiscrepancy{
		{Month: "Jan", Disclosed: 45, Official: 42, Difference: 3},
		{Month: "Feb", Disclosed: 52, Official: 50, Difference: 2},
		{Month: "Mar", Disclosed: 48, Official: 48, Difference: 0},
		{Month: "Apr", Disclosed: 61, Official: 58, Difference: 3},
		{Month: "May", Disclosed: 55, Official: 57, Difference: -2},
	}

	seedAreas = []entities.HouseholdArea{
		{ID: 1, Area: "Downtown", Sensors: 12, Complaints: 2, Status: "active", LastUpdate: "2 mins ago"},
		{ID: 2, Area: "Suburban", Sensors: 8, Complaints: 0, Status: "active", LastUpdate: "5 mins ago"},
		{ID: 3, Area: "Rural", Sensors: 5, Complaints: 1, Status: "inactive", LastUpdate: "1 hour ago"},
		{ID: 4, Area: "Industrial", Sensors: 15, Complaints: 3, Status: "active", LastUpdate: "1 min ago"},
	}
)
