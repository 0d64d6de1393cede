package config

// Default paths and circulation policy values
const (
	// DefaultDatabasePath is the default path for the circulation database
	DefaultDatabasePath = "./circulation.db"

	// DefaultLoanPeriodDays is the lending window applied at Lend time
	DefaultLoanPeriodDays = 14

	// DefaultFinePerDay is the penalty per whole day past due, in currency units
	DefaultFinePerDay = 1.0
)
