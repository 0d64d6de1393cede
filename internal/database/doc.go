// Package database provides the data access layer for the circulation core.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup, migrations
//	├── catalog/         # Book records, availability adjustments, retirement
//	├── borrowers/       # Borrower records and eligibility
//	├── loans/           # Loan rows and reporting views
//	└── audit/           # Circulation event log
//
// # Using Sub-packages
//
// Each sub-package provides a Repository type with domain-specific operations:
//
//	// Initialize database connection
//	db, err := database.NewDatabase("./circulation.db")
//
//	// Create domain-specific repositories
//	catalogRepo := catalog.NewRepository(db.DB)
//	borrowerRepo := borrowers.NewRepository(db.DB)
//	loanRepo := loans.NewRepository(db.DB)
//
//	// Use repositories
//	book, err := catalogRepo.ByISBN("9780141439518")
//	views, err := loanRepo.OverdueLoans(time.Now())
//
// # Transactions
//
// Repositories are constructed over a *gorm.DB and work equally over a
// transaction handle: services.Ledger opens db.Transaction and builds
// tx-scoped repositories inside it, so a lend's availability decrement and
// loan insert commit or roll back together.
//
// # Ownership
//
// The loans sub-package (driven by services.Ledger) is the only writer of a
// book's available_qty and its lending-derived status; catalog owns every
// other book field and borrowers owns all borrower fields.
package database
