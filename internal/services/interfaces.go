package services

import (
	"github.com/openshelf/circulation/internal/database/loans"
	"github.com/openshelf/circulation/internal/entities"
)

// Circulator moves books between the shelf and borrowers. Use this
// interface when a caller only needs to operate the desk.
type Circulator interface {
	Lend(bookID, borrowerID uint, operatorID string) (*entities.Loan, error)
	Return(loanID, operatorID string) (*entities.Loan, error)
}

// LoanViewer provides read-only reporting projections over the ledger.
// Overdue status in the returned views is derived at call time.
type LoanViewer interface {
	ActiveLoans() ([]loans.View, error)
	OverdueLoans() ([]loans.View, error)
	LoansForBorrower(borrowerID uint) ([]loans.View, error)
	LoansForBook(bookID uint) ([]loans.View, error)
	AllLoans() ([]loans.View, error)
}
