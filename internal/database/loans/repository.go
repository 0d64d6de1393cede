// Package loans provides database operations for loan records and the
// read-only reporting views built over them.
//
// Loan rows are created and finalized by services.Ledger; this package owns
// row access and the denormalized projections used for display. Overdue is
// derived from due_at and the caller's clock on every read, never stored.
package loans

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/openshelf/circulation/internal/entities"
)

// View is a denormalized loan row for display: loan fields joined with the
// book and borrower identity they reference, plus the clock-derived status.
type View struct {
	LoanID        string             `json:"loan_id"`
	BookID        uint               `json:"book_id"`
	CatalogKey    string             `json:"catalog_key"`
	ISBN          string             `json:"isbn"`
	Title         string             `json:"title"`
	Author        string             `json:"author"`
	BorrowerID    uint               `json:"borrower_id"`
	BorrowerKey   string             `json:"borrower_key"`
	BorrowerName  string             `json:"borrower_name"`
	OperatorID    string             `json:"operator_id"`
	BorrowedAt    time.Time          `json:"borrowed_at"`
	DueAt         time.Time          `json:"due_at"`
	ReturnedAt    *time.Time         `json:"returned_at,omitempty"`
	State         entities.LoanState `json:"state"`
	FineAmount    float64            `json:"fine_amount"`
	DisplayStatus string             `json:"display_status"`
	OverdueDays   int                `json:"overdue_days"`
}

// Repository handles loan row access and reporting queries.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new loans repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ByID retrieves a loan with its book and borrower.
func (r *Repository) ByID(id string) (*entities.Loan, error) {
	var loan entities.Loan
	err := r.db.Preload("Book").Preload("Borrower").Where("id = ?", id).First(&loan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("loan %q: %w", id, entities.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

// ActiveCountForBook counts open loans on a title. The availability
// invariant ties this to total_qty - available_qty after every commit.
func (r *Repository) ActiveCountForBook(bookID uint) (int64, error) {
	var count int64
	err := r.db.Model(&entities.Loan{}).
		Where("book_id = ? AND state = ?", bookID, entities.LoanStateActive).
		Count(&count).Error
	return count, err
}

// ActiveCountForBorrower counts open loans held by a borrower.
func (r *Repository) ActiveCountForBorrower(borrowerID uint) (int64, error) {
	var count int64
	err := r.db.Model(&entities.Loan{}).
		Where("borrower_id = ? AND state = ?", borrowerID, entities.LoanStateActive).
		Count(&count).Error
	return count, err
}

// HistoryExistsForBook reports whether any loan row, open or closed,
// references the book.
func (r *Repository) HistoryExistsForBook(bookID uint) (bool, error) {
	var count int64
	err := r.db.Model(&entities.Loan{}).Where("book_id = ?", bookID).Count(&count).Error
	return count > 0, err
}

// ActiveLoans returns all open loans, newest first.
func (r *Repository) ActiveLoans(now time.Time) ([]View, error) {
	return r.views(now, r.scope().Where("loans.state = ?", entities.LoanStateActive))
}

// OverdueLoans returns open loans past their due date. The filter runs
// server-side so the result is a consistent snapshot at the given instant.
func (r *Repository) OverdueLoans(now time.Time) ([]View, error) {
	return r.views(now, r.scope().
		Where("loans.state = ? AND loans.due_at < ?", entities.LoanStateActive, now))
}

// LoansForBorrower returns a borrower's full lending history, open and closed.
func (r *Repository) LoansForBorrower(borrowerID uint, now time.Time) ([]View, error) {
	return r.views(now, r.scope().Where("loans.borrower_id = ?", borrowerID))
}

// LoansForBook returns a title's full lending history.
func (r *Repository) LoansForBook(bookID uint, now time.Time) ([]View, error) {
	return r.views(now, r.scope().Where("loans.book_id = ?", bookID))
}

// AllLoans returns the complete ledger, newest first.
func (r *Repository) AllLoans(now time.Time) ([]View, error) {
	return r.views(now, r.scope())
}

func (r *Repository) scope() *gorm.DB {
	return r.db.Model(&entities.Loan{}).Preload("Book").Preload("Borrower")
}

func (r *Repository) views(now time.Time, query *gorm.DB) ([]View, error) {
	var rows []entities.Loan
	if err := query.Order("loans.borrowed_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	views := make([]View, 0, len(rows))
	for i := range rows {
		views = append(views, toView(&rows[i], now))
	}
	return views, nil
}

func toView(loan *entities.Loan, now time.Time) View {
	return View{
		LoanID:        loan.ID,
		BookID:        loan.BookID,
		CatalogKey:    loan.Book.CatalogKey,
		ISBN:          loan.Book.ISBN,
		Title:         loan.Book.Title,
		Author:        loan.Book.Author,
		BorrowerID:    loan.BorrowerID,
		BorrowerKey:   loan.Borrower.ExternalID,
		BorrowerName:  loan.Borrower.FullName(),
		OperatorID:    loan.OperatorID,
		BorrowedAt:    loan.BorrowedAt,
		DueAt:         loan.DueAt,
		ReturnedAt:    loan.ReturnedAt,
		State:         loan.State,
		FineAmount:    loan.FineAmount,
		DisplayStatus: loan.DisplayStatus(now),
		OverdueDays:   loan.OverdueDays(now),
	}
}
