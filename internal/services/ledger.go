// Package services implements the lending ledger: the transactional state
// machine that moves books between "available" and "on loan".
//
// Every mutating operation runs inside a single database transaction, so an
// availability change and its loan record commit or roll back together. The
// ledger never retries on storage failure; an ambiguous retry could lend
// the same copy twice, so retry policy belongs to the caller.
package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openshelf/circulation/internal/database/audit"
	"github.com/openshelf/circulation/internal/database/borrowers"
	"github.com/openshelf/circulation/internal/database/catalog"
	"github.com/openshelf/circulation/internal/database/loans"
	"github.com/openshelf/circulation/internal/entities"
)

// Policy is the lending policy applied when loans are created and closed.
type Policy struct {
	LoanPeriodDays int
	FinePerDay     float64
}

// DefaultPolicy returns the stock policy: two weeks per loan, one currency
// unit per overdue day.
func DefaultPolicy() Policy {
	return Policy{LoanPeriodDays: 14, FinePerDay: 1.0}
}

// Ledger orchestrates lends and returns against the shared store. It is the
// only writer of a book's available_qty and lending-derived status.
type Ledger struct {
	db     *gorm.DB
	events *audit.Repository
	policy Policy
	now    func() time.Time
}

var (
	_ Circulator = (*Ledger)(nil)
	_ LoanViewer = (*Ledger)(nil)
)

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock injects the time source. The ledger never reads the wall clock
// directly in business logic, which keeps due dates and fines testable.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// NewLedger creates a lending ledger over the given database handle.
// events may be nil to disable the operator trail.
func NewLedger(db *gorm.DB, events *audit.Repository, policy Policy, opts ...Option) *Ledger {
	l := &Ledger{
		db:     db,
		events: events,
		policy: policy,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Lend creates an active loan for one copy of a book, decrementing the
// title's shelf count in the same transaction. Exactly one of two
// concurrent lends on a book's last copy succeeds; the other observes
// ErrOutOfStock and no loan is created.
func (s *Ledger) Lend(bookID, borrowerID uint, operatorID string) (*entities.Loan, error) {
	now := s.now()
	var loan *entities.Loan

	err := s.db.Transaction(func(tx *gorm.DB) error {
		borrower, err := borrowers.NewRepository(tx).ByID(borrowerID)
		if err != nil {
			return err
		}
		if !borrower.Active || borrower.Status != entities.BorrowerStatusActive {
			return fmt.Errorf("borrower %q: %w", borrower.ExternalID, entities.ErrNotEligible)
		}

		cat := catalog.NewRepository(tx)
		book, err := cat.ByID(bookID)
		if err != nil {
			return err
		}
		if !book.Active {
			return fmt.Errorf("book %q is retired: %w", book.CatalogKey, entities.ErrOutOfStock)
		}

		// The decrement is the availability check: the conditional update
		// matches zero rows when the count has been raced to zero.
		if err := cat.AdjustAvailability(bookID, -1); err != nil {
			if errors.Is(err, entities.ErrInvariantViolation) {
				return fmt.Errorf("book %q: %w", book.CatalogKey, entities.ErrOutOfStock)
			}
			return err
		}

		loan = &entities.Loan{
			ID:         uuid.NewString(),
			BookID:     bookID,
			BorrowerID: borrowerID,
			OperatorID: operatorID,
			BorrowedAt: now,
			DueAt:      now.AddDate(0, 0, s.policy.LoanPeriodDays),
			State:      entities.LoanStateActive,
			FineAmount: 0,
		}
		return tx.Omit("Book", "Borrower").Create(loan).Error
	})
	if err != nil {
		return nil, classify("lend", err)
	}

	s.logEvent(entities.ActionLend, operatorID, "loan", loan.ID,
		fmt.Sprintf("book %d lent to borrower %d, due %s", bookID, borrowerID, loan.DueAt.Format("2006-01-02")))
	return loan, nil
}

// Return closes an active loan, computes the fine from days past due, and
// restores the copy to the shelf in the same transaction. A second return
// of the same loan observes ErrAlreadyReturned.
func (s *Ledger) Return(loanID, operatorID string) (*entities.Loan, error) {
	now := s.now()
	var loan *entities.Loan

	err := s.db.Transaction(func(tx *gorm.DB) error {
		current, err := loans.NewRepository(tx).ByID(loanID)
		if err != nil {
			return err
		}

		fine := current.Fine(now, s.policy.FinePerDay)

		// Guard the state transition on the loan row itself: two
		// concurrent returns race on this update, and the loser matches
		// zero rows.
		result := tx.Model(&entities.Loan{}).
			Where("id = ? AND state = ?", loanID, entities.LoanStateActive).
			Updates(map[string]any{
				"state":       entities.LoanStateReturned,
				"returned_at": now,
				"fine_amount": fine,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("loan %q: %w", loanID, entities.ErrAlreadyReturned)
		}

		if err := catalog.NewRepository(tx).AdjustAvailability(current.BookID, +1); err != nil {
			return err
		}

		current.State = entities.LoanStateReturned
		current.ReturnedAt = &now
		current.FineAmount = fine
		loan = current
		return nil
	})
	if err != nil {
		return nil, classify("return", err)
	}

	s.logEvent(entities.ActionReturn, operatorID, "loan", loan.ID,
		fmt.Sprintf("book %d returned by borrower %d, fine %.2f", loan.BookID, loan.BorrowerID, loan.FineAmount))
	return loan, nil
}

// Retire soft-deletes a catalog record with an operator trail.
func (s *Ledger) Retire(bookID uint, operatorID string) error {
	if err := catalog.NewRepository(s.db).Retire(bookID); err != nil {
		return classify("retire", err)
	}
	s.logEvent(entities.ActionRetire, operatorID, "book", fmt.Sprint(bookID), "book retired")
	return nil
}

// Deactivate soft-deletes a borrower with an operator trail.
func (s *Ledger) Deactivate(borrowerID uint, operatorID string) error {
	if err := borrowers.NewRepository(s.db).Deactivate(borrowerID); err != nil {
		return classify("deactivate", err)
	}
	s.logEvent(entities.ActionDeactivate, operatorID, "borrower", fmt.Sprint(borrowerID), "borrower deactivated")
	return nil
}

// ActiveLoans returns all open loans.
func (s *Ledger) ActiveLoans() ([]loans.View, error) {
	return loans.NewRepository(s.db).ActiveLoans(s.now())
}

// OverdueLoans returns open loans past due at this instant.
func (s *Ledger) OverdueLoans() ([]loans.View, error) {
	return loans.NewRepository(s.db).OverdueLoans(s.now())
}

// LoansForBorrower returns a borrower's lending history.
func (s *Ledger) LoansForBorrower(borrowerID uint) ([]loans.View, error) {
	return loans.NewRepository(s.db).LoansForBorrower(borrowerID, s.now())
}

// LoansForBook returns a title's lending history.
func (s *Ledger) LoansForBook(bookID uint) ([]loans.View, error) {
	return loans.NewRepository(s.db).LoansForBook(bookID, s.now())
}

// AllLoans returns the complete ledger.
func (s *Ledger) AllLoans() ([]loans.View, error) {
	return loans.NewRepository(s.db).AllLoans(s.now())
}

// logEvent records the operator trail. Best effort: a failed audit write is
// logged but never fails the operation it describes.
func (s *Ledger) logEvent(action entities.CirculationAction, operatorID, entityType, entityID, description string) {
	if s.events == nil {
		return
	}
	err := s.events.LogEvent(&entities.CirculationEvent{
		Action:      action,
		OperatorID:  operatorID,
		EntityType:  entityType,
		EntityID:    entityID,
		Description: description,
		Status:      entities.EventStatusSuccess,
	})
	if err != nil {
		log.Printf("Failed to record %s event for %s %s: %v", action, entityType, entityID, err)
	}
}

// domainErrs are the expected, caller-handled failures. Anything else that
// escapes a transaction is infrastructure trouble and wraps ErrStorage.
var domainErrs = []error{
	entities.ErrNotFound,
	entities.ErrNotEligible,
	entities.ErrOutOfStock,
	entities.ErrAlreadyReturned,
	entities.ErrConflict,
	entities.ErrInvariantViolation,
}

func classify(op string, err error) error {
	for _, domain := range domainErrs {
		if errors.Is(err, domain) {
			return err
		}
	}
	return fmt.Errorf("%s: %w: %v", op, entities.ErrStorage, err)
}
