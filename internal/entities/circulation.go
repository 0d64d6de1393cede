package entities

import (
	"fmt"
	"time"
)

type BookStatus string

const (
	BookStatusAvailable   BookStatus = "Available"
	BookStatusOnLoan      BookStatus = "OnLoan"
	BookStatusMaintenance BookStatus = "Maintenance"
	BookStatusRetired     BookStatus = "Retired"
)

type BorrowerStatus string

const (
	BorrowerStatusActive   BorrowerStatus = "Active"
	BorrowerStatusInactive BorrowerStatus = "Inactive"
)

type LoanState string

const (
	LoanStateActive   LoanState = "Active"
	LoanStateReturned LoanState = "Returned"
)

// Book is a catalog title. AvailableQty counts physical copies currently on
// the shelf; individual copies are fungible, so there is no per-copy record.
type Book struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	CatalogKey   string     `gorm:"uniqueIndex;size:64" json:"catalog_key"`
	ISBN         string     `gorm:"uniqueIndex;size:20" json:"isbn"`
	Title        string     `gorm:"index;size:512" json:"title"`
	Author       string     `gorm:"index;size:256" json:"author"`
	Category     string     `gorm:"index;size:100" json:"category,omitempty"`
	TotalQty     int        `gorm:"column:total_qty" json:"total_qty"`
	AvailableQty int        `gorm:"column:available_qty" json:"available_qty"`
	Status       BookStatus `gorm:"size:20" json:"status"`
	Location     string     `gorm:"size:100" json:"location,omitempty"`
	Price        float64    `json:"price,omitempty"`
	Active       bool       `json:"active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type Borrower struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	ExternalID string         `gorm:"uniqueIndex;size:64" json:"external_id"`
	FirstName  string         `gorm:"size:100" json:"first_name"`
	LastName   string         `gorm:"size:100" json:"last_name"`
	Department string         `gorm:"size:100" json:"department,omitempty"`
	Status     BorrowerStatus `gorm:"size:20" json:"status"`
	Active     bool           `json:"active"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func (b *Borrower) FullName() string {
	if b.FirstName == "" {
		return b.LastName
	}
	if b.LastName == "" {
		return b.FirstName
	}
	return b.FirstName + " " + b.LastName
}

// Loan records one copy of a book lent to a borrower. Loans are permanent
// audit history: they are never deleted, and their book/borrower references
// stay resolvable after the referenced entity is retired or deactivated.
type Loan struct {
	ID         string     `gorm:"primaryKey;size:36" json:"id"`
	BookID     uint       `gorm:"index;not null" json:"book_id"`
	BorrowerID uint       `gorm:"index;not null" json:"borrower_id"`
	OperatorID string     `gorm:"size:64" json:"operator_id"`
	BorrowedAt time.Time  `gorm:"index" json:"borrowed_at"`
	DueAt      time.Time  `gorm:"index" json:"due_at"`
	ReturnedAt *time.Time `json:"returned_at,omitempty"`
	State      LoanState  `gorm:"index;size:20" json:"state"`
	FineAmount float64    `gorm:"column:fine_amount" json:"fine_amount"`
	Book       Book       `gorm:"foreignKey:BookID" json:"book,omitempty"`
	Borrower   Borrower   `gorm:"foreignKey:BorrowerID" json:"borrower,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// daysPast is the single day-rounding rule shared by fine computation and
// overdue display: whole 24h periods elapsed past due, floored, never negative.
func daysPast(due, now time.Time) int {
	if !now.After(due) {
		return 0
	}
	return int(now.Sub(due) / (24 * time.Hour))
}

// OverdueDays reports how many whole days past due the loan is at the given
// instant. Zero for returned loans and loans still within their period.
func (l *Loan) OverdueDays(now time.Time) int {
	if l.State != LoanStateActive {
		return 0
	}
	return daysPast(l.DueAt, now)
}

// Fine computes the penalty owed if the loan were closed at the given instant.
func (l *Loan) Fine(now time.Time, finePerDay float64) float64 {
	return float64(daysPast(l.DueAt, now)) * finePerDay
}

// DisplayStatus derives the user-facing status from stored state and the
// clock. Overdue is never persisted; it exists only at read time.
func (l *Loan) DisplayStatus(now time.Time) string {
	if l.State == LoanStateReturned {
		return "Returned"
	}
	if days := daysPast(l.DueAt, now); days > 0 {
		return fmt.Sprintf("Overdue (%d days)", days)
	}
	return "Active"
}
