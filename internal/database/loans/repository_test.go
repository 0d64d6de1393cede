package loans

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/openshelf/circulation/internal/entities"
)

func setupTestDB(t *testing.T) (*Repository, *gorm.DB, func()) {
	dbPath := "./test_loans_" + t.Name() + ".db"

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&entities.Book{}, &entities.Borrower{}, &entities.Loan{})
	require.NoError(t, err)

	repo := NewRepository(db)

	cleanup := func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
		os.Remove(dbPath)
	}

	return repo, db, cleanup
}

func seedFixtures(t *testing.T, db *gorm.DB) (entities.Book, entities.Borrower) {
	book := entities.Book{
		CatalogKey: "B-1", ISBN: "i-1", Title: "Walden", Author: "Henry David Thoreau",
		TotalQty: 2, AvailableQty: 2, Status: entities.BookStatusAvailable, Active: true,
	}
	require.NoError(t, db.Create(&book).Error)

	borrower := entities.Borrower{
		ExternalID: "M-1001", FirstName: "Ada", LastName: "Lovelace",
		Status: entities.BorrowerStatusActive, Active: true,
	}
	require.NoError(t, db.Create(&borrower).Error)

	return book, borrower
}

func seedLoan(t *testing.T, db *gorm.DB, id string, book entities.Book, borrower entities.Borrower, borrowedAt, dueAt time.Time, state entities.LoanState) {
	loan := entities.Loan{
		ID: id, BookID: book.ID, BorrowerID: borrower.ID, OperatorID: "op-1",
		BorrowedAt: borrowedAt, DueAt: dueAt, State: state,
	}
	if state == entities.LoanStateReturned {
		returned := dueAt
		loan.ReturnedAt = &returned
	}
	require.NoError(t, db.Omit("Book", "Borrower").Create(&loan).Error)
}

func TestRepository_ByID(t *testing.T) {
	repo, db, cleanup := setupTestDB(t)
	defer cleanup()

	book, borrower := seedFixtures(t, db)
	now := time.Now()
	seedLoan(t, db, "loan-1", book, borrower, now, now.AddDate(0, 0, 14), entities.LoanStateActive)

	loan, err := repo.ByID("loan-1")
	require.NoError(t, err)
	assert.Equal(t, "Walden", loan.Book.Title)
	assert.Equal(t, "M-1001", loan.Borrower.ExternalID)

	_, err = repo.ByID("missing")
	assert.ErrorIs(t, err, entities.ErrNotFound)
}

func TestRepository_ActiveLoans(t *testing.T) {
	repo, db, cleanup := setupTestDB(t)
	defer cleanup()

	book, borrower := seedFixtures(t, db)
	now := time.Now()
	seedLoan(t, db, "loan-1", book, borrower, now.AddDate(0, 0, -1), now.AddDate(0, 0, 13), entities.LoanStateActive)
	seedLoan(t, db, "loan-2", book, borrower, now.AddDate(0, 0, -30), now.AddDate(0, 0, -16), entities.LoanStateReturned)

	views, err := repo.ActiveLoans(now)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "loan-1", views[0].LoanID)
	assert.Equal(t, "Active", views[0].DisplayStatus)
	assert.Equal(t, "Walden", views[0].Title)
	assert.Equal(t, "Ada Lovelace", views[0].BorrowerName)
}

func TestRepository_OverdueLoans(t *testing.T) {
	repo, db, cleanup := setupTestDB(t)
	defer cleanup()

	book, borrower := seedFixtures(t, db)
	now := time.Now()
	seedLoan(t, db, "on-time", book, borrower, now.AddDate(0, 0, -1), now.AddDate(0, 0, 13), entities.LoanStateActive)
	seedLoan(t, db, "overdue", book, borrower, now.AddDate(0, 0, -20), now.AddDate(0, 0, -6), entities.LoanStateActive)
	seedLoan(t, db, "closed-late", book, borrower, now.AddDate(0, 0, -40), now.AddDate(0, 0, -26), entities.LoanStateReturned)

	views, err := repo.OverdueLoans(now)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "overdue", views[0].LoanID)
	assert.Equal(t, "Overdue (6 days)", views[0].DisplayStatus)
	assert.Equal(t, 6, views[0].OverdueDays)
}

func TestRepository_OverdueLoans_ClockAlone(t *testing.T) {
	repo, db, cleanup := setupTestDB(t)
	defer cleanup()

	book, borrower := seedFixtures(t, db)
	now := time.Now()
	seedLoan(t, db, "loan-1", book, borrower, now, now.AddDate(0, 0, 14), entities.LoanStateActive)

	// Nothing overdue today; move only the clock and the same row qualifies.
	today, err := repo.OverdueLoans(now)
	require.NoError(t, err)
	assert.Empty(t, today)

	future, err := repo.OverdueLoans(now.AddDate(0, 0, 15))
	require.NoError(t, err)
	require.Len(t, future, 1)
	assert.Equal(t, "Overdue (1 days)", future[0].DisplayStatus)
}

func TestRepository_LoansForBorrower(t *testing.T) {
	repo, db, cleanup := setupTestDB(t)
	defer cleanup()

	book, borrower := seedFixtures(t, db)
	other := entities.Borrower{ExternalID: "M-1002", FirstName: "Nikola", LastName: "Tesla",
		Status: entities.BorrowerStatusActive, Active: true}
	require.NoError(t, db.Create(&other).Error)

	now := time.Now()
	seedLoan(t, db, "loan-1", book, borrower, now.AddDate(0, 0, -30), now.AddDate(0, 0, -16), entities.LoanStateReturned)
	seedLoan(t, db, "loan-2", book, borrower, now, now.AddDate(0, 0, 14), entities.LoanStateActive)
	seedLoan(t, db, "loan-3", book, other, now, now.AddDate(0, 0, 14), entities.LoanStateActive)

	views, err := repo.LoansForBorrower(borrower.ID, now)
	require.NoError(t, err)
	require.Len(t, views, 2)
	// Newest first; history includes closed loans.
	assert.Equal(t, "loan-2", views[0].LoanID)
	assert.Equal(t, "loan-1", views[1].LoanID)
	assert.Equal(t, "Returned", views[1].DisplayStatus)
}

func TestRepository_AllLoans(t *testing.T) {
	repo, db, cleanup := setupTestDB(t)
	defer cleanup()

	book, borrower := seedFixtures(t, db)
	now := time.Now()
	seedLoan(t, db, "loan-1", book, borrower, now.AddDate(0, 0, -2), now.AddDate(0, 0, 12), entities.LoanStateActive)
	seedLoan(t, db, "loan-2", book, borrower, now.AddDate(0, 0, -1), now.AddDate(0, 0, 13), entities.LoanStateActive)

	views, err := repo.AllLoans(now)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "loan-2", views[0].LoanID)
}

func TestRepository_ActiveCounts(t *testing.T) {
	repo, db, cleanup := setupTestDB(t)
	defer cleanup()

	book, borrower := seedFixtures(t, db)
	now := time.Now()
	seedLoan(t, db, "loan-1", book, borrower, now, now.AddDate(0, 0, 14), entities.LoanStateActive)
	seedLoan(t, db, "loan-2", book, borrower, now.AddDate(0, 0, -30), now.AddDate(0, 0, -16), entities.LoanStateReturned)

	forBook, err := repo.ActiveCountForBook(book.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, forBook)

	forBorrower, err := repo.ActiveCountForBorrower(borrower.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, forBorrower)

	history, err := repo.HistoryExistsForBook(book.ID)
	require.NoError(t, err)
	assert.True(t, history)

	none, err := repo.HistoryExistsForBook(999)
	require.NoError(t, err)
	assert.False(t, none)
}
