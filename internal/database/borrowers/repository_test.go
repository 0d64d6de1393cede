package borrowers

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
	dbPath := "./test_borrowers_" + t.Name() + ".db"

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&entities.Borrower{}, &entities.Loan{})
	require.NoError(t, err)

	repo := NewRepository(db)

	cleanup := func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
		os.Remove(dbPath)
	}

	return repo, db, cleanup
}

func TestRepository_Create(t *testing.T) {
	repo, _, cleanup := setupTestDB(t)
	defer cleanup()

	borrower, err := repo.Create(&entities.Borrower{
		ExternalID: "M-1001",
		FirstName:  "Ada",
		LastName:   "Lovelace",
		Department: "Mathematics",
	})

	require.NoError(t, err)
	assert.NotZero(t, borrower.ID)
	assert.Equal(t, entities.BorrowerStatusActive, borrower.Status)
	assert.True(t, borrower.Active)
}

func TestRepository_Create_RequiresMemberKey(t *testing.T) {
	repo, _, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := repo.Create(&entities.Borrower{FirstName: "Ada"})

	assert.ErrorIs(t, err, entities.ErrInvariantViolation)
}

func TestRepository_ByExternalID(t *testing.T) {
	repo, _, cleanup := setupTestDB(t)
	defer cleanup()

	created, err := repo.Create(&entities.Borrower{ExternalID: "M-1001", FirstName: "Ada", LastName: "Lovelace"})
	require.NoError(t, err)

	found, err := repo.ByExternalID("M-1001")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = repo.ByExternalID("M-9999")
	assert.ErrorIs(t, err, entities.ErrNotFound)
}

func TestRepository_Search(t *testing.T) {
	repo, _, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := repo.Create(&entities.Borrower{ExternalID: "M-1001", FirstName: "Ada", LastName: "Lovelace"})
	require.NoError(t, err)
	_, err = repo.Create(&entities.Borrower{ExternalID: "M-1002", FirstName: "Nikola", LastName: "Tesla"})
	require.NoError(t, err)

	byName, err := repo.Search("lovelace")
	require.NoError(t, err)
	assert.Len(t, byName, 1)

	byKey, err := repo.Search("m-100")
	require.NoError(t, err)
	assert.Len(t, byKey, 2)
}

func TestRepository_Deactivate(t *testing.T) {
	repo, _, cleanup := setupTestDB(t)
	defer cleanup()

	created, err := repo.Create(&entities.Borrower{ExternalID: "M-1001", FirstName: "Ada", LastName: "Lovelace"})
	require.NoError(t, err)

	require.NoError(t, repo.Deactivate(created.ID))

	after, err := repo.ByID(created.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.BorrowerStatusInactive, after.Status)
	assert.False(t, after.Active)

	// The row stays: loan history must remain resolvable.
	list, err := repo.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRepository_Deactivate_BlockedByActiveLoan(t *testing.T) {
	repo, db, cleanup := setupTestDB(t)
	defer cleanup()

	created, err := repo.Create(&entities.Borrower{ExternalID: "M-1001", FirstName: "Ada", LastName: "Lovelace"})
	require.NoError(t, err)

	require.NoError(t, db.Omit("Book", "Borrower").Create(&entities.Loan{
		ID: "loan-1", BookID: 1, BorrowerID: created.ID,
		BorrowedAt: time.Now(), DueAt: time.Now().AddDate(0, 0, 14),
		State: entities.LoanStateActive,
	}).Error)

	err = repo.Deactivate(created.ID)
	assert.ErrorIs(t, err, entities.ErrConflict)

	// Returning the loan unblocks deactivation.
	require.NoError(t, db.Model(&entities.Loan{}).Where("id = ?", "loan-1").
		Update("state", entities.LoanStateReturned).Error)
	assert.NoError(t, repo.Deactivate(created.ID))
}

func TestRepository_Deactivate_NotFound(t *testing.T) {
	repo, _, cleanup := setupTestDB(t)
	defer cleanup()

	err := repo.Deactivate(999)

	assert.ErrorIs(t, err, entities.ErrNotFound)
}

func TestRepository_Reactivate(t *testing.T) {
	repo, _, cleanup := setupTestDB(t)
	defer cleanup()

	created, err := repo.Create(&entities.Borrower{ExternalID: "M-1001", FirstName: "Ada", LastName: "Lovelace"})
	require.NoError(t, err)
	require.NoError(t, repo.Deactivate(created.ID))

	require.NoError(t, repo.Reactivate(created.ID))

	after, err := repo.ByID(created.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.BorrowerStatusActive, after.Status)
	assert.True(t, after.Active)
}
