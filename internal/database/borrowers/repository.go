// Package borrowers provides database operations for borrower records and
// eligibility.
//
// # Usage
//
//	repo := borrowers.NewRepository(db)
//	borrower, err := repo.ByExternalID("M-1042")
package borrowers

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/openshelf/circulation/internal/entities"
)

// Repository handles all borrower database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new borrowers repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create registers a new borrower. New borrowers are eligible immediately.
func (r *Repository) Create(borrower *entities.Borrower) (*entities.Borrower, error) {
	if borrower.ExternalID == "" {
		return nil, fmt.Errorf("borrower %q: member key is required: %w", borrower.FullName(), entities.ErrInvariantViolation)
	}
	borrower.Status = entities.BorrowerStatusActive
	borrower.Active = true
	if err := r.db.Create(borrower).Error; err != nil {
		return nil, err
	}
	return borrower, nil
}

// ByID retrieves a borrower by ID.
func (r *Repository) ByID(id uint) (*entities.Borrower, error) {
	var borrower entities.Borrower
	err := r.db.First(&borrower, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("borrower %d: %w", id, entities.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &borrower, nil
}

// ByExternalID retrieves a borrower by their member key.
func (r *Repository) ByExternalID(externalID string) (*entities.Borrower, error) {
	var borrower entities.Borrower
	err := r.db.Where("external_id = ?", externalID).First(&borrower).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("borrower %q: %w", externalID, entities.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &borrower, nil
}

// Search finds borrowers by name or member key (case-insensitive partial match).
func (r *Repository) Search(query string) ([]entities.Borrower, error) {
	var found []entities.Borrower
	searchPattern := "%" + query + "%"
	err := r.db.
		Where("LOWER(first_name) LIKE LOWER(?) OR LOWER(last_name) LIKE LOWER(?) OR LOWER(external_id) LIKE LOWER(?)",
			searchPattern, searchPattern, searchPattern).
		Order("last_name ASC, first_name ASC").
		Find(&found).Error
	return found, err
}

// List retrieves all active borrowers.
func (r *Repository) List() ([]entities.Borrower, error) {
	var found []entities.Borrower
	err := r.db.Where("active = ?", true).Order("last_name ASC, first_name ASC").Find(&found).Error
	return found, err
}

// Update writes borrower profile fields. Eligibility transitions go through
// Deactivate/Reactivate.
func (r *Repository) Update(borrower *entities.Borrower) error {
	result := r.db.Model(&entities.Borrower{}).Where("id = ?", borrower.ID).Updates(map[string]any{
		"external_id": borrower.ExternalID,
		"first_name":  borrower.FirstName,
		"last_name":   borrower.LastName,
		"department":  borrower.Department,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("borrower %d: %w", borrower.ID, entities.ErrNotFound)
	}
	return nil
}

// Deactivate soft-deletes a borrower: the row stays so loan history remains
// resolvable. Fails while the borrower has any active loan.
func (r *Repository) Deactivate(borrowerID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var borrower entities.Borrower
		err := tx.First(&borrower, borrowerID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("borrower %d: %w", borrowerID, entities.ErrNotFound)
		}
		if err != nil {
			return err
		}

		var activeLoans int64
		err = tx.Model(&entities.Loan{}).
			Where("borrower_id = ? AND state = ?", borrowerID, entities.LoanStateActive).
			Count(&activeLoans).Error
		if err != nil {
			return err
		}
		if activeLoans > 0 {
			return fmt.Errorf("borrower %d has %d active loans: %w", borrowerID, activeLoans, entities.ErrConflict)
		}

		return tx.Model(&entities.Borrower{}).Where("id = ?", borrowerID).Updates(map[string]any{
			"status": entities.BorrowerStatusInactive,
			"active": false,
		}).Error
	})
}

// Reactivate restores a deactivated borrower's eligibility.
func (r *Repository) Reactivate(borrowerID uint) error {
	result := r.db.Model(&entities.Borrower{}).Where("id = ?", borrowerID).Updates(map[string]any{
		"status": entities.BorrowerStatusActive,
		"active": true,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("borrower %d: %w", borrowerID, entities.ErrNotFound)
	}
	return nil
}
