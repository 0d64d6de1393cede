// Package catalog provides database operations for book records.
//
// The availability counter is the library's single contention point: every
// lend and return funnels through AdjustAvailability, which checks and
// mutates the counter in one SQL statement so concurrent desk sessions can
// never over-lend a title.
//
// # Usage
//
//	repo := catalog.NewRepository(db)
//	book, err := repo.ByISBN("9780141439518")
package catalog

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/openshelf/circulation/internal/entities"
)

// Repository handles all book database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new catalog repository. It works equally over a
// transaction handle, which is how the lending ledger uses it.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new catalog record. New books start with every copy on
// the shelf unless the caller says otherwise.
func (r *Repository) Create(book *entities.Book) (*entities.Book, error) {
	if book.TotalQty < 0 {
		return nil, fmt.Errorf("book %q: total quantity is negative: %w", book.CatalogKey, entities.ErrInvariantViolation)
	}
	if book.AvailableQty == 0 && book.TotalQty > 0 {
		book.AvailableQty = book.TotalQty
	}
	if book.AvailableQty < 0 || book.AvailableQty > book.TotalQty {
		return nil, fmt.Errorf("book %q: available %d outside [0, %d]: %w",
			book.CatalogKey, book.AvailableQty, book.TotalQty, entities.ErrInvariantViolation)
	}
	if book.Status == "" {
		if book.AvailableQty > 0 {
			book.Status = entities.BookStatusAvailable
		} else {
			book.Status = entities.BookStatusOnLoan
		}
	}
	book.Active = true
	if err := r.db.Create(book).Error; err != nil {
		return nil, err
	}
	return book, nil
}

// ByID retrieves a book by its ID.
func (r *Repository) ByID(id uint) (*entities.Book, error) {
	var book entities.Book
	err := r.db.First(&book, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("book %d: %w", id, entities.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// ByCatalogKey retrieves a book by its catalog key.
func (r *Repository) ByCatalogKey(key string) (*entities.Book, error) {
	var book entities.Book
	err := r.db.Where("catalog_key = ?", key).First(&book).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("book %q: %w", key, entities.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// ByISBN retrieves a book by ISBN.
func (r *Repository) ByISBN(isbn string) (*entities.Book, error) {
	var book entities.Book
	err := r.db.Where("isbn = ?", isbn).First(&book).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("book isbn %q: %w", isbn, entities.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// Search finds books by title, author, or category (case-insensitive partial match).
func (r *Repository) Search(query string) ([]entities.Book, error) {
	var books []entities.Book
	searchPattern := "%" + query + "%"
	err := r.db.
		Where("LOWER(title) LIKE LOWER(?) OR LOWER(author) LIKE LOWER(?) OR LOWER(category) LIKE LOWER(?)",
			searchPattern, searchPattern, searchPattern).
		Order("title ASC").
		Find(&books).Error
	return books, err
}

// List retrieves all active catalog records.
func (r *Repository) List() ([]entities.Book, error) {
	var books []entities.Book
	err := r.db.Where("active = ?", true).Order("title ASC").Find(&books).Error
	return books, err
}

// ListAvailable retrieves active books with at least one copy on the shelf.
func (r *Repository) ListAvailable() ([]entities.Book, error) {
	var books []entities.Book
	err := r.db.Where("active = ? AND available_qty > 0", true).Order("title ASC").Find(&books).Error
	return books, err
}

// Update writes librarian-owned fields. Stock counters and lending-derived
// status belong to AdjustAvailability/Restock and are deliberately omitted.
func (r *Repository) Update(book *entities.Book) error {
	result := r.db.Model(&entities.Book{}).Where("id = ?", book.ID).Updates(map[string]any{
		"catalog_key": book.CatalogKey,
		"isbn":        book.ISBN,
		"title":       book.Title,
		"author":      book.Author,
		"category":    book.Category,
		"location":    book.Location,
		"price":       book.Price,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("book %d: %w", book.ID, entities.ErrNotFound)
	}
	return nil
}

// AdjustAvailability applies available_qty += delta in a single conditional
// UPDATE. The statement both checks [0, total_qty] bounds and mutates the
// counter, so a raced decrement affects zero rows instead of going
// negative. Status flips between Available and OnLoan from the new count;
// Maintenance and Retired are never overwritten by an availability change.
func (r *Repository) AdjustAvailability(bookID uint, delta int) error {
	result := r.db.Model(&entities.Book{}).
		Where("id = ? AND available_qty + ? >= 0 AND available_qty + ? <= total_qty", bookID, delta, delta).
		Updates(map[string]any{
			"available_qty": gorm.Expr("available_qty + ?", delta),
			"status": gorm.Expr(
				"CASE WHEN status IN (?, ?) THEN (CASE WHEN available_qty + ? > 0 THEN ? ELSE ? END) ELSE status END",
				entities.BookStatusAvailable, entities.BookStatusOnLoan,
				delta, entities.BookStatusAvailable, entities.BookStatusOnLoan),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Missing row and out-of-bounds delta both match zero rows;
		// a follow-up read inside the same transaction tells them apart.
		var book entities.Book
		err := r.db.First(&book, bookID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("book %d: %w", bookID, entities.ErrNotFound)
		}
		if err != nil {
			return err
		}
		return fmt.Errorf("book %d: available %d%+d outside [0, %d]: %w",
			bookID, book.AvailableQty, delta, book.TotalQty, entities.ErrInvariantViolation)
	}
	return nil
}

// Restock changes the total stock of a title, moving the shelf count by the
// same delta. Shrinking below the number of copies currently out is rejected.
func (r *Repository) Restock(bookID uint, newTotal int) error {
	if newTotal < 0 {
		return fmt.Errorf("book %d: total %d is negative: %w", bookID, newTotal, entities.ErrInvariantViolation)
	}
	result := r.db.Model(&entities.Book{}).
		Where("id = ? AND available_qty + (? - total_qty) >= 0", bookID, newTotal).
		Updates(map[string]any{
			"total_qty":     newTotal,
			"available_qty": gorm.Expr("available_qty + (? - total_qty)", newTotal),
			"status": gorm.Expr(
				"CASE WHEN status IN (?, ?) THEN (CASE WHEN available_qty + (? - total_qty) > 0 THEN ? ELSE ? END) ELSE status END",
				entities.BookStatusAvailable, entities.BookStatusOnLoan,
				newTotal, entities.BookStatusAvailable, entities.BookStatusOnLoan),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var book entities.Book
		err := r.db.First(&book, bookID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("book %d: %w", bookID, entities.ErrNotFound)
		}
		if err != nil {
			return err
		}
		return fmt.Errorf("book %d: %d copies out, cannot shrink total to %d: %w",
			bookID, book.TotalQty-book.AvailableQty, newTotal, entities.ErrInvariantViolation)
	}
	return nil
}

// Retire soft-deletes a book: the row stays so loan history remains
// resolvable. Fails while any active loan references the book.
func (r *Repository) Retire(bookID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var book entities.Book
		err := tx.First(&book, bookID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("book %d: %w", bookID, entities.ErrNotFound)
		}
		if err != nil {
			return err
		}

		var activeLoans int64
		err = tx.Model(&entities.Loan{}).
			Where("book_id = ? AND state = ?", bookID, entities.LoanStateActive).
			Count(&activeLoans).Error
		if err != nil {
			return err
		}
		if activeLoans > 0 {
			return fmt.Errorf("book %d has %d active loans: %w", bookID, activeLoans, entities.ErrConflict)
		}

		return tx.Model(&entities.Book{}).Where("id = ?", bookID).Updates(map[string]any{
			"status": entities.BookStatusRetired,
			"active": false,
		}).Error
	})
}

// Delete hard-deletes a book. Permitted only when no loan row references
// the title at all; otherwise the caller should Retire instead.
func (r *Repository) Delete(bookID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var loans int64
		err := tx.Model(&entities.Loan{}).Where("book_id = ?", bookID).Count(&loans).Error
		if err != nil {
			return err
		}
		if loans > 0 {
			return fmt.Errorf("book %d has loan history: %w", bookID, entities.ErrConflict)
		}

		result := tx.Delete(&entities.Book{}, bookID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("book %d: %w", bookID, entities.ErrNotFound)
		}
		return nil
	})
}
