// Command generate_demo creates a demo circulation database with a small
// catalog, a borrower roster, and a lending history that exercises the full
// lend/return lifecycle (including an overdue loan with a fine).
// Usage: go run cmd/generate_demo/main.go [-db path/to/demo.db]
package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/openshelf/circulation/internal/config"
	"github.com/openshelf/circulation/internal/database"
	"github.com/openshelf/circulation/internal/database/audit"
	"github.com/openshelf/circulation/internal/database/borrowers"
	"github.com/openshelf/circulation/internal/database/catalog"
	"github.com/openshelf/circulation/internal/entities"
	"github.com/openshelf/circulation/internal/scheduler"
	"github.com/openshelf/circulation/internal/services"
)

const defaultDemoDatabasePath = "./demo/demo.db"

const demoOperator = "demo-librarian"

func main() {
	dbPath := flag.String("db", defaultDemoDatabasePath, "path to the demo database file")
	flag.Parse()

	log.Printf("Generating demo database at %s...", *dbPath)

	// Delete existing demo database to start fresh
	if err := os.Remove(*dbPath); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to remove existing demo database: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(*dbPath), 0o755); err != nil {
		log.Fatalf("Failed to create demo directory: %v", err)
	}

	db, err := database.NewDatabase(*dbPath)
	if err != nil {
		log.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	cfg := config.NewConfig()
	policy := services.Policy{
		LoanPeriodDays: cfg.Circulation.LoanPeriodDays,
		FinePerDay:     cfg.Circulation.FinePerDay,
	}

	books := seedCatalog(db)
	members := seedBorrowers(db)

	// Backdate the clock so one demo loan is already overdue today.
	clock := time.Now().AddDate(0, 0, -20)
	ledger := services.NewLedger(db.DB, audit.NewRepository(db.DB), policy,
		services.WithClock(func() time.Time { return clock }))

	overdueLoan, err := ledger.Lend(books[0].ID, members[0].ID, demoOperator)
	if err != nil {
		log.Fatalf("Failed to create overdue demo loan: %v", err)
	}
	log.Printf("Lent %q to %s, due %s (overdue today)",
		books[0].Title, members[0].FullName(), overdueLoan.DueAt.Format("2006-01-02"))

	// A loan taken and returned late: the fine is computed at return time.
	clock = time.Now().AddDate(0, 0, -30)
	lateLoan, err := ledger.Lend(books[1].ID, members[1].ID, demoOperator)
	if err != nil {
		log.Fatalf("Failed to create late demo loan: %v", err)
	}
	clock = time.Now().AddDate(0, 0, -13)
	returned, err := ledger.Return(lateLoan.ID, demoOperator)
	if err != nil {
		log.Fatalf("Failed to return late demo loan: %v", err)
	}
	log.Printf("Returned %q three days late, fine %.2f", books[1].Title, returned.FineAmount)

	// A current, on-time loan.
	clock = time.Now().AddDate(0, 0, -2)
	if _, err := ledger.Lend(books[2].ID, members[2].ID, demoOperator); err != nil {
		log.Fatalf("Failed to create active demo loan: %v", err)
	}
	log.Printf("Lent %q to %s", books[2].Title, members[2].FullName())

	clock = time.Now()
	overdue, err := ledger.OverdueLoans()
	if err != nil {
		log.Fatalf("Failed to list overdue loans: %v", err)
	}
	for _, v := range overdue {
		log.Printf("Overdue: %q held by %s — %s", v.Title, v.BorrowerName, v.DisplayStatus)
	}

	auditor := scheduler.NewConsistencyAuditor(db.DB, cfg.ConsistencyAudit.Schedule)
	drifts, err := auditor.RunOnce()
	if err != nil {
		log.Fatalf("Failed to run consistency audit: %v", err)
	}
	if len(drifts) == 0 {
		log.Println("Consistency audit: catalog availability matches the ledger")
	}
	for _, d := range drifts {
		log.Printf("Consistency audit: book %d available=%d, expected %d", d.BookID, d.AvailableQty, d.Expected())
	}

	log.Println("Demo database generated successfully!")
}

func seedCatalog(db *database.Database) []entities.Book {
	repo := catalog.NewRepository(db.DB)

	seed := []entities.Book{
		{CatalogKey: "PD-001", ISBN: "9780141439518", Title: "Pride and Prejudice", Author: "Jane Austen", Category: "Fiction", TotalQty: 2, Location: "A-12", Price: 9.99},
		{CatalogKey: "PD-002", ISBN: "9780486280615", Title: "Walden", Author: "Henry David Thoreau", Category: "Philosophy", TotalQty: 1, Location: "B-03", Price: 7.50},
		{CatalogKey: "PD-003", ISBN: "9780486415871", Title: "The Origin of Species", Author: "Charles Darwin", Category: "Science", TotalQty: 3, Location: "C-07", Price: 12.00},
		{CatalogKey: "PD-004", ISBN: "9780140449136", Title: "Crime and Punishment", Author: "Fyodor Dostoevsky", Category: "Fiction", TotalQty: 2, Location: "A-15", Price: 11.25},
	}

	books := make([]entities.Book, 0, len(seed))
	for i := range seed {
		book, err := repo.Create(&seed[i])
		if err != nil {
			log.Fatalf("Failed to seed book %s: %v", seed[i].Title, err)
		}
		log.Printf("Cataloged: %s by %s (%d copies)", book.Title, book.Author, book.TotalQty)
		books = append(books, *book)
	}
	return books
}

func seedBorrowers(db *database.Database) []entities.Borrower {
	repo := borrowers.NewRepository(db.DB)

	seed := []entities.Borrower{
		{ExternalID: "M-1001", FirstName: "Ada", LastName: "Lovelace", Department: "Mathematics"},
		{ExternalID: "M-1002", FirstName: "Nikola", LastName: "Tesla", Department: "Engineering"},
		{ExternalID: "M-1003", FirstName: "Marie", LastName: "Curie", Department: "Chemistry"},
	}

	members := make([]entities.Borrower, 0, len(seed))
	for i := range seed {
		borrower, err := repo.Create(&seed[i])
		if err != nil {
			log.Fatalf("Failed to seed borrower %s: %v", seed[i].ExternalID, err)
		}
		log.Printf("Registered: %s (%s)", borrower.FullName(), borrower.ExternalID)
		members = append(members, *borrower)
	}
	return members
}
