package database

import "github.com/rshrestha/imagetools/internal/model"

// Database defines the persistence interface for all domain objects.
type Database interface {
	// Credits
	EnsureCreditAccount(userID string, initialBalance int) (*model.CreditAccount, error)
	GetCreditAccount(userID string) (*model.CreditAccount, error)

	// DeductCredits atomically checks and decrements the balance and,
	// on success, appends the usage transaction. It returns false when
	// the balance is insufficient; the balance never goes negative.
	DeductCredits(userID string, amount int, tool, description string) (bool, error)

	// AddCredits raises the balance and total_purchased and appends a
	// positive transaction.
	AddCredits(userID string, amount int, txType, description string) error

	ListTransactions(userID string, limit int) ([]*model.CreditTransaction, error)

	// Roles
	HasRole(userID, role string) (bool, error)
	GrantRole(userID, role string) error

	// Processing history
	InsertHistory(rec *model.ProcessingRecord) error

	// ListHistory returns records newest-first. An empty userID selects
	// only anonymous records, never a merged feed.
	ListHistory(userID string, limit int) ([]*model.ProcessingRecord, error)

	// Auth tokens
	UserFromToken(token string) (*model.User, error)
	UpsertToken(token string, user *model.User) error

	Close() error
}
