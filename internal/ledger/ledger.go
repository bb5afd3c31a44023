// Package ledger implements the credit ledger: balance lookup with lazy
// account creation, atomic deduction, top-ups and transaction listing.
package ledger

import (
	"errors"
	"fmt"

	"github.com/rshrestha/imagetools/internal/database"
	"github.com/rshrestha/imagetools/internal/model"
)

var (
	// ErrNotAuthenticated means the operation needs a user identity.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrInsufficientCredits means the balance does not cover the
	// requested deduction.
	ErrInsufficientCredits = errors.New("insufficient credits")
)

// DefaultListLimit bounds ListTransactions when the caller passes 0.
const DefaultListLimit = 50

// Service is the credit ledger client. Balance is mutated exclusively
// through Deduct and Grant; the check-and-decrement runs as a single
// conditional update on the database side.
type Service struct {
	db             database.Database
	initialBalance int
}

// New creates a ledger service. New accounts start at initialBalance.
func New(db database.Database, initialBalance int) *Service {
	return &Service{db: db, initialBalance: initialBalance}
}

// Balance returns the account for userID, creating it lazily on first
// access. Admin identities report model.UnlimitedBalance.
func (s *Service) Balance(userID string) (*model.CreditAccount, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}

	isAdmin, err := s.db.HasRole(userID, model.RoleAdmin)
	if err != nil {
		return nil, err
	}

	acct, err := s.db.EnsureCreditAccount(userID, s.initialBalance)
	if err != nil {
		return nil, err
	}
	acct.IsAdmin = isAdmin
	if isAdmin {
		acct.Balance = model.UnlimitedBalance
	}
	return acct, nil
}

// Deduct atomically charges amount credits to userID and appends the
// usage transaction. Admin identities succeed without mutating the
// balance or recording a transaction. A failed Deduct is never retried
// here: retrying a non-idempotent deduction risks a double charge.
func (s *Service) Deduct(userID string, amount int, toolID, description string) error {
	if userID == "" {
		return ErrNotAuthenticated
	}
	if amount <= 0 {
		return fmt.Errorf("deduct amount must be positive, got %d", amount)
	}

	isAdmin, err := s.db.HasRole(userID, model.RoleAdmin)
	if err != nil {
		return err
	}
	if isAdmin {
		return nil
	}

	if _, err := s.db.EnsureCreditAccount(userID, s.initialBalance); err != nil {
		return err
	}

	ok, err := s.db.DeductCredits(userID, amount, toolID, description)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInsufficientCredits
	}
	return nil
}

// Grant is the top-up path (subscription purchase or admin override).
// It raises both balance and totalPurchased.
func (s *Service) Grant(userID string, amount int, txType, description string) error {
	if userID == "" {
		return ErrNotAuthenticated
	}
	if amount <= 0 {
		return fmt.Errorf("grant amount must be positive, got %d", amount)
	}
	if _, err := s.db.EnsureCreditAccount(userID, s.initialBalance); err != nil {
		return err
	}
	return s.db.AddCredits(userID, amount, txType, description)
}

// Transactions lists the user's ledger entries newest-first.
func (s *Service) Transactions(userID string, limit int) ([]*model.CreditTransaction, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return s.db.ListTransactions(userID, limit)
}
