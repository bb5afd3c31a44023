package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/rshrestha/imagetools/internal/model"
)

// SQLiteDB implements Database backed by SQLite.
type SQLiteDB struct {
	db *sql.DB
}

// NewSQLiteDB opens (or creates) an SQLite database at dsn and runs migrations.
// For in-memory use pass "file::memory:?cache=shared".
func NewSQLiteDB(dsn string) (*SQLiteDB, error) {
	if !strings.Contains(dsn, "?") {
		dsn += "?_journal_mode=WAL&_busy_timeout=5000"
	} else if !strings.Contains(dsn, "_journal_mode") {
		dsn += "&_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite allows one writer at a time; a single pooled connection
	// serializes access instead of surfacing SQLITE_BUSY to callers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteDB{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// Credits
// ---------------------------------------------------------------------------

func (s *SQLiteDB) EnsureCreditAccount(userID string, initialBalance int) (*model.CreditAccount, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO user_credits (user_id, balance, total_purchased, created_at, updated_at)
		VALUES (?, ?, 0, ?, ?)`,
		userID, initialBalance, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("ensure credit account: %w", err)
	}
	return s.GetCreditAccount(userID)
}

func (s *SQLiteDB) GetCreditAccount(userID string) (*model.CreditAccount, error) {
	acct := &model.CreditAccount{UserID: userID}
	err := s.db.QueryRow(`
		SELECT balance, total_purchased FROM user_credits WHERE user_id = ?`,
		userID,
	).Scan(&acct.Balance, &acct.TotalPurchased)
	if err != nil {
		return nil, fmt.Errorf("get credit account: %w", err)
	}
	return acct, nil
}

// DeductCredits performs the balance check and the decrement in a single
// conditional UPDATE so that two concurrent deductions for the same user
// can never both pass the check. The usage transaction is appended in
// the same database transaction.
func (s *SQLiteDB) DeductCredits(userID string, amount int, tool, description string) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			log.Printf("DeductCredits: rollback failed: %v", err)
		}
	}()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := tx.Exec(`
		UPDATE user_credits SET balance = balance - ?, updated_at = ?
		WHERE user_id = ? AND balance >= ?`,
		amount, now, userID, amount,
	)
	if err != nil {
		return false, fmt.Errorf("deduct credits: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		// Insufficient balance (or no account row).
		return false, nil
	}

	_, err = tx.Exec(`
		INSERT INTO credit_transactions (id, user_id, amount, type, tool_used, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), userID, -amount, model.TxTypeUsage, tool, description, now,
	)
	if err != nil {
		return false, fmt.Errorf("insert transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit deduct: %w", err)
	}
	return true, nil
}

func (s *SQLiteDB) AddCredits(userID string, amount int, txType, description string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			log.Printf("AddCredits: rollback failed: %v", err)
		}
	}()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := tx.Exec(`
		UPDATE user_credits SET balance = balance + ?, total_purchased = total_purchased + ?, updated_at = ?
		WHERE user_id = ?`,
		amount, amount, now, userID,
	)
	if err != nil {
		return fmt.Errorf("add credits: %w", err)
	}
	if err := checkRowsAffected(res, "credit account not found"); err != nil {
		return err
	}

	_, err = tx.Exec(`
		INSERT INTO credit_transactions (id, user_id, amount, type, tool_used, description, created_at)
		VALUES (?, ?, ?, ?, '', ?, ?)`,
		uuid.New().String(), userID, amount, txType, description, now,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	return tx.Commit()
}

func (s *SQLiteDB) ListTransactions(userID string, limit int) ([]*model.CreditTransaction, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, amount, type, tool_used, description, created_at
		FROM credit_transactions WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []*model.CreditTransaction
	for rows.Next() {
		t := &model.CreditTransaction{}
		var createdStr string
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.Type, &t.ToolUsed, &t.Description, &createdStr); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// ---------------------------------------------------------------------------
// Roles
// ---------------------------------------------------------------------------

func (s *SQLiteDB) HasRole(userID, role string) (bool, error) {
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM user_roles WHERE user_id = ? AND role = ?`,
		userID, role,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check role: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteDB) GrantRole(userID, role string) error {
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO user_roles (user_id, role) VALUES (?, ?)`,
		userID, role,
	)
	if err != nil {
		return fmt.Errorf("grant role: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Processing history
// ---------------------------------------------------------------------------

func (s *SQLiteDB) InsertHistory(rec *model.ProcessingRecord) error {
	metaJSON, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO processing_history (id, user_id, tool_id, file_name, file_size, output_format, credits_used, status, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, nullString(rec.UserID), rec.ToolID, rec.FileName, rec.FileSize,
		rec.OutputFormat, rec.CreditsUsed, string(rec.Status), string(metaJSON),
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

func (s *SQLiteDB) ListHistory(userID string, limit int) ([]*model.ProcessingRecord, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if userID == "" {
		rows, err = s.db.Query(`
			SELECT id, user_id, tool_id, file_name, file_size, output_format, credits_used, status, metadata, created_at
			FROM processing_history WHERE user_id IS NULL
			ORDER BY created_at DESC, rowid DESC
			LIMIT ?`,
			limit,
		)
	} else {
		rows, err = s.db.Query(`
			SELECT id, user_id, tool_id, file_name, file_size, output_format, credits_used, status, metadata, created_at
			FROM processing_history WHERE user_id = ?
			ORDER BY created_at DESC, rowid DESC
			LIMIT ?`,
			userID, limit,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var records []*model.ProcessingRecord
	for rows.Next() {
		rec := &model.ProcessingRecord{}
		var userIDCol sql.NullString
		var status, metaStr, createdStr string
		if err := rows.Scan(&rec.ID, &userIDCol, &rec.ToolID, &rec.FileName, &rec.FileSize,
			&rec.OutputFormat, &rec.CreditsUsed, &status, &metaStr, &createdStr); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		rec.UserID = userIDCol.String
		rec.Status = model.RecordStatus(status)
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		if metaStr != "" && metaStr != "{}" {
			if err := json.Unmarshal([]byte(metaStr), &rec.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal history metadata: %w", err)
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ---------------------------------------------------------------------------
// Auth tokens
// ---------------------------------------------------------------------------

func (s *SQLiteDB) UserFromToken(token string) (*model.User, error) {
	u := &model.User{}
	var metaStr string
	err := s.db.QueryRow(`
		SELECT user_id, email, metadata FROM auth_tokens WHERE token = ?`,
		token,
	).Scan(&u.ID, &u.Email, &metaStr)
	if err != nil {
		return nil, fmt.Errorf("lookup token: %w", err)
	}
	if metaStr != "" && metaStr != "{}" {
		if err := json.Unmarshal([]byte(metaStr), &u.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal token metadata: %w", err)
		}
	}
	return u, nil
}

func (s *SQLiteDB) UpsertToken(token string, user *model.User) error {
	metaJSON, err := json.Marshal(user.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO auth_tokens (token, user_id, email, metadata, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(token) DO UPDATE SET user_id = excluded.user_id, email = excluded.email, metadata = excluded.metadata`,
		token, user.ID, user.Email, string(metaJSON), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert token: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func checkRowsAffected(res sql.Result, notFoundMsg string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s", notFoundMsg)
	}
	return nil
}
