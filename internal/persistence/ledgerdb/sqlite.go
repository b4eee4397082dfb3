package ledgerdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"reagentbank.io/internal/ledger"
)

// Store is the SQLite-backed ledger. Every call commits before it returns.
type Store struct {
	db *sql.DB
}

var _ ledger.Store = (*Store)(nil)

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Single writer connection; ledger writes are already serialized per owner.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	// FULL: a reported transfer must survive a crash.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=FULL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS reagent_bank (
			account_id INTEGER NOT NULL,
			character_id INTEGER NOT NULL,
			item_id INTEGER NOT NULL,
			category INTEGER NOT NULL CHECK (category BETWEEN 1 AND 15),
			quantity INTEGER NOT NULL CHECK (quantity > 0),
			PRIMARY KEY (account_id, character_id, item_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_reagent_bank_category ON reagent_bank(account_id, character_id, category);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, owner ledger.OwnerKey, itemID uint32) (ledger.Entry, bool, error) {
	if !owner.Valid() {
		return ledger.Entry{}, false, ledger.ErrInvalidOwner
	}
	var cat, qty int64
	err := s.db.QueryRowContext(ctx,
		`SELECT category, quantity FROM reagent_bank WHERE account_id = ? AND character_id = ? AND item_id = ?`,
		int64(owner.Account), int64(owner.Character), int64(itemID),
	).Scan(&cat, &qty)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Entry{}, false, nil
	}
	if err != nil {
		return ledger.Entry{}, false, err
	}
	return ledger.Entry{
		Owner:    owner,
		ItemID:   itemID,
		Category: ledger.Category(cat),
		Quantity: uint32(qty),
	}, true, nil
}

const upsertSQL = `INSERT INTO reagent_bank(account_id, character_id, item_id, category, quantity)
	VALUES(?,?,?,?,?)
	ON CONFLICT(account_id, character_id, item_id) DO UPDATE SET category = excluded.category, quantity = excluded.quantity`

const deleteSQL = `DELETE FROM reagent_bank WHERE account_id = ? AND character_id = ? AND item_id = ?`

func (s *Store) Upsert(ctx context.Context, e ledger.Entry) error {
	if !e.Owner.Valid() {
		return ledger.ErrInvalidOwner
	}
	if e.Quantity == 0 {
		return ledger.ErrZeroQuantity
	}
	if !e.Category.Valid() {
		return ledger.ErrInvalidCategory
	}
	_, err := s.db.ExecContext(ctx, upsertSQL,
		int64(e.Owner.Account), int64(e.Owner.Character), int64(e.ItemID), int64(e.Category), int64(e.Quantity))
	return err
}

func (s *Store) Delete(ctx context.Context, owner ledger.OwnerKey, itemID uint32) error {
	if !owner.Valid() {
		return ledger.ErrInvalidOwner
	}
	_, err := s.db.ExecContext(ctx, deleteSQL, int64(owner.Account), int64(owner.Character), int64(itemID))
	return err
}

func (s *Store) ScanCategory(ctx context.Context, owner ledger.OwnerKey, c ledger.Category) ([]ledger.Entry, error) {
	if !owner.Valid() {
		return nil, ledger.ErrInvalidOwner
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT item_id, category, quantity FROM reagent_bank
		 WHERE account_id = ? AND character_id = ? AND category = ? ORDER BY item_id`,
		int64(owner.Account), int64(owner.Character), int64(c))
	if err != nil {
		return nil, err
	}
	return scanEntries(owner, rows)
}

func (s *Store) ScanAll(ctx context.Context, owner ledger.OwnerKey) ([]ledger.Entry, error) {
	if !owner.Valid() {
		return nil, ledger.ErrInvalidOwner
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT item_id, category, quantity FROM reagent_bank
		 WHERE account_id = ? AND character_id = ? ORDER BY item_id`,
		int64(owner.Account), int64(owner.Character))
	if err != nil {
		return nil, err
	}
	return scanEntries(owner, rows)
}

func scanEntries(owner ledger.OwnerKey, rows *sql.Rows) ([]ledger.Entry, error) {
	defer rows.Close()
	var out []ledger.Entry
	for rows.Next() {
		var item, cat, qty int64
		if err := rows.Scan(&item, &cat, &qty); err != nil {
			return nil, err
		}
		out = append(out, ledger.Entry{
			Owner:    owner,
			ItemID:   uint32(item),
			Category: ledger.Category(cat),
			Quantity: uint32(qty),
		})
	}
	return out, rows.Err()
}

func (s *Store) Apply(ctx context.Context, owner ledger.OwnerKey, writes []ledger.Write) error {
	if !owner.Valid() {
		return ledger.ErrInvalidOwner
	}
	if len(writes) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	upsert, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return err
	}
	defer upsert.Close()
	del, err := tx.PrepareContext(ctx, deleteSQL)
	if err != nil {
		return err
	}
	defer del.Close()

	acct, char := int64(owner.Account), int64(owner.Character)
	for _, w := range writes {
		if w.Quantity == 0 {
			if _, err := del.ExecContext(ctx, acct, char, int64(w.ItemID)); err != nil {
				return fmt.Errorf("delete item %d: %w", w.ItemID, err)
			}
			continue
		}
		if _, err := upsert.ExecContext(ctx, acct, char, int64(w.ItemID), int64(w.Category), int64(w.Quantity)); err != nil {
			return fmt.Errorf("upsert item %d: %w", w.ItemID, err)
		}
	}
	return tx.Commit()
}

// Stats summarizes the whole table.
type Stats struct {
	Owners   int
	Rows     int
	Quantity int64
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(quantity), 0) FROM reagent_bank`).Scan(&st.Rows, &st.Quantity)
	if err != nil {
		return st, err
	}
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM (SELECT DISTINCT account_id, character_id FROM reagent_bank)`).Scan(&st.Owners)
	return st, err
}
