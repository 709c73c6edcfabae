package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"tradefeed/internal/domain"

	_ "modernc.org/sqlite"
)

// Repository is the SQLite-backed identity/wallet store for local and
// single-node deployments.
type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if dbPath == "" {
		return nil, errors.New("db path is required")
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if err := createSchema(db); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func createSchema(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS users (
			fid INTEGER PRIMARY KEY,
			username TEXT NOT NULL DEFAULT '',
			display_name TEXT NOT NULL DEFAULT '',
			pfp_url TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS wallets (
			address TEXT PRIMARY KEY,
			user_fid INTEGER NOT NULL,
			chain TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS wallets_fid_idx ON wallets (user_fid)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) UserByWallet(ctx context.Context, address string) (domain.UserProfile, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `SELECT u.fid, u.username, u.display_name, u.pfp_url
		FROM wallets w JOIN users u ON u.fid = w.user_fid
		WHERE w.address = ?`, strings.ToLower(address))

	var user domain.UserProfile
	if err := row.Scan(&user.FID, &user.Username, &user.DisplayName, &user.AvatarURL); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.UserProfile{}, false, nil
		}
		return domain.UserProfile{}, false, err
	}
	return user, true, nil
}

func (r *Repository) WalletsByFIDs(ctx context.Context, fids []uint64) ([]domain.Wallet, error) {
	if len(fids) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	placeholders := strings.TrimRight(strings.Repeat("?,", len(fids)), ",")
	args := make([]any, 0, len(fids))
	for _, fid := range fids {
		args = append(args, fid)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT address, user_fid, chain FROM wallets WHERE user_fid IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var wallets []domain.Wallet
	for rows.Next() {
		var wallet domain.Wallet
		if err := rows.Scan(&wallet.Address, &wallet.UserFID, &wallet.Chain); err != nil {
			return nil, err
		}
		wallets = append(wallets, wallet)
	}
	return wallets, rows.Err()
}

func (r *Repository) UpsertUsers(ctx context.Context, users []domain.UserProfile) error {
	if len(users) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO users (fid, username, display_name, pfp_url)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(fid) DO UPDATE SET
			username = excluded.username,
			display_name = excluded.display_name,
			pfp_url = excluded.pfp_url`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, user := range users {
		if _, err := stmt.ExecContext(ctx, user.FID, user.Username, user.DisplayName, user.AvatarURL); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (r *Repository) UpsertWallets(ctx context.Context, wallets []domain.Wallet) error {
	if len(wallets) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO wallets (address, user_fid, chain)
		VALUES (?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			user_fid = excluded.user_fid,
			chain = excluded.chain`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, wallet := range wallets {
		if _, err := stmt.ExecContext(ctx, strings.ToLower(wallet.Address), wallet.UserFID, wallet.Chain); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (r *Repository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}
