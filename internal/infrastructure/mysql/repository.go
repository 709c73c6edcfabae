package mysql

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"tradefeed/internal/domain"

	_ "github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Repository is the MySQL-backed identity/wallet store.
type Repository struct {
	db *sql.DB
}

func NewRepository(dsn string) (*Repository, error) {
	if dsn == "" {
		return nil, errors.New("db dsn is required")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
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
			fid BIGINT UNSIGNED NOT NULL,
			username VARCHAR(255) NOT NULL DEFAULT '',
			display_name VARCHAR(255) NOT NULL DEFAULT '',
			pfp_url TEXT,
			PRIMARY KEY (fid)
		)`,
		`CREATE TABLE IF NOT EXISTS wallets (
			address VARCHAR(128) NOT NULL,
			user_fid BIGINT UNSIGNED NOT NULL,
			chain VARCHAR(32) NOT NULL DEFAULT '',
			PRIMARY KEY (address),
			KEY wallets_fid_idx (user_fid)
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// UserByWallet resolves a wallet address to its owning identity's profile.
// The address is matched lowercased, the way the sync job stores it.
func (r *Repository) UserByWallet(ctx context.Context, address string) (domain.UserProfile, bool, error) {
	ctx, span := startDBSpan(ctx, "mysql.UserByWallet", attribute.String("address", address))
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `SELECT u.fid, u.username, u.display_name, COALESCE(u.pfp_url, '')
		FROM wallets w JOIN users u ON u.fid = w.user_fid
		WHERE w.address = ?`, strings.ToLower(address))

	var user domain.UserProfile
	if err := row.Scan(&user.FID, &user.Username, &user.DisplayName, &user.AvatarURL); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.UserProfile{}, false, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.UserProfile{}, false, err
	}
	return user, true, nil
}

// WalletsByFIDs returns every known wallet for the given identity set.
func (r *Repository) WalletsByFIDs(ctx context.Context, fids []uint64) ([]domain.Wallet, error) {
	if len(fids) == 0 {
		return nil, nil
	}
	ctx, span := startDBSpan(ctx, "mysql.WalletsByFIDs", attribute.Int("fid.count", len(fids)))
	defer span.End()
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
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer rows.Close()

	var wallets []domain.Wallet
	for rows.Next() {
		var wallet domain.Wallet
		if err := rows.Scan(&wallet.Address, &wallet.UserFID, &wallet.Chain); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		wallets = append(wallets, wallet)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return wallets, nil
}

// UpsertUsers inserts or refreshes identity profiles keyed by fid.
func (r *Repository) UpsertUsers(ctx context.Context, users []domain.UserProfile) error {
	if len(users) == 0 {
		return nil
	}
	ctx, span := startDBSpan(ctx, "mysql.UpsertUsers", attribute.Int("user.count", len(users)))
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return spanError(span, err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO users (fid, username, display_name, pfp_url)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			username = VALUES(username),
			display_name = VALUES(display_name),
			pfp_url = VALUES(pfp_url)`)
	if err != nil {
		_ = tx.Rollback()
		return spanError(span, err)
	}
	defer stmt.Close()

	for _, user := range users {
		if _, err := stmt.ExecContext(ctx, user.FID, user.Username, user.DisplayName, user.AvatarURL); err != nil {
			_ = tx.Rollback()
			return spanError(span, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return spanError(span, err)
	}
	return nil
}

// UpsertWallets inserts or refreshes wallet ownership keyed by lowercased
// address.
func (r *Repository) UpsertWallets(ctx context.Context, wallets []domain.Wallet) error {
	if len(wallets) == 0 {
		return nil
	}
	ctx, span := startDBSpan(ctx, "mysql.UpsertWallets", attribute.Int("wallet.count", len(wallets)))
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return spanError(span, err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO wallets (address, user_fid, chain)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE
			user_fid = VALUES(user_fid),
			chain = VALUES(chain)`)
	if err != nil {
		_ = tx.Rollback()
		return spanError(span, err)
	}
	defer stmt.Close()

	for _, wallet := range wallets {
		if _, err := stmt.ExecContext(ctx, strings.ToLower(wallet.Address), wallet.UserFID, wallet.Chain); err != nil {
			_ = tx.Rollback()
			return spanError(span, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return spanError(span, err)
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func startDBSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("db.system", "mysql"))
	return otel.Tracer("tradefeed/mysql").Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
}

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
