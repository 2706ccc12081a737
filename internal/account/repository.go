package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/payhasly/account_service/internal/telemetry"
)

const uniqueViolation = "23505"

// Repository persists accounts. Create assigns the id; Delete reports
// found == false, without error, for an unknown id.
type Repository interface {
	Create(ctx context.Context, acc NewAccount) (Account, error)
	FindByID(ctx context.Context, id string) (Account, error)
	Update(ctx context.Context, id string, patch Patch) (Account, error)
	Delete(ctx context.Context, id string) (Account, bool, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db      *pgxpool.Pool
	metrics *telemetry.Metrics
}

// NewPostgresRepository builds a Postgres-backed account repository.
func NewPostgresRepository(db *pgxpool.Pool, metrics *telemetry.Metrics) *PostgresRepository {
	return &PostgresRepository{db: db, metrics: metrics}
}

const accountColumns = `id, phone, password_hash, is_admin, created_at, updated_at`

func (r *PostgresRepository) Create(ctx context.Context, acc NewAccount) (Account, error) {
	start := time.Now()
	status := "ok"
	defer func() { r.metrics.ObserveDB("create", status, time.Since(start)) }()

	row := r.db.QueryRow(ctx, `INSERT INTO accounts (id, phone, password_hash, is_admin)
        VALUES ($1, $2, $3, $4)
        RETURNING `+accountColumns, uuid.New(), acc.Phone, acc.PasswordHash, acc.IsAdmin)

	out, err := scanAccount(row)
	if err != nil {
		if isUniqueViolation(err) {
			status = "conflict"
			return Account{}, ErrDuplicatePhone
		}
		status = "error"
		return Account{}, fmt.Errorf("create account: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (Account, error) {
	start := time.Now()
	status := "ok"
	defer func() { r.metrics.ObserveDB("find_by_id", status, time.Since(start)) }()

	accountID, err := uuid.Parse(id)
	if err != nil {
		status = "not_found"
		return Account{}, ErrAccountNotFound
	}

	out, err := scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			status = "not_found"
			return Account{}, ErrAccountNotFound
		}
		status = "error"
		return Account{}, fmt.Errorf("get account: %w", err)
	}
	return out, nil
}

// Update writes the non-nil patch fields in one statement and returns the
// row as committed.
func (r *PostgresRepository) Update(ctx context.Context, id string, patch Patch) (Account, error) {
	start := time.Now()
	status := "ok"
	defer func() { r.metrics.ObserveDB("update", status, time.Since(start)) }()

	accountID, err := uuid.Parse(id)
	if err != nil {
		status = "not_found"
		return Account{}, ErrAccountNotFound
	}

	const q = `
        UPDATE accounts
        SET phone = COALESCE($2, phone),
            password_hash = COALESCE($3, password_hash),
            is_admin = COALESCE($4, is_admin),
            updated_at = NOW()
        WHERE id = $1
        RETURNING ` + accountColumns

	out, err := scanAccount(r.db.QueryRow(ctx, q, accountID, patch.Phone, patch.PasswordHash, patch.IsAdmin))
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			status = "not_found"
			return Account{}, ErrAccountNotFound
		case isUniqueViolation(err):
			status = "conflict"
			return Account{}, ErrDuplicatePhone
		}
		status = "error"
		return Account{}, fmt.Errorf("update account: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) (Account, bool, error) {
	start := time.Now()
	status := "ok"
	defer func() { r.metrics.ObserveDB("delete", status, time.Since(start)) }()

	accountID, err := uuid.Parse(id)
	if err != nil {
		status = "not_found"
		return Account{}, false, nil
	}

	out, err := scanAccount(r.db.QueryRow(ctx, `DELETE FROM accounts WHERE id = $1 RETURNING `+accountColumns, accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			status = "not_found"
			return Account{}, false, nil
		}
		status = "error"
		return Account{}, false, fmt.Errorf("delete account: %w", err)
	}
	return out, true, nil
}

func scanAccount(row pgx.Row) (Account, error) {
	var (
		id  uuid.UUID
		acc Account
	)
	if err := row.Scan(&id, &acc.Phone, &acc.PasswordHash, &acc.IsAdmin, &acc.CreatedAt, &acc.UpdatedAt); err != nil {
		return Account{}, err
	}
	acc.ID = id.String()
	acc.CreatedAt = acc.CreatedAt.UTC()
	acc.UpdatedAt = acc.UpdatedAt.UTC()
	return acc, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
