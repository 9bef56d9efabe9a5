package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ruralpay/payauth/internal/models"
)

const payeeColumns = `id, owner_id, name, sort_code, account_number, reference, favourite, first_used_at, created_at`

type PayeeRepository struct {
	db *sql.DB
}

func NewPayeeRepository(db *sql.DB) *PayeeRepository {
	return &PayeeRepository{db: db}
}

func scanPayee(row scanner) (*models.Payee, error) {
	var (
		p         models.Payee
		firstUsed sql.NullTime
	)
	err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.SortCode, &p.AccountNumber,
		&p.Reference, &p.Favourite, &firstUsed, &p.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	p.FirstUsedAt = timePtr(firstUsed)
	return &p, nil
}

func (r *PayeeRepository) Get(ctx context.Context, ownerID, payeeID string) (*models.Payee, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+payeeColumns+` FROM payees WHERE id = $1 AND owner_id = $2`,
		payeeID, ownerID)
	return scanPayee(row)
}

func (r *PayeeRepository) byDetails(ctx context.Context, ownerID, sortCode, accountNumber string) (*models.Payee, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+payeeColumns+` FROM payees WHERE owner_id = $1 AND sort_code = $2 AND account_number = $3`,
		ownerID, sortCode, accountNumber)
	return scanPayee(row)
}

// Resolve inserts the payee unless the owner already saved the same bank
// details, in which case the stored row is returned unchanged.
func (r *PayeeRepository) Resolve(ctx context.Context, payee *models.Payee) (*models.Payee, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO payees (id, owner_id, name, sort_code, account_number, reference, favourite, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (owner_id, sort_code, account_number) DO NOTHING
		RETURNING `+payeeColumns,
		payee.ID, payee.OwnerID, payee.Name, payee.SortCode, payee.AccountNumber,
		payee.Reference, payee.Favourite, payee.CreatedAt)

	created, err := scanPayee(row)
	switch {
	case err == nil:
		return created, nil
	case errors.Is(err, ErrNotFound), isUniqueViolation(err):
		return r.byDetails(ctx, payee.OwnerID, payee.SortCode, payee.AccountNumber)
	default:
		return nil, fmt.Errorf("failed to save payee: %w", err)
	}
}

func (r *PayeeRepository) Update(ctx context.Context, ownerID, payeeID string, update models.PayeeUpdate) (*models.Payee, error) {
	if update.IsEmpty() {
		return r.Get(ctx, ownerID, payeeID)
	}

	var (
		sets []string
		args []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if update.Reference != nil {
		add("reference", *update.Reference)
	}
	if update.Favourite != nil {
		add("favourite", *update.Favourite)
	}
	if update.FirstUsedAt != nil {
		add("first_used_at", *update.FirstUsedAt)
	}
	args = append(args, payeeID, ownerID)

	query := fmt.Sprintf(`UPDATE payees SET %s WHERE id = $%d AND owner_id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args)-1, len(args), payeeColumns)
	return scanPayee(r.db.QueryRowContext(ctx, query, args...))
}
