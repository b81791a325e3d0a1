package statement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresPaymentRepository implements PaymentRepository on the payments
// and registry tables. All SQL targets the pool directly outside a batch
// and the batch transaction inside one.
type PostgresPaymentRepository struct {
	pool *pgxpool.Pool
	q    pgxQuerier
}

func NewPaymentRepository(pool *pgxpool.Pool) *PostgresPaymentRepository {
	return &PostgresPaymentRepository{pool: pool, q: pool}
}

func (r *PostgresPaymentRepository) InTransaction(ctx context.Context, fn func(PaymentRepository) error) error {
	if r.pool == nil {
		// already transaction-bound
		return fn(r)
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin import transaction: %w", err)
	}
	defer tx.Rollback(ctx)
	if err := fn(&PostgresPaymentRepository{q: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const insertPaymentSQL = `
	INSERT INTO payments (
		payment_id, sacco_id, txn_id, msisdn, amount, occurred_at,
		reference, status, ikimina_id, member_id
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (sacco_id, txn_id) DO NOTHING
	RETURNING payment_id
`

func (r *PostgresPaymentRepository) InsertPayment(ctx context.Context, rec PaymentRecord) (string, error) {
	id := rec.PaymentID
	if id == "" {
		id = uuid.New().String()
	}
	var paymentID string
	err := r.q.QueryRow(ctx, insertPaymentSQL,
		id, rec.SaccoID, rec.TxnID, rec.Msisdn, rec.Amount.String(),
		rec.OccurredAt, rec.Reference, string(rec.Status), rec.IkiminaID, rec.MemberID,
	).Scan(&paymentID)
	if errors.Is(err, pgx.ErrNoRows) {
		// DO NOTHING swallowed the insert: the (sacco_id, txn_id) key exists
		return "", ErrDuplicatePayment
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		// concurrent import won the race on the uniqueness key
		return "", ErrDuplicatePayment
	}
	if err != nil {
		return "", err
	}
	return paymentID, nil
}

const resolveIkiminaSQL = `
	SELECT i.ikimina_id
	FROM ikiminas i
	JOIN saccos s ON i.sacco_id = s.sacco_id
	WHERE s.sacco_id = $1
	  AND LOWER(s.district_code) = LOWER($2)
	  AND LOWER(s.sacco_code) = LOWER($3)
	  AND LOWER(i.ikimina_code) = LOWER($4)
	LIMIT 1
`

const resolveMemberSQL = `
	SELECT member_id
	FROM ikimina_members
	WHERE ikimina_id = $1 AND LOWER(member_code) = LOWER($2)
	LIMIT 1
`

// ResolveReference looks the DISTRICT.SACCO.IKIMINA[.MEMBER] token up in
// the registry. A structurally valid token that names nothing returns a
// nil target, leaving the payment unallocated; an unknown member segment
// still resolves the ikimina.
func (r *PostgresPaymentRepository) ResolveReference(ctx context.Context, saccoID, reference string) (*ReferenceTarget, error) {
	segs := referenceSegments(reference)
	if len(segs) < 3 || len(segs) > 4 {
		return nil, nil
	}
	var ikiminaID string
	err := r.q.QueryRow(ctx, resolveIkiminaSQL, saccoID, segs[0], segs[1], segs[2]).Scan(&ikiminaID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	target := &ReferenceTarget{IkiminaID: ikiminaID}
	if len(segs) == 4 {
		var memberID string
		err := r.q.QueryRow(ctx, resolveMemberSQL, ikiminaID, segs[3]).Scan(&memberID)
		if err == nil {
			target.MemberID = &memberID
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
	}
	return target, nil
}

// StageStatementRows copies the raw decoded rows into statement_staging
// for audit, one JSON payload per line, keyed by the upload batch id. The
// retention job purges stale batches.
func (r *PostgresPaymentRepository) StageStatementRows(ctx context.Context, batchID string, table *Table) error {
	if r.pool == nil {
		return errors.New("staging requires a pool-bound repository")
	}
	copyRows := make([][]interface{}, 0, len(table.Rows))
	for i, row := range table.Rows {
		payload, err := json.Marshal(row)
		if err != nil {
			return err
		}
		copyRows = append(copyRows, []interface{}{batchID, i + 1, payload})
	}
	_, err := r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"statement_staging"},
		[]string{"upload_batch_id", "row_num", "payload"},
		pgx.CopyFromRows(copyRows),
	)
	return err
}

const listPaymentsSQL = `
	SELECT payment_id, sacco_id, txn_id, msisdn, amount::text, occurred_at,
	       reference, status, ikimina_id, member_id
	FROM payments
	WHERE sacco_id = $1
	ORDER BY occurred_at DESC, txn_id
	LIMIT $2 OFFSET $3
`

// CountPayments returns the number of payments recorded for a SACCO.
func (r *PostgresPaymentRepository) CountPayments(ctx context.Context, saccoID string) (int, error) {
	var total int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM payments WHERE sacco_id = $1`, saccoID).Scan(&total)
	return total, err
}

// ListPayments returns one page of a SACCO's payments, newest first.
func (r *PostgresPaymentRepository) ListPayments(ctx context.Context, saccoID string, limit, offset int) ([]PaymentRecord, error) {
	rows, err := r.q.Query(ctx, listPaymentsSQL, saccoID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]PaymentRecord, 0)
	for rows.Next() {
		var rec PaymentRecord
		var amount string
		var status string
		if err := rows.Scan(
			&rec.PaymentID, &rec.SaccoID, &rec.TxnID, &rec.Msisdn, &amount,
			&rec.OccurredAt, &rec.Reference, &status, &rec.IkiminaID, &rec.MemberID,
		); err != nil {
			return nil, err
		}
		rec.Status = PaymentStatus(status)
		if d, err := decimal.NewFromString(amount); err == nil {
			rec.Amount = d
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
