package statement

import (
	"context"
	"errors"
	"fmt"
	"log"
)

var (
	// ErrEmptyBatch rejects a commit call outright, with no partial effects.
	ErrEmptyBatch = errors.New("no statement rows to import")
	// ErrDuplicatePayment is returned by repositories when (sacco_id,
	// txn_id) already exists. The committer counts it and moves on:
	// re-importing an overlapping statement export is an expected
	// operational pattern, not a failure.
	ErrDuplicatePayment = errors.New("payment already imported")
)

// PaymentRepository is the typed persistence boundary of the engine. The
// storage layer enforces the (sacco_id, txn_id) uniqueness key; concurrent
// imports racing on the same key surface as ErrDuplicatePayment from
// InsertPayment.
type PaymentRepository interface {
	// InTransaction runs fn against a repository bound to one
	// transaction. A non-nil error from fn rolls everything back, which
	// is what makes a transport failure batch-fatal with zero effect.
	InTransaction(ctx context.Context, fn func(PaymentRepository) error) error
	// InsertPayment persists one payment and returns its id, or
	// ErrDuplicatePayment on a uniqueness conflict. Any other error is a
	// transport failure and aborts the batch.
	InsertPayment(ctx context.Context, rec PaymentRecord) (string, error)
	// ResolveReference maps a structured reference token to an ikimina
	// (and optionally a member) within the SACCO. A nil target means the
	// token names nothing known and the payment stays unallocated.
	ResolveReference(ctx context.Context, saccoID, reference string) (*ReferenceTarget, error)
}

// CommitStatementRows persists a pre-validated row set as payment records,
// atomically: either the returned counts reflect the fully attempted batch
// or the call fails with zero rows inserted. The caller must already have
// filtered rows to those with no processing errors; field contents are not
// re-validated here, only persistence constraints. When ikiminaID is set
// the whole batch posts to that group; otherwise each row's reference
// decides between POSTED and UNALLOCATED. Unallocated money is inserted,
// never discarded: it must stay visible for manual reconciliation.
func CommitStatementRows(ctx context.Context, repo PaymentRepository, saccoID string, ikiminaID *string, rows []StatementRow) (*ImportResult, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyBatch
	}
	if saccoID == "" {
		return nil, errors.New("sacco_id is required")
	}

	var res *ImportResult
	err := repo.InTransaction(ctx, func(r PaymentRepository) error {
		var err error
		res, err = commitRows(ctx, r, saccoID, ikiminaID, rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func commitRows(ctx context.Context, repo PaymentRepository, saccoID string, ikiminaID *string, rows []StatementRow) (*ImportResult, error) {
	res := &ImportResult{}
	for _, row := range rows {
		rec := PaymentRecord{
			SaccoID:    saccoID,
			TxnID:      row.TxnID,
			Msisdn:     row.Msisdn,
			Amount:     row.Amount,
			OccurredAt: row.OccurredAt,
			Reference:  row.Reference,
			Status:     StatusUnallocated,
		}
		switch {
		case ikiminaID != nil && *ikiminaID != "":
			id := *ikiminaID
			rec.Status = StatusPosted
			rec.IkiminaID = &id
		case row.Reference != nil && *row.Reference != "":
			target, err := repo.ResolveReference(ctx, saccoID, *row.Reference)
			if err != nil {
				// a matching failure is per-row: the payment still
				// lands, unallocated, instead of sinking the batch
				log.Printf("[STATEMENT-IMPORT] reference %q not resolved: %v", *row.Reference, err)
			} else if target != nil {
				rec.Status = StatusPosted
				rec.IkiminaID = &target.IkiminaID
				rec.MemberID = target.MemberID
			}
		}

		_, err := repo.InsertPayment(ctx, rec)
		switch {
		case err == nil:
			res.Inserted++
			if rec.Status == StatusPosted {
				res.Posted++
			} else {
				res.Unallocated++
			}
		case errors.Is(err, ErrDuplicatePayment):
			res.Duplicates++
		default:
			return nil, fmt.Errorf("import payment %s: %w", row.TxnID, err)
		}
	}
	return res, nil
}
