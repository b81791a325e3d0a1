package statement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memPaymentRepo is an in-memory PaymentRepository with transactional
// rollback, used to exercise the committer without a database.
type memPaymentRepo struct {
	payments   map[string]PaymentRecord
	targets    map[string]*ReferenceTarget
	resolveErr map[string]error
	failTxn    string // InsertPayment returns a transport error for this txn id
}

func newMemRepo() *memPaymentRepo {
	return &memPaymentRepo{
		payments:   make(map[string]PaymentRecord),
		targets:    make(map[string]*ReferenceTarget),
		resolveErr: make(map[string]error),
	}
}

func (m *memPaymentRepo) InTransaction(ctx context.Context, fn func(PaymentRepository) error) error {
	snapshot := make(map[string]PaymentRecord, len(m.payments))
	for k, v := range m.payments {
		snapshot[k] = v
	}
	if err := fn(m); err != nil {
		m.payments = snapshot
		return err
	}
	return nil
}

func (m *memPaymentRepo) InsertPayment(ctx context.Context, rec PaymentRecord) (string, error) {
	if rec.TxnID == m.failTxn {
		return "", errors.New("connection reset by peer")
	}
	key := rec.SaccoID + "|" + rec.TxnID
	if _, exists := m.payments[key]; exists {
		return "", ErrDuplicatePayment
	}
	rec.PaymentID = "p-" + rec.TxnID
	m.payments[key] = rec
	return rec.PaymentID, nil
}

func (m *memPaymentRepo) ResolveReference(ctx context.Context, saccoID, reference string) (*ReferenceTarget, error) {
	if err, ok := m.resolveErr[reference]; ok {
		return nil, err
	}
	return m.targets[reference], nil
}

func stmtRow(txn string, amount int64, ref *string) StatementRow {
	return StatementRow{
		OccurredAt: time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC),
		TxnID:      txn,
		Msisdn:     "+250788123456",
		Amount:     decimal.NewFromInt(amount),
		Reference:  ref,
	}
}

func TestCommitEmptyBatch(t *testing.T) {
	repo := newMemRepo()
	res, err := CommitStatementRows(context.Background(), repo, "sacco-1", nil, nil)
	assert.ErrorIs(t, err, ErrEmptyBatch)
	assert.Nil(t, res)
	assert.Empty(t, repo.payments)
}

// Unreferenced money is inserted as UNALLOCATED, never discarded.
func TestCommitUnallocated(t *testing.T) {
	repo := newMemRepo()
	res, err := CommitStatementRows(context.Background(), repo, "sacco-1", nil, []StatementRow{
		stmtRow("T1", 5000, nil),
	})
	require.NoError(t, err)
	assert.Equal(t, &ImportResult{Inserted: 1, Duplicates: 0, Posted: 0, Unallocated: 1}, res)

	rec := repo.payments["sacco-1|T1"]
	assert.Equal(t, StatusUnallocated, rec.Status)
	assert.Nil(t, rec.IkiminaID)
}

func TestCommitPostedViaReference(t *testing.T) {
	repo := newMemRepo()
	member := "mem-9"
	repo.targets["KIGALI.SACCOX.IK1.M001"] = &ReferenceTarget{IkiminaID: "ik-1", MemberID: &member}

	ref := "KIGALI.SACCOX.IK1.M001"
	unknown := "KIGALI.SACCOX.NOPE"
	res, err := CommitStatementRows(context.Background(), repo, "sacco-1", nil, []StatementRow{
		stmtRow("T1", 5000, &ref),
		stmtRow("T2", 3000, &unknown),
	})
	require.NoError(t, err)
	assert.Equal(t, &ImportResult{Inserted: 2, Duplicates: 0, Posted: 1, Unallocated: 1}, res)

	posted := repo.payments["sacco-1|T1"]
	assert.Equal(t, StatusPosted, posted.Status)
	require.NotNil(t, posted.IkiminaID)
	assert.Equal(t, "ik-1", *posted.IkiminaID)
	require.NotNil(t, posted.MemberID)
	assert.Equal(t, "mem-9", *posted.MemberID)

	assert.Equal(t, StatusUnallocated, repo.payments["sacco-1|T2"].Status)
}

// A reference-matching failure is per-row: the payment lands unallocated
// instead of aborting the batch.
func TestCommitResolveFailureIsPerRow(t *testing.T) {
	repo := newMemRepo()
	ref := "KIGALI.SACCOX.IK1"
	repo.resolveErr[ref] = errors.New("registry lookup timed out")

	res, err := CommitStatementRows(context.Background(), repo, "sacco-1", nil, []StatementRow{
		stmtRow("T1", 100, &ref),
		stmtRow("T2", 200, nil),
	})
	require.NoError(t, err)
	assert.Equal(t, &ImportResult{Inserted: 2, Duplicates: 0, Posted: 0, Unallocated: 2}, res)
}

func TestCommitPinnedIkimina(t *testing.T) {
	repo := newMemRepo()
	ik := "ik-7"
	res, err := CommitStatementRows(context.Background(), repo, "sacco-1", &ik, []StatementRow{
		stmtRow("T1", 100, nil),
		stmtRow("T2", 200, nil),
	})
	require.NoError(t, err)
	assert.Equal(t, &ImportResult{Inserted: 2, Duplicates: 0, Posted: 2, Unallocated: 0}, res)
	for _, rec := range repo.payments {
		require.NotNil(t, rec.IkiminaID)
		assert.Equal(t, "ik-7", *rec.IkiminaID)
	}
}

// Re-importing an overlapping export is idempotent: first call inserts
// everything, second call skips everything as duplicates.
func TestCommitIdempotentReimport(t *testing.T) {
	repo := newMemRepo()
	rows := []StatementRow{
		stmtRow("T1", 100, nil),
		stmtRow("T2", 200, nil),
		stmtRow("T3", 300, nil),
	}

	first, err := CommitStatementRows(context.Background(), repo, "sacco-1", nil, rows)
	require.NoError(t, err)
	assert.Equal(t, &ImportResult{Inserted: 3, Duplicates: 0, Posted: 0, Unallocated: 3}, first)

	second, err := CommitStatementRows(context.Background(), repo, "sacco-1", nil, rows)
	require.NoError(t, err)
	assert.Equal(t, &ImportResult{Inserted: 0, Duplicates: 3, Posted: 0, Unallocated: 0}, second)
}

// Scenario: two rows sharing a txn id in the same batch — the first one
// in wins, the second counts as a duplicate.
func TestCommitInBatchDuplicate(t *testing.T) {
	repo := newMemRepo()
	res, err := CommitStatementRows(context.Background(), repo, "sacco-1", nil, []StatementRow{
		stmtRow("TXN1", 5000, nil),
		stmtRow("TXN1", 3000, nil),
	})
	require.NoError(t, err)
	assert.Equal(t, &ImportResult{Inserted: 1, Duplicates: 1, Posted: 0, Unallocated: 1}, res)
	assert.True(t, repo.payments["sacco-1|TXN1"].Amount.Equal(decimal.NewFromInt(5000)))
}

// Accounting invariant: inserted + duplicates always equals the submitted
// row count, and inserted = posted + unallocated.
func TestCommitAccounting(t *testing.T) {
	repo := newMemRepo()
	repo.targets["KIGALI.SACCOX.IK1"] = &ReferenceTarget{IkiminaID: "ik-1"}
	ref := "KIGALI.SACCOX.IK1"
	rows := []StatementRow{
		stmtRow("T1", 1, &ref),
		stmtRow("T1", 2, nil),
		stmtRow("T2", 3, nil),
	}
	res, err := CommitStatementRows(context.Background(), repo, "sacco-1", nil, rows)
	require.NoError(t, err)
	assert.Equal(t, len(rows), res.Inserted+res.Duplicates)
	assert.Equal(t, res.Inserted, res.Posted+res.Unallocated)
}

// A transport failure is batch-fatal with zero effect: earlier inserts in
// the same batch roll back.
func TestCommitTransportFailureRollsBack(t *testing.T) {
	repo := newMemRepo()
	repo.failTxn = "T3"
	res, err := CommitStatementRows(context.Background(), repo, "sacco-1", nil, []StatementRow{
		stmtRow("T1", 100, nil),
		stmtRow("T2", 200, nil),
		stmtRow("T3", 300, nil),
	})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Empty(t, repo.payments, "failed batch must leave no rows behind")
}

func TestCommitMissingSacco(t *testing.T) {
	repo := newMemRepo()
	_, err := CommitStatementRows(context.Background(), repo, "", nil, []StatementRow{stmtRow("T1", 1, nil)})
	assert.Error(t, err)
	assert.Empty(t, repo.payments)
}
