package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/podilnyk/monojar/internal/config"
	"github.com/podilnyk/monojar/internal/models/errs"
	"github.com/podilnyk/monojar/internal/models/order"
	"github.com/podilnyk/monojar/internal/monobank"
	"github.com/podilnyk/monojar/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// statementFunc implements Ledger with a canned answer.
type statementFunc func(ctx context.Context, token, account string, from, to time.Time) ([]monobank.StatementItem, error)

func (f statementFunc) Statement(ctx context.Context, token, account string, from, to time.Time) ([]monobank.StatementItem, error) {
	return f(ctx, token, account, from, to)
}

func fixedLedger(items ...monobank.StatementItem) statementFunc {
	return func(context.Context, string, string, time.Time, time.Time) ([]monobank.StatementItem, error) {
		return items, nil
	}
}

func newTestService(t *testing.T, repo Repository, ledger Ledger) *Service {
	t.Helper()

	cfg := &config.Config{}
	cfg.JWT.SigningKey = "test-signing-key"
	cfg.JWT.Expiration = time.Hour

	s, err := NewService(repo, ledger, mockTxManager{}, logger.NewForTest(), cfg)
	require.NoError(t, err)

	return s
}

func seedOrder(t *testing.T, repo *mockRepository, jarID string, amount int64, comment string, ts float64) *order.Order {
	t.Helper()

	o := &order.Order{
		JarID:     jarID,
		Amount:    amount,
		Comment:   comment,
		Timestamp: ts,
		Status:    order.CREATED,
	}
	id, err := repo.CreateOrder(context.Background(), o)
	require.NoError(t, err)
	o.ID = id

	return o
}

func TestCreateOrder(t *testing.T) {
	repo := &mockRepository{}
	s := newTestService(t, repo, fixedLedger())

	before := float64(time.Now().UnixNano()) / 1e9
	o, err := s.CreateOrder(context.Background(), "J1", 1000, "gift")
	require.NoError(t, err)

	assert.Equal(t, order.CREATED, o.Status)
	assert.Equal(t, "J1", o.JarID)
	assert.EqualValues(t, 1000, o.Amount)
	assert.GreaterOrEqual(t, o.Timestamp, before)
	assert.Nil(t, o.PaymentID)

	stored, err := repo.GetOrderByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, stored.ID)
}

func TestConfirmMatchesAndPays(t *testing.T) {
	// Scenario: order at t=1000, matching payment at t=2000.
	repo := &mockRepository{}
	s := newTestService(t, repo, fixedLedger(
		monobank.StatementItem{ID: "tx1", Amount: 1000, Comment: "gift", Time: 2000},
	))

	o := seedOrder(t, repo, "J1", 1000, "gift", 1000)

	_, err := s.Ingest(context.Background(), "J1", "token")
	require.NoError(t, err)

	confirmed, err := s.Confirm(context.Background(), o.ID)
	require.NoError(t, err)

	assert.Equal(t, order.PAID, confirmed.Status)
	require.NotNil(t, confirmed.PaymentID)

	p, err := repo.GetPaymentByID(context.Background(), *confirmed.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, "tx1", p.TransactionID)
	require.NotNil(t, p.OrderID)
	assert.Equal(t, o.ID, *p.OrderID)
}

func TestConfirmPaymentPredatesOrder(t *testing.T) {
	// Scenario: payment happened before the order was placed.
	repo := &mockRepository{}
	s := newTestService(t, repo, fixedLedger(
		monobank.StatementItem{ID: "tx1", Amount: 1000, Comment: "gift", Time: 500},
	))

	o := seedOrder(t, repo, "J1", 1000, "gift", 1000)

	_, err := s.Ingest(context.Background(), "J1", "token")
	require.NoError(t, err)

	_, err = s.Confirm(context.Background(), o.ID)
	require.ErrorIs(t, err, errs.ErrPaymentPredatesOrder)

	// The order is untouched and retryable.
	stored, err := repo.GetOrderByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.CREATED, stored.Status)
	assert.Nil(t, stored.PaymentID)
}

func TestConfirmPaymentAtOrderTimestampRejected(t *testing.T) {
	// The temporal check is strict: time == timestamp does not match.
	repo := &mockRepository{}
	s := newTestService(t, repo, fixedLedger(
		monobank.StatementItem{ID: "tx1", Amount: 1000, Comment: "gift", Time: 1000},
	))

	o := seedOrder(t, repo, "J1", 1000, "gift", 1000)

	_, err := s.Ingest(context.Background(), "J1", "token")
	require.NoError(t, err)

	_, err = s.Confirm(context.Background(), o.ID)
	assert.ErrorIs(t, err, errs.ErrPaymentPredatesOrder)
}

func TestIngestIsIdempotent(t *testing.T) {
	// Scenario: the same raw transaction ingested twice.
	repo := &mockRepository{}
	s := newTestService(t, repo, fixedLedger(
		monobank.StatementItem{ID: "tx1", Amount: 1000, Comment: "gift", Time: 2000},
	))

	first, err := s.Ingest(context.Background(), "J1", "token")
	require.NoError(t, err)
	assert.Equal(t, 1, first.Count)

	second, err := s.Ingest(context.Background(), "J1", "token")
	require.NoError(t, err)
	assert.Equal(t, 0, second.Count)
	assert.Empty(t, second.Created)

	// Exactly one row for tx1.
	count := 0
	for _, p := range repo.payments {
		if p.TransactionID == "tx1" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestIngestPropagatesLedgerFailure(t *testing.T) {
	repo := &mockRepository{}
	failing := statementFunc(func(context.Context, string, string, time.Time, time.Time) ([]monobank.StatementItem, error) {
		return nil, errs.ErrUpstreamUnavailable
	})
	s := newTestService(t, repo, failing)

	_, err := s.Ingest(context.Background(), "J1", "token")
	require.ErrorIs(t, err, errs.ErrUpstreamUnavailable)
	assert.Empty(t, repo.payments)
}

func TestConfirmNoMatchingPayment(t *testing.T) {
	repo := &mockRepository{}
	s := newTestService(t, repo, fixedLedger())

	o := seedOrder(t, repo, "J1", 1000, "gift", 1000)

	_, err := s.Confirm(context.Background(), o.ID)
	assert.ErrorIs(t, err, errs.ErrNoMatchingPayment)
}

func TestConfirmFingerprintMustMatchExactly(t *testing.T) {
	repo := &mockRepository{}
	s := newTestService(t, repo, fixedLedger(
		monobank.StatementItem{ID: "tx1", Amount: 1000, Comment: "gift but different", Time: 2000},
		monobank.StatementItem{ID: "tx2", Amount: 999, Comment: "gift", Time: 2000},
		monobank.StatementItem{ID: "tx3", Amount: 1000, Comment: "gift", Time: 2000},
	))

	o := seedOrder(t, repo, "J1", 1000, "gift", 1000)

	_, err := s.Ingest(context.Background(), "J1", "token")
	require.NoError(t, err)

	confirmed, err := s.Confirm(context.Background(), o.ID)
	require.NoError(t, err)

	p, err := repo.GetPaymentByID(context.Background(), *confirmed.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, "tx3", p.TransactionID)
}

func TestConfirmNotFound(t *testing.T) {
	// Scenario: nonexistent order id, no store mutation.
	repo := &mockRepository{}
	s := newTestService(t, repo, fixedLedger())

	_, err := s.Confirm(context.Background(), 42)
	require.ErrorIs(t, err, errs.ErrNotFound)
	assert.Empty(t, repo.orders)
	assert.Empty(t, repo.payments)
}

func TestConfirmIsNonRegressive(t *testing.T) {
	repo := &mockRepository{}
	s := newTestService(t, repo, fixedLedger(
		monobank.StatementItem{ID: "tx1", Amount: 1000, Comment: "gift", Time: 2000},
	))

	o := seedOrder(t, repo, "J1", 1000, "gift", 1000)

	_, err := s.Ingest(context.Background(), "J1", "token")
	require.NoError(t, err)

	_, err = s.Confirm(context.Background(), o.ID)
	require.NoError(t, err)

	// Second confirmation of a paid order must not mutate it.
	_, err = s.Confirm(context.Background(), o.ID)
	require.ErrorIs(t, err, errs.ErrAlreadyFinalized)

	stored, err := repo.GetOrderByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.PAID, stored.Status)
}

func TestConfirmRejectsCanceledOrder(t *testing.T) {
	statuses := []order.Status{
		order.CanceledBySystem,
		order.CanceledByClient,
		order.CanceledByDataUpdate,
		order.CanceledByAdmin,
	}

	for _, status := range statuses {
		t.Run(string(status), func(t *testing.T) {
			repo := &mockRepository{}
			s := newTestService(t, repo, fixedLedger())

			o := seedOrder(t, repo, "J1", 1000, "gift", 1000)
			repo.orders[0].Status = status

			_, err := s.Confirm(context.Background(), o.ID)
			assert.ErrorIs(t, err, errs.ErrAlreadyFinalized)
		})
	}
}

func TestTwoOrdersOnePayment(t *testing.T) {
	// Scenario: two orders with identical fingerprints compete for a
	// single payment. Exactly one may win.
	repo := &mockRepository{}
	s := newTestService(t, repo, fixedLedger(
		monobank.StatementItem{ID: "tx1", Amount: 1000, Comment: "gift", Time: 2000},
	))

	first := seedOrder(t, repo, "J1", 1000, "gift", 1000)
	second := seedOrder(t, repo, "J1", 1000, "gift", 1100)

	_, err := s.Ingest(context.Background(), "J1", "token")
	require.NoError(t, err)

	_, err = s.Confirm(context.Background(), first.ID)
	require.NoError(t, err)

	_, err = s.Confirm(context.Background(), second.ID)
	require.Error(t, err)
	assert.True(t,
		errors.Is(err, errs.ErrNoMatchingPayment) || errors.Is(err, errs.ErrAlreadyLinked),
		"want NoMatchingPayment or AlreadyLinked, got %v", err)

	stored, err := repo.GetOrderByID(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, order.CREATED, stored.Status)
}

func TestConfirmLinkRace(t *testing.T) {
	// The fingerprint read succeeds for both, but the conditional link
	// update lets only the first writer through.
	repo := &mockRepository{}
	s := newTestService(t, repo, fixedLedger(
		monobank.StatementItem{ID: "tx1", Amount: 1000, Comment: "gift", Time: 2000},
	))

	winner := seedOrder(t, repo, "J1", 1000, "gift", 1000)
	loser := seedOrder(t, repo, "J1", 1000, "gift", 1100)

	_, err := s.Ingest(context.Background(), "J1", "token")
	require.NoError(t, err)

	// Simulate the interleaving: the loser read the payment before the
	// winner linked it.
	p, err := repo.GetUnlinkedPaymentByFingerprint(context.Background(), "J1", 1000, "gift")
	require.NoError(t, err)

	require.NoError(t, repo.LinkPaymentToOrder(context.Background(), p.ID, winner.ID))

	err = repo.LinkPaymentToOrder(context.Background(), p.ID, loser.ID)
	assert.ErrorIs(t, err, errs.ErrAlreadyLinked)
}

func TestSearchPaymentSigned(t *testing.T) {
	repo := &mockRepository{}
	s := newTestService(t, repo, fixedLedger(
		monobank.StatementItem{ID: "tx1", Amount: 1000, Comment: "gift", Time: 2000},
	))

	_, err := s.Ingest(context.Background(), "J1", "token")
	require.NoError(t, err)

	signed, err := s.SearchPayment(context.Background(), "J1", 1000, "gift")
	require.NoError(t, err)

	assert.Equal(t, "tx1", signed.Data.TransactionID)
	assert.NotEmpty(t, signed.Signature)
}

func TestDeletePaidOrderKeepsPaymentLinked(t *testing.T) {
	// A paid order must not be deletable: freeing its payment would let
	// a second order with the same fingerprint consume the same bank
	// transaction twice.
	repo := &mockRepository{}
	s := newTestService(t, repo, fixedLedger(
		monobank.StatementItem{ID: "tx1", Amount: 1000, Comment: "gift", Time: 2000},
	))

	paid := seedOrder(t, repo, "J1", 1000, "gift", 1000)

	_, err := s.Ingest(context.Background(), "J1", "token")
	require.NoError(t, err)

	confirmed, err := s.Confirm(context.Background(), paid.ID)
	require.NoError(t, err)

	err = s.DeleteOrder(context.Background(), paid.ID)
	require.ErrorIs(t, err, errs.ErrDataConflict)

	// The order survives and its payment stays claimed.
	stored, err := repo.GetOrderByID(context.Background(), paid.ID)
	require.NoError(t, err)
	assert.Equal(t, order.PAID, stored.Status)

	p, err := repo.GetPaymentByID(context.Background(), *confirmed.PaymentID)
	require.NoError(t, err)
	require.NotNil(t, p.OrderID)
	assert.Equal(t, paid.ID, *p.OrderID)

	// No unclaimed payment with that fingerprint remains for another
	// order to match.
	rival := seedOrder(t, repo, "J1", 1000, "gift", 1100)
	_, err = s.Confirm(context.Background(), rival.ID)
	assert.ErrorIs(t, err, errs.ErrNoMatchingPayment)
}

func TestDeleteOrder(t *testing.T) {
	repo := &mockRepository{}
	s := newTestService(t, repo, fixedLedger())

	o := seedOrder(t, repo, "J1", 1000, "gift", 1000)

	require.NoError(t, s.DeleteOrder(context.Background(), o.ID))

	_, err := s.GetOrder(context.Background(), o.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	assert.ErrorIs(t, s.DeleteOrder(context.Background(), o.ID), errs.ErrNotFound)
}
