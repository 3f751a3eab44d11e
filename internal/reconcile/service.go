package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/podilnyk/monojar/internal/config"
	"github.com/podilnyk/monojar/internal/jwt"
	"github.com/podilnyk/monojar/internal/models/errs"
	"github.com/podilnyk/monojar/internal/models/order"
	"github.com/podilnyk/monojar/internal/models/payment"
	"github.com/podilnyk/monojar/internal/monobank"
	"github.com/podilnyk/monojar/pkg/logger"
)

// Ledger fetches a jar's transaction statement from the bank.
type Ledger interface {
	Statement(ctx context.Context, token, account string, from, to time.Time) ([]monobank.StatementItem, error)
}

// TxManager runs a function inside a database transaction.
// Satisfied by the go-transaction-manager Manager.
type TxManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// IngestResult reports what a single ledger pull brought in.
type IngestResult struct {
	Created []*payment.Payment `json:"created_records"`
	Count   int                `json:"created_count"`
}

// SignedPayment is a payment search answer with a verifiable signature.
type SignedPayment struct {
	Data      *payment.Payment `json:"data"`
	Signature string           `json:"signature"`
}

// Service is the reconciliation engine: it ingests the bank ledger
// into the payment register and matches pending orders against it.
type Service struct {
	repo   Repository
	ledger Ledger
	trm    TxManager
	logger logger.Logger
	config *config.Config
}

func NewService(
	repo Repository,
	ledger Ledger,
	trm TxManager,
	logger logger.Logger,
	config *config.Config,
) (*Service, error) {
	if config == nil {
		return nil, errors.New("nil dependency: config")
	}
	if trm == nil {
		return nil, errors.New("nil dependency: transaction manager")
	}
	if ledger == nil {
		return nil, errors.New("nil dependency: ledger client")
	}

	return &Service{
		repo:   repo,
		ledger: ledger,
		trm:    trm,
		logger: logger,
		config: config,
	}, nil
}

// CreateOrder registers an expected donation. The order starts in the
// created state stamped with the current time.
func (s *Service) CreateOrder(ctx context.Context, jarID string, amount int64, comment string) (*order.Order, error) {
	o := &order.Order{
		JarID:     jarID,
		Amount:    amount,
		Comment:   comment,
		Timestamp: float64(time.Now().UnixNano()) / 1e9,
		Status:    order.CREATED,
	}

	id, err := s.repo.CreateOrder(ctx, o)
	if err != nil {
		return nil, err
	}
	o.ID = id

	s.logger.With(ctx, "order", id, "jar", jarID).Info("order created")

	return o, nil
}

// GetOrder loads an order by id.
func (s *Service) GetOrder(ctx context.Context, id int) (*order.Order, error) {
	return s.repo.GetOrderByID(ctx, id)
}

// DeleteOrder removes an order from the register.
func (s *Service) DeleteOrder(ctx context.Context, id int) error {
	return s.repo.DeleteOrder(ctx, id)
}

// Ingest pulls the jar's ledger window and stores every transaction not
// seen before. Safe to call repeatedly with overlapping windows: the
// register is keyed by the bank's transaction id.
func (s *Service) Ingest(ctx context.Context, jarID, token string) (*IngestResult, error) {
	items, err := s.ledger.Statement(ctx, token, jarID, time.Time{}, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("fetch statement: %w", err)
	}

	result := &IngestResult{Created: make([]*payment.Payment, 0, len(items))}

	for _, item := range items {
		created, err := s.repo.InsertPaymentIfAbsent(ctx, &payment.Payment{
			JarID:         jarID,
			TransactionID: item.ID,
			Amount:        item.Amount,
			Description:   item.Description,
			Comment:       item.Comment,
			Time:          item.Time,
		})
		if err != nil {
			return nil, err
		}
		if created != nil {
			result.Created = append(result.Created, created)
		}
	}

	result.Count = len(result.Created)

	s.logger.With(ctx, "jar", jarID, "fetched", len(items), "created", result.Count).
		Info("ledger ingested")

	return result, nil
}

// Confirm matches the order against the payment register and, on
// success, marks it paid and links it to the matched payment. The
// check-then-link step runs inside one database transaction; losing a
// race for the payment surfaces as ErrAlreadyLinked.
func (s *Service) Confirm(ctx context.Context, orderID int) (*order.Order, error) {
	o, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if o.Final() {
		return nil, fmt.Errorf("%w: order %d is %s", errs.ErrAlreadyFinalized, o.ID, o.Status)
	}

	p, err := s.repo.GetUnlinkedPaymentByFingerprint(ctx, o.JarID, o.Amount, o.Comment)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.ErrNoMatchingPayment
		}
		return nil, err
	}

	// A payment can only satisfy an order placed before it occurred.
	if float64(p.Time) <= o.Timestamp {
		return nil, fmt.Errorf("%w: payment at %d, order at %f",
			errs.ErrPaymentPredatesOrder, p.Time, o.Timestamp)
	}

	if p.OrderID != nil && *p.OrderID != o.ID {
		return nil, errs.ErrAlreadyLinked
	}

	err = s.trm.Do(ctx, func(ctx context.Context) error {
		if err := s.repo.LinkPaymentToOrder(ctx, p.ID, o.ID); err != nil {
			return err
		}
		return s.repo.MarkOrderPaid(ctx, o.ID, p.ID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.With(ctx, "order", o.ID, "payment", p.ID, "transaction", p.TransactionID).
		Info("order confirmed")

	return s.repo.GetOrderByID(ctx, orderID)
}

// SearchPayment is an exact fingerprint lookup against the register.
// The answer carries a signature so that it can be handed to third
// parties and verified later.
func (s *Service) SearchPayment(ctx context.Context, jarID string, amount int64, comment string) (*SignedPayment, error) {
	p, err := s.repo.GetUnlinkedPaymentByFingerprint(ctx, jarID, amount, comment)
	if err != nil {
		return nil, err
	}

	signature, err := jwt.SignPayload(map[string]interface{}{
		"monobank_transaction_id": p.TransactionID,
		"jar_id":                  p.JarID,
		"amount":                  p.Amount,
		"time":                    p.Time,
	}, s.config.JWT.SigningKey, s.config.JWT.Expiration)
	if err != nil {
		return nil, fmt.Errorf("sign payment: %w", err)
	}

	return &SignedPayment{Data: p, Signature: signature}, nil
}
