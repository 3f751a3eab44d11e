package reconcile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/podilnyk/monojar/internal/models/errs"
	"github.com/podilnyk/monojar/internal/models/order"
	"github.com/podilnyk/monojar/internal/models/payment"
	"github.com/podilnyk/monojar/pkg/logger"
)

type Repository interface {
	CreateOrder(ctx context.Context, o *order.Order) (int, error)
	GetOrderByID(ctx context.Context, id int) (*order.Order, error)
	DeleteOrder(ctx context.Context, id int) error
	// MarkOrderPaid sets status=paid and the payment link in one
	// conditional update. Zero rows affected means the order has
	// already left the created state.
	MarkOrderPaid(ctx context.Context, orderID, paymentID int) error

	// InsertPaymentIfAbsent persists the payment unless a row with the
	// same monobank transaction id exists. Returns (nil, nil) when the
	// transaction is already present.
	InsertPaymentIfAbsent(ctx context.Context, p *payment.Payment) (*payment.Payment, error)
	GetPaymentByID(ctx context.Context, id int) (*payment.Payment, error)
	// GetUnlinkedPaymentByFingerprint returns the earliest unclaimed
	// payment matching (jar_id, amount, comment) by insertion order.
	GetUnlinkedPaymentByFingerprint(ctx context.Context, jarID string, amount int64, comment string) (*payment.Payment, error)
	// LinkPaymentToOrder claims the payment for the order. The update
	// is conditional on the payment being unclaimed; losing the race
	// yields ErrAlreadyLinked.
	LinkPaymentToOrder(ctx context.Context, paymentID, orderID int) error
}

type Repo struct {
	db     *sql.DB
	getter *trmsql.CtxGetter
	logger logger.Logger
}

func NewRepository(db *sql.DB, getter *trmsql.CtxGetter, logger logger.Logger) (*Repo, error) {
	if db == nil {
		return nil, errors.New("nil dependency: database")
	}
	if getter == nil {
		return nil, errors.New("nil dependency: transaction getter")
	}

	return &Repo{db: db, getter: getter, logger: logger}, nil
}

var _ Repository = (*Repo)(nil)

func (r *Repo) CreateOrder(ctx context.Context, o *order.Order) (int, error) {
	const query = `
		INSERT INTO orders (jar_id, amount, comment, timestamp, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id;
	`

	var id int

	err := r.getter.DefaultTrOrDB(ctx, r.db).
		QueryRowContext(ctx, query, o.JarID, o.Amount, o.Comment, o.Timestamp, o.Status).
		Scan(&id)
	if err != nil {
		return -1, fmt.Errorf("create order: %w", err)
	}

	return id, nil
}

func (r *Repo) GetOrderByID(ctx context.Context, id int) (*order.Order, error) {
	const query = `
		SELECT id, jar_id, amount, comment, timestamp, status, payment_id
		FROM orders WHERE id = $1;
	`

	o := new(order.Order)

	err := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&o.ID,
		&o.JarID,
		&o.Amount,
		&o.Comment,
		&o.Timestamp,
		&o.Status,
		&o.PaymentID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}

	return o, nil
}

func (r *Repo) DeleteOrder(ctx context.Context, id int) error {
	// A paid order owns its linked payment; deleting it would release
	// the payment back into the matching pool.
	const query = "DELETE FROM orders WHERE id = $1 AND status != 'paid';"

	res, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, err := r.GetOrderByID(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: order %d is paid", errs.ErrDataConflict, id)
	}

	return nil
}

func (r *Repo) MarkOrderPaid(ctx context.Context, orderID, paymentID int) error {
	const query = `
		UPDATE orders SET status = 'paid', payment_id = $2
		WHERE id = $1 AND status = 'created';
	`

	res, err := r.getter.DefaultTrOrDB(ctx, r.db).
		ExecContext(ctx, query, orderID, paymentID)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errs.ErrAlreadyFinalized
	}

	return nil
}

func (r *Repo) InsertPaymentIfAbsent(ctx context.Context, p *payment.Payment) (*payment.Payment, error) {
	const query = `
		INSERT INTO payments (jar_id, monobank_transaction_id, amount, description, comment, time)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (monobank_transaction_id) DO NOTHING
		RETURNING id;
	`

	var id int

	err := r.getter.DefaultTrOrDB(ctx, r.db).
		QueryRowContext(ctx, query,
			p.JarID, p.TransactionID, p.Amount, p.Description, p.Comment, p.Time).
		Scan(&id)
	if err != nil {
		// No row returned means the conflict branch fired: the
		// transaction is already in the register.
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		// A concurrent insert may surface as a unique violation
		// instead of a silent conflict. Same meaning.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, nil
		}
		return nil, fmt.Errorf("insert payment: %w", err)
	}

	created := *p
	created.ID = id

	return &created, nil
}

func (r *Repo) GetPaymentByID(ctx context.Context, id int) (*payment.Payment, error) {
	const query = `
		SELECT id, jar_id, monobank_transaction_id, amount, description, comment, time, order_id
		FROM payments WHERE id = $1;
	`

	return r.scanPayment(r.getter.DefaultTrOrDB(ctx, r.db).QueryRowContext(ctx, query, id))
}

func (r *Repo) GetUnlinkedPaymentByFingerprint(ctx context.Context, jarID string, amount int64, comment string) (*payment.Payment, error) {
	const query = `
		SELECT id, jar_id, monobank_transaction_id, amount, description, comment, time, order_id
		FROM payments
		WHERE jar_id = $1 AND amount = $2 AND comment = $3 AND order_id IS NULL
		ORDER BY id
		LIMIT 1;
	`

	return r.scanPayment(r.getter.DefaultTrOrDB(ctx, r.db).
		QueryRowContext(ctx, query, jarID, amount, comment))
}

func (r *Repo) LinkPaymentToOrder(ctx context.Context, paymentID, orderID int) error {
	const query = `
		UPDATE payments SET order_id = $2
		WHERE id = $1 AND order_id IS NULL;
	`

	res, err := r.getter.DefaultTrOrDB(ctx, r.db).
		ExecContext(ctx, query, paymentID, orderID)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Either the payment vanished or another order claimed it
		// between our read and this update.
		p, err := r.GetPaymentByID(ctx, paymentID)
		if err != nil {
			return err
		}
		if p.LinkedTo(orderID) {
			return nil
		}
		return errs.ErrAlreadyLinked
	}

	return nil
}

func (r *Repo) scanPayment(row *sql.Row) (*payment.Payment, error) {
	p := new(payment.Payment)

	err := row.Scan(
		&p.ID,
		&p.JarID,
		&p.TransactionID,
		&p.Amount,
		&p.Description,
		&p.Comment,
		&p.Time,
		&p.OrderID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}

	return p, nil
}
