package order

type Status string

// Only the created -> paid transition is performed by this service.
// The cancellation statuses are written by external tooling and are
// terminal as far as reconciliation is concerned.
const (
	CREATED              Status = "created"
	PAID                 Status = "paid"
	CanceledBySystem     Status = "canceled_by_system"
	CanceledByClient     Status = "canceled_by_client"
	CanceledByDataUpdate Status = "canceled_by_data_update"
	CanceledByAdmin      Status = "canceled_by_admin"
)

// Order is an expected donation to a jar. Fields aligned for the GC
// optimal scanning.
type Order struct {
	JarID     string  `db:"jar_id" json:"jar_id"`
	Comment   string  `db:"comment" json:"comment"`
	Status    Status  `db:"status" json:"status"`
	Timestamp float64 `db:"timestamp" json:"timestamp"`
	Amount    int64   `db:"amount" json:"amount"`
	PaymentID *int    `db:"payment_id" json:"payment_id,omitempty"`
	ID        int     `db:"id" json:"id"`
}

// Final reports whether the order has left the initial state.
func (o *Order) Final() bool {
	return o.Status != CREATED
}
