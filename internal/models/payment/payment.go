package payment

// Payment is an ingested ledger transaction. Rows are immutable except
// for OrderID, which is set exactly once by the reconciliation link step.
type Payment struct {
	JarID         string `db:"jar_id" json:"jar_id"`
	TransactionID string `db:"monobank_transaction_id" json:"monobank_transaction_id"`
	Description   string `db:"description" json:"description,omitempty"`
	Comment       string `db:"comment" json:"comment,omitempty"`
	Amount        int64  `db:"amount" json:"amount"`
	Time          int64  `db:"time" json:"time"`
	OrderID       *int   `db:"order_id" json:"order_id,omitempty"`
	ID            int    `db:"id" json:"id"`
}

// LinkedTo reports whether the payment has been claimed by the given order.
func (p *Payment) LinkedTo(orderID int) bool {
	return p.OrderID != nil && *p.OrderID == orderID
}
