package admin

import (
	"context"
	"time"
)

// Capability gates an administrative operation.
type Capability string

const (
	OrdersWrite       Capability = "orders:write"
	AdminsManage      Capability = "admins:manage"
	PermissionsManage Capability = "permissions:manage"
)

// Admin description. Fields aligned for the GC optimal scanning.
type Admin struct {
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	Name      string    `db:"name" json:"name"`
	Password  string    `db:"password" json:"-"`
	ID        int       `db:"id" json:"id"`
}

// key is an unexported type for keys defined in this package.
// This prevents collisions with keys defined in other packages.
type key int

// adminKey is the key for admin.Admin values in Contexts. It is
// unexported; clients use admin.NewContext and admin.FromContext
// instead of using this key directly.
var adminKey key

// NewContext returns a new Context that carries value a.
func NewContext(ctx context.Context, a *Admin) context.Context {
	return context.WithValue(ctx, adminKey, a)
}

// FromContext returns the Admin value stored in ctx, if any.
func FromContext(ctx context.Context) (*Admin, bool) {
	a, ok := ctx.Value(adminKey).(*Admin)
	return a, ok
}
