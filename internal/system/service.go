package system

import (
	"context"
	"fmt"

	"github.com/podilnyk/monojar/internal/models/errs"
	"github.com/podilnyk/monojar/internal/monobank"
	"github.com/podilnyk/monojar/pkg/logger"
	"github.com/shopspring/decimal"
)

// Bank exposes the account metadata endpoint of the ledger provider.
type Bank interface {
	ClientInfo(ctx context.Context, token string) (*monobank.ClientInfo, error)
}

// JarInfo is a donation jar with its balance and goal converted from
// minor units to decimal currency amounts.
type JarInfo struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Balance     decimal.Decimal `json:"balance"`
	Goal        decimal.Decimal `json:"goal"`
	Progress    decimal.Decimal `json:"progress"`
}

type Service struct {
	bank   Bank
	logger logger.Logger
}

func NewService(bank Bank, logger logger.Logger) (*Service, error) {
	if bank == nil {
		return nil, fmt.Errorf("nil dependency: bank client")
	}
	return &Service{bank: bank, logger: logger}, nil
}

// minorUnits is the scale of the provider's integer amounts.
var minorUnits = decimal.NewFromInt(100)

// Jars lists the donation jars visible to the token owner.
func (s *Service) Jars(ctx context.Context, token string) ([]JarInfo, error) {
	info, err := s.bank.ClientInfo(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("client info: %w", err)
	}

	if len(info.Jars) == 0 {
		return nil, fmt.Errorf("%w: account has no jars", errs.ErrNotFound)
	}

	jars := make([]JarInfo, 0, len(info.Jars))
	for _, jar := range info.Jars {
		ji := JarInfo{
			ID:          jar.ID,
			Title:       jar.Title,
			Description: jar.Description,
			Balance:     decimal.NewFromInt(jar.Balance).Div(minorUnits),
			Goal:        decimal.NewFromInt(jar.Goal).Div(minorUnits),
		}
		// Open-ended jars have no goal to make progress against.
		if jar.Goal > 0 {
			ji.Progress = decimal.NewFromInt(jar.Balance).
				Div(decimal.NewFromInt(jar.Goal)).
				Round(4)
		}
		jars = append(jars, ji)
	}

	return jars, nil
}
