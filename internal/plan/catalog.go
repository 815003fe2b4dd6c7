package plan

import "afiliapix/internal/money"

const (
	StandardID = "standard"
	PremiumID  = "premium"

	// PlanNone is the state of an account before its first settled charge.
	PlanNone = "nenhum"
)

// Withdrawal constants live next to the catalog: both are fixed
// product parameters changed only by deployment.
const (
	WithdrawalFee money.Centavos = 490
	MinWithdrawal money.Centavos = 5000
)

type Plan struct {
	ID           string
	Price        money.Centavos
	CommissionL1 money.Centavos
	CommissionL2 money.Centavos
}

type Catalog struct {
	byID    map[string]Plan
	byPrice map[money.Centavos]Plan
}

// DefaultCatalog returns the fixed two-plan catalog.
func DefaultCatalog() *Catalog {
	plans := []Plan{
		{ID: StandardID, Price: 1990, CommissionL1: 600, CommissionL2: 300},
		{ID: PremiumID, Price: 2990, CommissionL1: 1000, CommissionL2: 400},
	}
	c := &Catalog{
		byID:    make(map[string]Plan, len(plans)),
		byPrice: make(map[money.Centavos]Plan, len(plans)),
	}
	for _, p := range plans {
		c.byID[p.ID] = p
		c.byPrice[p.Price] = p
	}
	return c
}

func (c *Catalog) ByID(id string) (Plan, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// ByPrice matches a paid amount against the catalog. Equality is
// exact: a settlement for any other amount is rejected upstream.
func (c *Catalog) ByPrice(amount money.Centavos) (Plan, bool) {
	p, ok := c.byPrice[amount]
	return p, ok
}
