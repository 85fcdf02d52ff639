package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MovementKind classifies a stock change.
type MovementKind string

const (
	Restock    MovementKind = "restock"
	SaleOut    MovementKind = "sale"
	Adjustment MovementKind = "adjustment"
	Waste      MovementKind = "waste"
)

var (
	ErrUnknownMovement = errors.New("unknown movement kind")
	ErrEmptyItem       = errors.New("empty item")
)

func ParseMovementKind(s string) (MovementKind, error) {
	switch k := MovementKind(strings.ToLower(strings.TrimSpace(s))); k {
	case Restock, SaleOut, Adjustment, Waste:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMovement, s)
	}
}

// InventoryMovement is a change to the on-hand quantity of one item.
// Quantity is entered positive; Delta applies the sign implied by Kind.
// Adjustments carry their own sign.
type InventoryMovement struct {
	ID         string
	OrgID      string
	BusinessID string
	Item       string
	Kind       MovementKind
	Quantity   decimal.Decimal
	UnitCost   decimal.Decimal
	At         time.Time
	Note       string
}

// Delta is the signed change in stock.
func (m InventoryMovement) Delta() decimal.Decimal {
	switch m.Kind {
	case SaleOut, Waste:
		return m.Quantity.Abs().Neg()
	case Restock:
		return m.Quantity.Abs()
	default:
		return m.Quantity
	}
}

func (m InventoryMovement) Validate() error {
	if strings.TrimSpace(m.BusinessID) == "" {
		return ErrEmptyBusiness
	}
	if strings.TrimSpace(m.Item) == "" {
		return ErrEmptyItem
	}
	if _, err := ParseMovementKind(string(m.Kind)); err != nil {
		return err
	}
	if m.Quantity.IsZero() {
		return ErrInvalidAmount
	}
	if m.Kind != Adjustment && m.Quantity.IsNegative() {
		return ErrInvalidAmount
	}
	if m.UnitCost.IsNegative() {
		return ErrInvalidAmount
	}
	if m.At.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// StockLevel is the on-hand quantity of one item at one business.
type StockLevel struct {
	BusinessID string
	Item       string
	OnHand     decimal.Decimal
	LastMoved  time.Time
}

// StockLevels folds movements into current quantities, sorted by business then
// item. Item names are matched case-insensitively; the first spelling seen wins.
func StockLevels(movements []InventoryMovement, scope Scope, businessFilter string) []StockLevel {
	type key struct{ business, item string }
	levels := make(map[key]*StockLevel)
	for _, m := range movements {
		if !MatchesBusiness(businessFilter, m.BusinessID) || !scope.Allows(m.BusinessID) {
			continue
		}
		k := key{m.BusinessID, strings.ToLower(strings.TrimSpace(m.Item))}
		lvl, ok := levels[k]
		if !ok {
			lvl = &StockLevel{BusinessID: m.BusinessID, Item: strings.TrimSpace(m.Item)}
			levels[k] = lvl
		}
		lvl.OnHand = lvl.OnHand.Add(m.Delta())
		if m.At.After(lvl.LastMoved) {
			lvl.LastMoved = m.At
		}
	}

	out := make([]StockLevel, 0, len(levels))
	for _, lvl := range levels {
		out = append(out, *lvl)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BusinessID != out[j].BusinessID {
			return out[i].BusinessID < out[j].BusinessID
		}
		return strings.ToLower(out[i].Item) < strings.ToLower(out[j].Item)
	})
	return out
}
