package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Tier is a subscription plan.
type Tier string

const (
	Starter    Tier = "starter"
	Growth     Tier = "growth"
	Enterprise Tier = "enterprise"
)

var (
	ErrUnknownTier       = errors.New("unknown tier")
	ErrBusinessLimit     = errors.New("business limit reached for tier")
	ErrSubscriptionEnded = errors.New("subscription expired")
	ErrEmptyTenant       = errors.New("empty tenant id")
)

type tierPlan struct {
	price         decimal.Decimal
	maxBusinesses int // 0 means unlimited
}

var tierPlans = map[Tier]tierPlan{
	Starter:    {price: decimal.NewFromInt(29), maxBusinesses: 1},
	Growth:     {price: decimal.NewFromInt(79), maxBusinesses: 5},
	Enterprise: {price: decimal.NewFromInt(199)},
}

// Tiers lists plans from smallest to largest.
func Tiers() []Tier {
	return []Tier{Starter, Growth, Enterprise}
}

func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := tierPlans[t]; !ok {
		return "", ErrUnknownTier
	}
	return t, nil
}

// MonthlyPrice returns the plan price, zero for unknown tiers.
func (t Tier) MonthlyPrice() decimal.Decimal {
	return tierPlans[t].price
}

// MaxBusinesses returns the business-unit cap; 0 means unlimited.
func (t Tier) MaxBusinesses() int {
	return tierPlans[t].maxBusinesses
}

// AllowsBusinesses reports whether an org on this tier may own n businesses.
func (t Tier) AllowsBusinesses(n int) bool {
	plan, ok := tierPlans[t]
	if !ok {
		return false
	}
	return plan.maxBusinesses == 0 || n <= plan.maxBusinesses
}

// Tenant is a paying organization, the root of data isolation.
type Tenant struct {
	ID        string
	Name      string
	Tier      Tier
	Active    bool
	ExpiresAt time.Time // zero means no expiry
}

func (t Tenant) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrEmptyTenant
	}
	if _, ok := tierPlans[t.Tier]; !ok {
		return ErrUnknownTier
	}
	if len(t.Name) > 120 {
		return ErrNameLength
	}
	return nil
}

// PaysAt reports whether the tenant counts toward MRR at now.
func (t Tenant) PaysAt(now time.Time) bool {
	if !t.Active {
		return false
	}
	return t.ExpiresAt.IsZero() || t.ExpiresAt.After(now)
}

// CanAddBusiness checks the tier cap and subscription state before the org
// grows from current to current+1 businesses.
func (t Tenant) CanAddBusiness(current int, now time.Time) error {
	if !t.PaysAt(now) {
		return ErrSubscriptionEnded
	}
	if !t.Tier.AllowsBusinesses(current + 1) {
		return ErrBusinessLimit
	}
	return nil
}

// MRRBucket is the revenue contributed by one tier.
type MRRBucket struct {
	Tier    Tier
	Tenants int
	MRR     decimal.Decimal
}

// MRRReport is monthly recurring revenue by tier. Buckets follow Tiers() order
// and are present even when empty.
type MRRReport struct {
	Buckets       []MRRBucket
	Total         decimal.Decimal
	ActiveTenants int
}

// ComputeMRR sums the tier price of every tenant paying at now.
func ComputeMRR(tenants []Tenant, now time.Time) MRRReport {
	buckets := make(map[Tier]*MRRBucket, len(tierPlans))
	for _, tier := range Tiers() {
		buckets[tier] = &MRRBucket{Tier: tier}
	}

	var report MRRReport
	for _, t := range tenants {
		b, ok := buckets[t.Tier]
		if !ok || !t.PaysAt(now) {
			continue
		}
		b.Tenants++
		b.MRR = b.MRR.Add(t.Tier.MonthlyPrice())
		report.ActiveTenants++
		report.Total = report.Total.Add(t.Tier.MonthlyPrice())
	}

	for _, tier := range Tiers() {
		report.Buckets = append(report.Buckets, *buckets[tier])
	}
	return report
}
