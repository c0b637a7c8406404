// Package quota enforces the per-tier ceiling on projects an owner may hold.
package quota

import (
	"errors"
	"fmt"
	"math"

	"zerodb/errs"
	"zerodb/models"
)

// Unlimited is the enterprise sentinel limit.
const Unlimited = math.MaxInt32

// DefaultSupportContact is used in limit messages when no contact is configured.
const DefaultSupportContact = "support@ainative.studio"

// Limits maps each tier to its project ceiling.
type Limits map[models.Tier]int

// DefaultLimits returns the fixed tier table.
func DefaultLimits() Limits {
	return Limits{
		models.TierFree:         3,
		models.TierStarter:      10,
		models.TierProfessional: 50,
		models.TierEnterprise:   Unlimited,
	}
}

// Merge returns a copy of l with overrides applied. Raw keys go through
// ParseTier so "PRO" overrides professional.
func (l Limits) Merge(overrides map[string]int) (Limits, error) {
	merged := make(Limits, len(l))
	for tier, limit := range l {
		merged[tier] = limit
	}

	for raw, limit := range overrides {
		tier, err := models.ParseTier(raw)
		if err != nil {
			return nil, fmt.Errorf("tier limit override: %w", err)
		}
		if limit < 0 {
			return nil, fmt.Errorf("tier limit override for %s must not be negative", tier)
		}
		merged[tier] = limit
	}

	return merged, nil
}

// Guard validates project creation against the tier table.
// It performs no locking; callers serialize Check per owner.
type Guard struct {
	limits         Limits
	supportContact string
}

// NewGuard creates a Guard. Tiers missing from limits fall back to the default table.
func NewGuard(limits Limits, supportContact string) *Guard {
	merged := DefaultLimits()
	for tier, limit := range limits {
		merged[tier] = limit
	}
	if supportContact == "" {
		supportContact = DefaultSupportContact
	}
	return &Guard{limits: merged, supportContact: supportContact}
}

// Limit returns the ceiling for tier.
func (g *Guard) Limit(tier models.Tier) int {
	return g.limits[tier]
}

// Check parses rawTier and verifies currentCount is below its limit.
// Returns the normalized tier when creation may proceed.
//
// Failures:
//   - unknown tier: INVALID_TIER (422), detail lists the valid tiers
//   - currentCount >= limit: PROJECT_LIMIT_EXCEEDED (429), detail carries
//     the tier, current/limit and the suggested next tier
func (g *Guard) Check(rawTier string, currentCount int) (models.Tier, error) {
	tier, err := models.ParseTier(rawTier)
	if err != nil {
		var invalid *models.InvalidTierError
		if errors.As(err, &invalid) {
			return "", errs.InvalidTier(fmt.Sprintf(
				"Invalid tier '%s'. Valid tiers are: %s.", invalid.Value, models.TierNames()))
		}
		return "", err
	}

	limit := g.Limit(tier)
	if currentCount >= limit {
		return "", errs.ProjectLimitExceeded(g.limitMessage(tier, currentCount, limit))
	}

	return tier, nil
}

func (g *Guard) limitMessage(tier models.Tier, current, limit int) string {
	msg := fmt.Sprintf("Project limit exceeded for tier '%s'. Current projects: %d/%d.",
		tier, current, limit)

	if next, ok := tier.Next(); ok {
		return fmt.Sprintf("%s Please upgrade to '%s' tier for a higher project limit.", msg, next)
	}
	return fmt.Sprintf("%s Please contact %s to raise your project limit.", msg, g.supportContact)
}
