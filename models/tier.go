package models

import (
	"fmt"
	"strings"
)

// Tier is a named service plan controlling the project-count ceiling.
type Tier string

const (
	TierFree         Tier = "free"
	TierStarter      Tier = "starter"
	TierProfessional Tier = "professional"
	TierEnterprise   Tier = "enterprise"
)

// Tiers lists every tier in ascending order.
var Tiers = []Tier{TierFree, TierStarter, TierProfessional, TierEnterprise}

// tierAliases maps accepted spellings onto their canonical tier.
var tierAliases = map[string]Tier{
	"pro": TierProfessional,
}

// InvalidTierError is returned by ParseTier for values outside the closed set.
type InvalidTierError struct {
	Value string
}

func (e *InvalidTierError) Error() string {
	return fmt.Sprintf("invalid tier %q", e.Value)
}

// ParseTier trims and lowercases raw and resolves it to a canonical Tier.
//
// Examples:
//
//	"FREE "  → free
//	"Pro"    → professional
//	"gold"   → *InvalidTierError
func ParseTier(raw string) (Tier, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))

	if alias, ok := tierAliases[normalized]; ok {
		return alias, nil
	}

	for _, tier := range Tiers {
		if string(tier) == normalized {
			return tier, nil
		}
	}

	return "", &InvalidTierError{Value: raw}
}

// Valid reports whether t is one of the canonical tiers.
func (t Tier) Valid() bool {
	return t.rank() >= 0
}

// Next returns the tier strictly above t. Enterprise has none.
func (t Tier) Next() (Tier, bool) {
	r := t.rank()
	if r < 0 || r == len(Tiers)-1 {
		return "", false
	}
	return Tiers[r+1], true
}

// Exceeds reports whether t ranks above other. Unknown tiers rank lowest.
func (t Tier) Exceeds(other Tier) bool {
	return t.rank() > other.rank()
}

func (t Tier) rank() int {
	for i, tier := range Tiers {
		if tier == t {
			return i
		}
	}
	return -1
}

// TierNames returns the canonical tier names joined for messages.
func TierNames() string {
	names := make([]string, len(Tiers))
	for i, tier := range Tiers {
		names[i] = string(tier)
	}
	return strings.Join(names, ", ")
}
