package usage

import (
	"fmt"
	"strings"
)

// Tier is a named category of metered operation with its own counter.
type Tier string

const (
	TierStandard Tier = "standard"
	TierDeep     Tier = "deep"
	// TierTools is the consolidated counter shared by the lighter "tools"
	// analyses (stock commentary and the legacy tools alias).
	TierTools Tier = "tools"
)

// Tiers lists every tier in display order.
var Tiers = []Tier{TierStandard, TierDeep, TierTools}

// ParseTier maps a stored analysis_mode to a tier. nil and "" mean standard.
func ParseTier(mode *string) (Tier, error) {
	if mode == nil {
		return TierStandard, nil
	}
	switch t := Tier(strings.ToLower(strings.TrimSpace(*mode))); t {
	case "", TierStandard:
		return TierStandard, nil
	case TierDeep, TierTools:
		return t, nil
	default:
		return "", fmt.Errorf("unknown tier %q", *mode)
	}
}

// Mode returns the analysis_mode value stored for t. Standard is stored as NULL.
func (t Tier) Mode() *string {
	if t == TierStandard || t == "" {
		return nil
	}
	s := string(t)
	return &s
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierStandard, TierDeep, TierTools:
		return true
	}
	return false
}

// PlanLimits is the daily cap per tier for one plan.
type PlanLimits struct {
	Standard int `yaml:"standard"`
	Deep     int `yaml:"deep"`
	Tools    int `yaml:"tools"`
}

// For returns the cap for t, or 0 for an unknown tier.
func (p PlanLimits) For(t Tier) int {
	switch t {
	case TierStandard:
		return p.Standard
	case TierDeep:
		return p.Deep
	case TierTools:
		return p.Tools
	}
	return 0
}

// Limits is the full limit table. Premium caps are larger but always finite.
type Limits struct {
	Free    PlanLimits `yaml:"free"`
	Premium PlanLimits `yaml:"premium"`
}

// DefaultLimits returns the built-in table.
func DefaultLimits() Limits {
	return Limits{
		Free:    PlanLimits{Standard: 2, Deep: 0, Tools: 8},
		Premium: PlanLimits{Standard: 6, Deep: 2, Tools: 20},
	}
}

// For returns the cap for tier t on the given plan.
func (l Limits) For(t Tier, premium bool) int {
	if premium {
		return l.Premium.For(t)
	}
	return l.Free.For(t)
}

// Validate rejects negative caps and premium caps below the free ones.
func (l Limits) Validate() error {
	for _, t := range Tiers {
		free, prem := l.Free.For(t), l.Premium.For(t)
		if free < 0 || prem < 0 {
			return fmt.Errorf("limits: %s cap must not be negative", t)
		}
		if prem < free {
			return fmt.Errorf("limits: premium %s cap (%d) is below free cap (%d)", t, prem, free)
		}
	}
	return nil
}
