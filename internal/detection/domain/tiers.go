package domain

import "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/config"

// Tier maps a minimum measurement value to a severity.
type Tier struct {
	MinValue float64
	Severity Severity
}

// TierTable is evaluated highest severity first; the first tier whose
// MinValue is met wins, which keeps selection monotonic in the measurement.
type TierTable []Tier

func (t TierTable) Classify(value float64) (Severity, bool) {
	var (
		best     Severity
		bestRank int
		found    bool
	)
	for _, tier := range t {
		if value >= tier.MinValue && tier.Severity.Rank() > bestRank {
			best = tier.Severity
			bestRank = tier.Severity.Rank()
			found = true
		}
	}
	return best, found
}

// ActionRule maps a severity/occurrence floor to an action. Rules are
// ordered most to least restrictive; the first rule met wins.
type ActionRule struct {
	MinSeverity    Severity
	MinOccurrences int
	Action         Action
}

type ActionTable []ActionRule

func (t ActionTable) Resolve(severity Severity, occurrences int) Action {
	for _, rule := range t {
		if severity.Rank() >= rule.MinSeverity.Rank() && occurrences >= rule.MinOccurrences {
			return rule.Action
		}
	}
	return ActionNone
}

// TiersFromConfig converts the operator threshold file representation,
// dropping entries with unknown severities.
func TiersFromConfig(tiers []config.SeverityTier) TierTable {
	out := make(TierTable, 0, len(tiers))
	for _, tier := range tiers {
		severity, ok := ParseSeverity(tier.Severity)
		if !ok {
			continue
		}
		out = append(out, Tier{MinValue: tier.MinValue, Severity: severity})
	}
	return out
}

func ActionsFromConfig(rules []config.ActionRule) ActionTable {
	out := make(ActionTable, 0, len(rules))
	for _, rule := range rules {
		severity, ok := ParseSeverity(rule.MinSeverity)
		if !ok {
			continue
		}
		action, ok := ParseAction(rule.Action)
		if !ok {
			continue
		}
		out = append(out, ActionRule{
			MinSeverity:    severity,
			MinOccurrences: rule.MinOccurrences,
			Action:         action,
		})
	}
	return out
}
