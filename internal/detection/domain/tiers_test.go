package domain

import (
	"testing"

	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/config"
	"github.com/stretchr/testify/assert"
)

func spikeTiers() TierTable {
	return TierTable{
		{MinValue: 10, Severity: SeveritySevere},
		{MinValue: 5, Severity: SeverityCritical},
		{MinValue: 3, Severity: SeverityWarning},
	}
}

func TestTierTableClassify(t *testing.T) {
	tiers := spikeTiers()

	cases := []struct {
		name     string
		value    float64
		want     Severity
		detected bool
	}{
		{"below all tiers", 2.9, "", false},
		{"warning floor", 3, SeverityWarning, true},
		{"between warning and critical", 4.9, SeverityWarning, true},
		{"critical floor", 5, SeverityCritical, true},
		{"severe floor", 10, SeveritySevere, true},
		{"far above severe", 110, SeveritySevere, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := tiers.Classify(tc.value)
			assert.Equal(t, tc.detected, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestTierTableClassifyMonotonic(t *testing.T) {
	tiers := spikeTiers()

	prevRank := 0
	for value := 0.0; value <= 20; value += 0.5 {
		severity, ok := tiers.Classify(value)
		rank := 0
		if ok {
			rank = severity.Rank()
		}
		assert.GreaterOrEqual(t, rank, prevRank, "severity dropped at value %v", value)
		prevRank = rank
	}
}

func TestActionTableResolve(t *testing.T) {
	actions := ActionsFromConfig(config.DefaultThresholdConfig().Pattern.ActionRules)

	cases := []struct {
		name        string
		severity    Severity
		occurrences int
		want        Action
	}{
		{"severe single occurrence suspends", SeveritySevere, 1, ActionSuspension},
		{"critical three occurrences suspends", SeverityCritical, 3, ActionSuspension},
		{"critical single occurrence warns", SeverityCritical, 1, ActionWarning},
		{"warning five occurrences warns", SeverityWarning, 5, ActionWarning},
		{"warning below occurrence floor", SeverityWarning, 4, ActionNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, actions.Resolve(tc.severity, tc.occurrences))
		})
	}
}

func TestTiersFromConfigDropsUnknownSeverities(t *testing.T) {
	tiers := TiersFromConfig([]config.SeverityTier{
		{Severity: "severe", MinValue: 10},
		{Severity: "catastrophic", MinValue: 100},
	})
	assert.Len(t, tiers, 1)
	assert.Equal(t, SeveritySevere, tiers[0].Severity)
}
