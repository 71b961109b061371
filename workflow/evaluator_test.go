package workflow

import (
	"testing"

	"github.com/mmdatafocus/indicator_monitor/models"
	"github.com/mmdatafocus/indicator_monitor/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func familyOf(t *testing.T, f models.IndicatorFamily) Family {
	t.Helper()
	fam, ok := FamilyFor(Binding{Code: "X", Family: f})
	require.True(t, ok)
	return fam
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name       string
		family     models.IndicatorFamily
		target     *float64
		comp       Computation
		wantBreach bool
		wantReason string
	}{
		{"fee rate above target", models.IndicatorFamilyFinancialFeeRate, floatPtr(10), Computation{Value: 15, Sample: 2}, true, decisionBreach},
		{"fee rate below target", models.IndicatorFamilyFinancialFeeRate, floatPtr(10), Computation{Value: 5, Sample: 2}, false, decisionWithinTarget},
		{"fee rate equal to target", models.IndicatorFamilyFinancialFeeRate, floatPtr(10), Computation{Value: 10, Sample: 2}, false, decisionWithinTarget},
		{"completion above target", models.IndicatorFamilyCompletionRatio, floatPtr(80), Computation{Value: 90, Sample: 10}, false, decisionWithinTarget},
		{"completion below target", models.IndicatorFamilyCompletionRatio, floatPtr(80), Computation{Value: 50, Sample: 10}, true, decisionBreach},
		{"completion with no facts", models.IndicatorFamilyCompletionRatio, floatPtr(80), Computation{Value: 0, Sample: 0}, false, decisionNoData},
		{"open ratio above target", models.IndicatorFamilyOpenRatio, floatPtr(20), Computation{Value: 50, Sample: 4}, true, decisionBreach},
		{"open ratio with no facts", models.IndicatorFamilyOpenRatio, floatPtr(-1), Computation{Value: 0, Sample: 0}, false, decisionNoData},
		{"deviation count above target", models.IndicatorFamilyDeviationCount, floatPtr(3), Computation{Value: 5, Sample: 5}, true, decisionBreach},
		{"deviation count zero sample still judged", models.IndicatorFamilyDeviationCount, floatPtr(-1), Computation{}, true, decisionBreach},
		{"no target never breaches", models.IndicatorFamilyFinancialFeeRate, nil, Computation{Value: 1e9, Sample: 1}, false, decisionNoTarget},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fam := familyOf(t, tt.family)
			d := Evaluate(models.Indicator{Code: "X", Target: tt.target}, fam, tt.comp)
			assert.Equal(t, tt.wantBreach, d.IsBreach)
			assert.Equal(t, tt.wantReason, d.Reason)
			assert.Equal(t, fam.Direction, d.Direction)
			assert.Equal(t, tt.comp.Value, d.Value)
		})
	}
}

func TestFamilyFor_ExternalDirection(t *testing.T) {
	fam, ok := FamilyFor(Binding{Code: "IND-PRJ-01", Family: models.IndicatorFamilyExternal})
	require.True(t, ok)
	assert.True(t, fam.IsExternal())
	assert.Equal(t, BreachAbove, fam.Direction)

	fam, ok = FamilyFor(Binding{Code: "IND-PRJ-01", Family: models.IndicatorFamilyExternal, HigherIsBad: utils.NewFalse()})
	require.True(t, ok)
	assert.Equal(t, BreachBelow, fam.Direction)

	fam, ok = FamilyFor(Binding{Code: "IND-QUA-01", Family: models.IndicatorFamilyOpenRatio, HigherIsBad: utils.NewFalse()})
	require.True(t, ok)
	assert.Equal(t, BreachAbove, fam.Direction, "only external families take the override")
	assert.False(t, fam.IsExternal())

	_, ok = FamilyFor(Binding{Code: "X", Family: "UNKNOWN"})
	assert.False(t, ok)
}
