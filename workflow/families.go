package workflow

import (
	"context"
	"time"

	"github.com/mmdatafocus/indicator_monitor/models"
	"github.com/mmdatafocus/indicator_monitor/utils"
)

// BreachDirection is the comparison that signals a breach for a family.
type BreachDirection string

const (
	BreachAbove BreachDirection = ">" // too high is bad
	BreachBelow BreachDirection = "<" // too low is bad
)

// FactSource is the read side of the fact collaborator.
type FactSource interface {
	NonConformitiesForIndicator(ctx context.Context, code string) ([]models.NonConformity, error)
	TransactionsInPeriod(ctx context.Context, start, end time.Time) ([]models.FinancialTransaction, error)
	DeviationsInPeriod(ctx context.Context, start, end time.Time) ([]models.AdministrativeDeviation, error)
}

type computeFunc func(ctx context.Context, facts FactSource, b Binding, now time.Time) (Computation, error)

// Family pairs a calculator with the direction its values are judged in.
// External families have no calculator: their value is pushed in by a collaborator.
type Family struct {
	Name           models.IndicatorFamily
	Direction      BreachDirection
	RequiresSample bool
	compute        computeFunc
}

func (f Family) IsExternal() bool {
	return f.compute == nil
}

var familyTable = map[models.IndicatorFamily]Family{
	models.IndicatorFamilyOpenRatio: {
		Direction:      BreachAbove,
		RequiresSample: true,
		compute: func(ctx context.Context, facts FactSource, b Binding, _ time.Time) (Computation, error) {
			ncs, err := facts.NonConformitiesForIndicator(ctx, b.Code)
			if err != nil {
				return Computation{}, err
			}
			return OpenRatio(ncs, b.CountAutoGenerated), nil
		},
	},
	models.IndicatorFamilyCompletionRatio: {
		Direction:      BreachBelow,
		RequiresSample: true,
		compute: func(ctx context.Context, facts FactSource, b Binding, _ time.Time) (Computation, error) {
			ncs, err := facts.NonConformitiesForIndicator(ctx, b.Code)
			if err != nil {
				return Computation{}, err
			}
			return CompletionRatio(ncs, b.CountAutoGenerated), nil
		},
	},
	models.IndicatorFamilyFinancialFeeRate: {
		Direction: BreachAbove,
		compute: func(ctx context.Context, facts FactSource, b Binding, now time.Time) (Computation, error) {
			start, end := utils.PeriodRange(b.Period, now)
			txns, err := facts.TransactionsInPeriod(ctx, start, end)
			if err != nil {
				return Computation{}, err
			}
			return FeeRate(txns), nil
		},
	},
	models.IndicatorFamilyDeviationCount: {
		Direction: BreachAbove,
		compute: func(ctx context.Context, facts FactSource, b Binding, now time.Time) (Computation, error) {
			start, end := utils.PeriodRange(b.Period, now)
			devs, err := facts.DeviationsInPeriod(ctx, start, end)
			if err != nil {
				return Computation{}, err
			}
			return DeviationCount(devs), nil
		},
	},
	models.IndicatorFamilyExternal: {
		Direction: BreachAbove,
	},
}

// FamilyFor resolves the descriptor for a binding, applying the EXTERNAL direction override.
func FamilyFor(b Binding) (Family, bool) {
	f, ok := familyTable[b.Family]
	if !ok {
		return Family{}, false
	}
	f.Name = b.Family
	if b.Family == models.IndicatorFamilyExternal && !utils.DereferencePtr(b.HigherIsBad, true) {
		f.Direction = BreachBelow
	}
	return f, true
}
