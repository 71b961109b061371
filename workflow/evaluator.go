package workflow

import "github.com/mmdatafocus/indicator_monitor/models"

const (
	decisionNoTarget     = "no target configured"
	decisionNoData       = "no facts to judge"
	decisionWithinTarget = "within target"
	decisionBreach       = "breach"
)

type BreachDecision struct {
	IsBreach  bool
	Direction BreachDirection
	Value     float64
	Target    float64
	Reason    string
}

// Evaluate compares the raw computed value with the indicator target in the family direction.
func Evaluate(ind models.Indicator, family Family, c Computation) BreachDecision {
	d := BreachDecision{Direction: family.Direction, Value: c.Value}
	if ind.Target == nil {
		d.Reason = decisionNoTarget
		return d
	}
	d.Target = *ind.Target
	if family.RequiresSample && c.Sample <= 0 {
		d.Reason = decisionNoData
		return d
	}
	switch family.Direction {
	case BreachBelow:
		d.IsBreach = c.Value < d.Target
	default:
		d.IsBreach = c.Value > d.Target
	}
	if d.IsBreach {
		d.Reason = decisionBreach
	} else {
		d.Reason = decisionWithinTarget
	}
	return d
}
