package workflow

import (
	"github.com/mmdatafocus/indicator_monitor/models"
	"github.com/shopspring/decimal"
)

// Computation is a freshly computed indicator value. Sample is the number of
// facts the value rests on; ratio families need it to be non-zero before alerting.
type Computation struct {
	Value  float64
	Sample int
}

// OpenRatio is the share of unresolved non-conformities, in percent.
// The engine's own records are skipped unless countAuto is set.
func OpenRatio(ncs []models.NonConformity, countAuto bool) Computation {
	var open, total int
	for _, nc := range ncs {
		if nc.IsAutoGenerated() && !countAuto {
			continue
		}
		total++
		if nc.Status == models.NonConformityStatusOpen {
			open++
		}
	}
	return Computation{Value: percentage(float64(open), float64(total)), Sample: total}
}

// CompletionRatio is the share of fixed non-conformities, in percent.
func CompletionRatio(ncs []models.NonConformity, countAuto bool) Computation {
	var fixed, total int
	for _, nc := range ncs {
		if nc.IsAutoGenerated() && !countAuto {
			continue
		}
		total++
		if nc.Status == models.NonConformityStatusFixed {
			fixed++
		}
	}
	return Computation{Value: percentage(float64(fixed), float64(total)), Sample: total}
}

// FeeRate is total fees over total revenue, in percent.
func FeeRate(txns []models.FinancialTransaction) Computation {
	fees := decimal.Zero
	revenue := decimal.Zero
	for _, txn := range txns {
		switch txn.Kind {
		case models.TransactionKindFee:
			fees = fees.Add(txn.Amount)
		case models.TransactionKindRevenue:
			revenue = revenue.Add(txn.Amount)
		}
	}
	return Computation{
		Value:  percentage(fees.InexactFloat64(), revenue.InexactFloat64()),
		Sample: len(txns),
	}
}

func DeviationCount(devs []models.AdministrativeDeviation) Computation {
	return Computation{Value: float64(len(devs)), Sample: len(devs)}
}

// percentage is 0 when total is 0, never NaN or Inf.
func percentage(part, total float64) float64 {
	if total == 0 {
		return 0
	}
	return 100 * part / total
}
