package backtest

import (
	"github.com/shopspring/decimal"

	"RiskLens/internal/domain/models"
)

const multiplePlaces = 4

// EntryTimingOf compares three ways of deploying capital across the scored span:
// everything at the first bar, one unit on every bar, and one unit on STRONG_BUY bars only.
func EntryTimingOf(closes []float64, scores []models.CompositeRiskScore) *models.EntryTiming {
	if len(scores) == 0 {
		return nil
	}
	first := decimal.NewFromFloat(closes[scores[0].Index])
	final := decimal.NewFromFloat(closes[scores[len(scores)-1].Index])

	dcaShares, valueShares := decimal.Zero, decimal.Zero
	dcaBuys, valueBuys := 0, 0
	one := decimal.NewFromInt(1)
	for _, s := range scores {
		units := one.Div(decimal.NewFromFloat(closes[s.Index]))
		dcaShares = dcaShares.Add(units)
		dcaBuys++
		if s.Signal == models.SignalStrongBuy {
			valueShares = valueShares.Add(units)
			valueBuys++
		}
	}

	et := &models.EntryTiming{
		LumpSumMultiple: final.Div(first).Round(multiplePlaces),
		DCAMultiple:     multipleOf(dcaShares, final, dcaBuys),
		DCABuys:         dcaBuys,
		ValueDCABuys:    valueBuys,
	}
	et.ValueDCAMultiple = multipleOf(valueShares, final, valueBuys)

	et.Best = "lump_sum"
	best := et.LumpSumMultiple
	if et.DCAMultiple.GreaterThan(best) {
		et.Best, best = "dca", et.DCAMultiple
	}
	if valueBuys > 0 && et.ValueDCAMultiple.GreaterThan(best) {
		et.Best = "value_dca"
	}
	return et
}

func multipleOf(shares, price decimal.Decimal, buys int) decimal.Decimal {
	if buys == 0 {
		return decimal.Zero
	}
	return shares.Mul(price).Div(decimal.NewFromInt(int64(buys))).Round(multiplePlaces)
}
