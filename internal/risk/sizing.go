package risk

import (
	"math"

	"perpScalper/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	// QuantityPrecision is the number of decimals contract quantities are rounded to.
	QuantityPrecision int32 = 6
	// DefaultTickSize is used when market metadata has no usable tick size.
	DefaultTickSize = 0.01
	// MinStopLossPercent is the stop-loss distance floor.
	MinStopLossPercent = 0.3

	takeProfitATRMultiplier = 3.0
	stopLossATRMultiplier   = 1.5
)

var hundred = decimal.NewFromInt(100)

// Parameters are the per-trade protective distances, in percent of entry price.
type Parameters struct {
	TakeProfitPercent float64
	StopLossPercent   float64
}

// ContractQuantity converts a quote notional at the given leverage into contracts at price.
// It returns 0 for a non-positive price.
func ContractQuantity(notional float64, leverage int, price float64) float64 {
	if price <= 0 || notional <= 0 || leverage <= 0 {
		return 0
	}
	q := decimal.NewFromFloat(notional).
		Mul(decimal.NewFromInt(int64(leverage))).
		Div(decimal.NewFromFloat(price)).
		Round(QuantityPrecision)
	return q.InexactFloat64()
}

// SnapQuantity floors qty to the lot step. A non-positive step leaves qty unchanged.
func SnapQuantity(qty, step float64) float64 {
	if step <= 0 {
		return qty
	}
	s := decimal.NewFromFloat(step)
	return decimal.NewFromFloat(qty).Div(s).Floor().Mul(s).InexactFloat64()
}

// ProtectiveDistances derives take-profit and stop-loss distances from ATR.
// An undefined or non-positive ATR (or price) yields the floors.
func ProtectiveDistances(atr, price, minProfitPercent float64) Parameters {
	if math.IsNaN(atr) || atr <= 0 || price <= 0 {
		return Parameters{TakeProfitPercent: minProfitPercent, StopLossPercent: MinStopLossPercent}
	}
	atrPercent := atr / price * 100
	return Parameters{
		TakeProfitPercent: math.Max(minProfitPercent, atrPercent*takeProfitATRMultiplier),
		StopLossPercent:   math.Max(MinStopLossPercent, atrPercent*stopLossATRMultiplier),
	}
}

// SnapToTick rounds raw onto the tick grid, up when roundUp is set and down otherwise.
// A non-positive tick falls back to DefaultTickSize.
func SnapToTick(raw, tick float64, roundUp bool) float64 {
	return snap(decimal.NewFromFloat(raw), tick, roundUp).InexactFloat64()
}

func snap(raw decimal.Decimal, tick float64, roundUp bool) decimal.Decimal {
	if tick <= 0 {
		tick = DefaultTickSize
	}
	t := decimal.NewFromFloat(tick)
	steps := raw.Div(t)
	if roundUp {
		steps = steps.Ceil()
	} else {
		steps = steps.Floor()
	}
	return steps.Mul(t)
}

// ProtectivePrices returns the take-profit and stop-loss trigger prices for a position
// entered at entry. Rounding always moves away from the entry so neither distance
// ends up tighter than params.
func ProtectivePrices(side domain.Side, entry float64, params Parameters, tick float64) (takeProfit, stopLoss float64) {
	e := decimal.NewFromFloat(entry)
	tp := decimal.NewFromFloat(params.TakeProfitPercent).Div(hundred)
	sl := decimal.NewFromFloat(params.StopLossPercent).Div(hundred)

	if side == domain.Short {
		takeProfit = snap(e.Mul(decimal.NewFromInt(1).Sub(tp)), tick, false).InexactFloat64()
		stopLoss = snap(e.Mul(decimal.NewFromInt(1).Add(sl)), tick, true).InexactFloat64()
		return takeProfit, stopLoss
	}
	takeProfit = snap(e.Mul(decimal.NewFromInt(1).Add(tp)), tick, true).InexactFloat64()
	stopLoss = snap(e.Mul(decimal.NewFromInt(1).Sub(sl)), tick, false).InexactFloat64()
	return takeProfit, stopLoss
}

// PnL is the realised profit in quote currency for a position of the given notional
// and leverage, from the relative entry/exit move.
func PnL(side domain.Side, entry, exit, notional float64, leverage int) float64 {
	if entry <= 0 {
		return 0
	}
	move := (exit - entry) / entry * 100
	if side == domain.Short {
		move = (entry - exit) / entry * 100
	}
	return move * notional * float64(leverage)
}

// PotentialMove is the quote-currency amount a percent move is worth at notional and leverage.
func PotentialMove(percent, notional float64, leverage int) float64 {
	return percent / 100 * notional * float64(leverage)
}
