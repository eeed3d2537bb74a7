package risk

import (
	"math"
	"testing"

	"perpScalper/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestContractQuantity(t *testing.T) {
	tests := []struct {
		name     string
		notional float64
		leverage int
		price    float64
		want     float64
	}{
		{"even split", 10, 15, 100, 1.5},
		{"rounded to six decimals", 10, 15, 7, 21.428571},
		{"zero price", 10, 15, 0, 0},
		{"negative price", 10, 15, -1, 0},
		{"zero leverage", 10, 0, 100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ContractQuantity(tt.notional, tt.leverage, tt.price), 1e-9)
		})
	}
}

func TestContractQuantityHalvesWhenPriceDoubles(t *testing.T) {
	for _, price := range []float64{0.5, 3, 100, 2500, 61000} {
		q1 := ContractQuantity(10, 15, price)
		q2 := ContractQuantity(10, 15, price*2)
		assert.InDelta(t, q1/2, q2, 1e-6, "price %f", price)
		assert.Less(t, q2, q1)
	}
}

func TestSnapQuantity(t *testing.T) {
	assert.InDelta(t, 21.428, SnapQuantity(21.428571, 0.001), 1e-9)
	assert.InDelta(t, 21.0, SnapQuantity(21.9, 1), 1e-9)
	assert.InDelta(t, 21.428571, SnapQuantity(21.428571, 0), 1e-9)
}

func TestProtectiveDistances(t *testing.T) {
	floor := Parameters{TakeProfitPercent: 0.3, StopLossPercent: MinStopLossPercent}

	tests := []struct {
		name  string
		atr   float64
		price float64
		want  Parameters
	}{
		{"nan atr", math.NaN(), 100, floor},
		{"zero atr", 0, 100, floor},
		{"negative atr", -2, 100, floor},
		{"nan atr ignores price", math.NaN(), 65000, floor},
		{"small atr hits floors", 0.01, 100, floor},
		{"large atr", 1, 100, Parameters{TakeProfitPercent: 3, StopLossPercent: 1.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ProtectiveDistances(tt.atr, tt.price, 0.3)
			assert.InDelta(t, tt.want.TakeProfitPercent, got.TakeProfitPercent, 1e-9)
			assert.InDelta(t, tt.want.StopLossPercent, got.StopLossPercent, 1e-9)
		})
	}

	large := ProtectiveDistances(2, 100, 0.3)
	assert.Greater(t, large.TakeProfitPercent, floor.TakeProfitPercent)
	assert.Greater(t, large.StopLossPercent, floor.StopLossPercent)
}

func TestSnapToTick(t *testing.T) {
	assert.Equal(t, 100.01, SnapToTick(100.004, 0.01, true))
	assert.Equal(t, 99.99, SnapToTick(99.996, 0.01, false))
	assert.Equal(t, 100.01, SnapToTick(100.01, 0.01, true), "on-grid price is unchanged")
	assert.Equal(t, 100.5, SnapToTick(100.3, 0.5, true))
	assert.Equal(t, 100.01, SnapToTick(100.004, 0, true), "missing tick falls back to default")
	assert.Equal(t, 99.99, SnapToTick(99.996, -1, false))
}

func TestProtectivePrices(t *testing.T) {
	params := Parameters{TakeProfitPercent: 0.3, StopLossPercent: 0.3}

	tp, sl := ProtectivePrices(domain.Long, 100, params, 0.01)
	assert.Equal(t, 100.3, tp)
	assert.Equal(t, 99.7, sl)

	tp, sl = ProtectivePrices(domain.Short, 100, params, 0.01)
	assert.Equal(t, 99.7, tp)
	assert.Equal(t, 100.3, sl)

	// 100.003 * 1.003 = 100.303009 and 100.003 * 0.997 = 99.702991
	tp, sl = ProtectivePrices(domain.Long, 100.003, params, 0.01)
	assert.Equal(t, 100.31, tp)
	assert.Equal(t, 99.7, sl)

	tp, sl = ProtectivePrices(domain.Short, 100.003, params, 0.01)
	assert.Equal(t, 99.7, tp)
	assert.Equal(t, 100.31, sl)
}

func TestProtectivePricesNeverTighten(t *testing.T) {
	params := Parameters{TakeProfitPercent: 0.4173, StopLossPercent: 0.3311}
	for _, entry := range []float64{1.2345, 17.77, 100.003, 2543.21, 61234.5} {
		for _, tick := range []float64{0.0001, 0.01, 0.1, 0.5} {
			rawUp := entry * (1 + params.TakeProfitPercent/100)
			rawDown := entry * (1 - params.StopLossPercent/100)
			tp, sl := ProtectivePrices(domain.Long, entry, params, tick)
			assert.GreaterOrEqual(t, tp, rawUp-1e-9, "long tp entry=%f tick=%f", entry, tick)
			assert.LessOrEqual(t, sl, rawDown+1e-9, "long sl entry=%f tick=%f", entry, tick)

			rawDown = entry * (1 - params.TakeProfitPercent/100)
			rawUp = entry * (1 + params.StopLossPercent/100)
			tp, sl = ProtectivePrices(domain.Short, entry, params, tick)
			assert.LessOrEqual(t, tp, rawDown+1e-9, "short tp entry=%f tick=%f", entry, tick)
			assert.GreaterOrEqual(t, sl, rawUp-1e-9, "short sl entry=%f tick=%f", entry, tick)
		}
	}
}

func TestPnL(t *testing.T) {
	assert.InDelta(t, 150.0, PnL(domain.Long, 100, 101, 10, 15), 1e-9)
	assert.InDelta(t, -150.0, PnL(domain.Long, 100, 99, 10, 15), 1e-9)
	assert.InDelta(t, 150.0, PnL(domain.Short, 100, 99, 10, 15), 1e-9)
	assert.InDelta(t, 0.0, PnL(domain.Short, 0, 99, 10, 15), 1e-9)
}
