package analysis

import (
	"math"

	"pocket-options-bot/internal/pocketoption"
)

// minIndicatorWindow is the smallest candle window the indicator set is
// computed for.
const minIndicatorWindow = 20

// RSIResult holds the Relative Strength Index and its classification.
type RSIResult struct {
	Value  float64 `json:"value"`
	Signal string  `json:"signal"` // "overbought", "oversold", "neutral"
}

// MACDResult holds MACD line, signal line and histogram.
type MACDResult struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
	Trend     string  `json:"trend"` // "bullish", "bearish", "neutral"
}

// BollingerResult holds the band values and the close's position.
type BollingerResult struct {
	Upper    float64 `json:"upper"`
	Middle   float64 `json:"middle"`
	Lower    float64 `json:"lower"`
	Position string  `json:"position"` // "above_upper", "upper_half", "lower_half", "below_lower"
}

// StochasticResult holds %K, %D and the oscillator classification.
type StochasticResult struct {
	K      float64 `json:"k"`
	D      float64 `json:"d"`
	Signal string  `json:"signal"` // "overbought", "oversold", "neutral"
}

// ATRResult holds the Average True Range and a volatility bucket based
// on the range relative to price.
type ATRResult struct {
	Value      float64 `json:"value"`
	Volatility string  `json:"volatility"` // "high", "medium", "low"
}

// IndicatorSet is the fixed set of indicators computed per window.
// Fields are nil when the window is too short for that indicator.
type IndicatorSet struct {
	RSI        *RSIResult        `json:"rsi,omitempty"`
	SMA10      *float64          `json:"sma_10,omitempty"`
	SMA20      *float64          `json:"sma_20,omitempty"`
	EMA10      *float64          `json:"ema_10,omitempty"`
	EMA20      *float64          `json:"ema_20,omitempty"`
	MACD       *MACDResult       `json:"macd,omitempty"`
	Bollinger  *BollingerResult  `json:"bollinger,omitempty"`
	Stochastic *StochasticResult `json:"stochastic,omitempty"`
	ATR        *ATRResult        `json:"atr,omitempty"`
}

// RelativeATR returns ATR as a fraction of the given price, the
// volatility input to expiration selection. Zero when ATR is missing.
func (s *IndicatorSet) RelativeATR(price float64) float64 {
	if s == nil || s.ATR == nil || price == 0 {
		return 0
	}
	return s.ATR.Value / price
}

// CalculateIndicators computes the indicator set for a newest-first
// candle window. Fewer than 20 candles yields nil. Indicators whose
// required window exceeds the data are left nil individually.
func CalculateIndicators(candles []pocketoption.Candle) *IndicatorSet {
	if len(candles) < minIndicatorWindow {
		return nil
	}

	// Indicator math runs oldest-first.
	n := len(candles)
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i, c := range candles {
		closes[n-1-i] = c.Close
		highs[n-1-i] = c.High
		lows[n-1-i] = c.Low
	}

	set := &IndicatorSet{
		RSI:        calcRSI(closes, 14),
		SMA10:      calcSMA(closes, 10),
		SMA20:      calcSMA(closes, 20),
		EMA10:      calcEMA(closes, 10),
		EMA20:      calcEMA(closes, 20),
		MACD:       calcMACD(closes, 12, 26, 9),
		Bollinger:  calcBollinger(closes, 20, 2.0),
		Stochastic: calcStochastic(highs, lows, closes, 14, 3),
		ATR:        calcATR(highs, lows, closes, 14),
	}
	return set
}

func calcSMA(closes []float64, period int) *float64 {
	if len(closes) < period {
		return nil
	}
	sum := 0.0
	for _, c := range closes[len(closes)-period:] {
		sum += c
	}
	v := sum / float64(period)
	return &v
}

func calcEMA(closes []float64, period int) *float64 {
	if len(closes) < period {
		return nil
	}
	v := emaSeries(closes, period)[len(closes)-1]
	return &v
}

// emaSeries returns the running EMA, seeded with the SMA of the first
// `period` values. Positions before period-1 hold the running seed.
func emaSeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	seed := sum / float64(period)
	multiplier := 2.0 / float64(period+1)

	for i := range out {
		if i < period {
			out[i] = seed
			continue
		}
		out[i] = values[i]*multiplier + out[i-1]*(1-multiplier)
	}
	return out
}

func calcRSI(closes []float64, period int) *RSIResult {
	if len(closes) < period+1 {
		return nil
	}

	gains, losses := 0.0, 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	value := 100.0
	if avgLoss != 0 {
		rs := avgGain / avgLoss
		value = 100 - 100/(1+rs)
	}

	signal := "neutral"
	if value > 70 {
		signal = "overbought"
	} else if value < 30 {
		signal = "oversold"
	}
	return &RSIResult{Value: value, Signal: signal}
}

func calcMACD(closes []float64, fast, slow, signalPeriod int) *MACDResult {
	if len(closes) < slow+signalPeriod {
		return nil
	}

	fastEMA := emaSeries(closes, fast)
	slowEMA := emaSeries(closes, slow)

	macdLine := make([]float64, len(closes)-slow+1)
	for i := range macdLine {
		macdLine[i] = fastEMA[slow-1+i] - slowEMA[slow-1+i]
	}
	signalLine := emaSeries(macdLine, signalPeriod)

	macd := macdLine[len(macdLine)-1]
	signal := signalLine[len(signalLine)-1]
	histogram := macd - signal

	trend := "neutral"
	if histogram > 0 {
		trend = "bullish"
	} else if histogram < 0 {
		trend = "bearish"
	}
	return &MACDResult{MACD: macd, Signal: signal, Histogram: histogram, Trend: trend}
}

func calcBollinger(closes []float64, period int, stdDevMult float64) *BollingerResult {
	middle := calcSMA(closes, period)
	if middle == nil {
		return nil
	}

	variance := 0.0
	for _, c := range closes[len(closes)-period:] {
		diff := c - *middle
		variance += diff * diff
	}
	stdDev := math.Sqrt(variance / float64(period))

	upper := *middle + stdDev*stdDevMult
	lower := *middle - stdDev*stdDevMult
	last := closes[len(closes)-1]

	position := "lower_half"
	switch {
	case last > upper:
		position = "above_upper"
	case last < lower:
		position = "below_lower"
	case last >= *middle:
		position = "upper_half"
	}
	return &BollingerResult{Upper: upper, Middle: *middle, Lower: lower, Position: position}
}

func calcStochastic(highs, lows, closes []float64, kPeriod, dPeriod int) *StochasticResult {
	if len(closes) < kPeriod+dPeriod-1 {
		return nil
	}

	// %K for the last dPeriod positions, %D as their mean.
	kValues := make([]float64, dPeriod)
	for i := 0; i < dPeriod; i++ {
		end := len(closes) - (dPeriod - 1 - i)
		kValues[i] = stochasticK(highs[:end], lows[:end], closes[:end], kPeriod)
	}
	k := kValues[dPeriod-1]
	dSum := 0.0
	for _, v := range kValues {
		dSum += v
	}
	d := dSum / float64(dPeriod)

	signal := "neutral"
	if k > 80 {
		signal = "overbought"
	} else if k < 20 {
		signal = "oversold"
	}
	return &StochasticResult{K: k, D: d, Signal: signal}
}

func stochasticK(highs, lows, closes []float64, period int) float64 {
	start := len(closes) - period
	highest := highs[start]
	lowest := lows[start]
	for i := start; i < len(closes); i++ {
		if highs[i] > highest {
			highest = highs[i]
		}
		if lows[i] < lowest {
			lowest = lows[i]
		}
	}
	if highest == lowest {
		return 50
	}
	return (closes[len(closes)-1] - lowest) / (highest - lowest) * 100
}

func calcATR(highs, lows, closes []float64, period int) *ATRResult {
	if len(closes) < period+1 {
		return nil
	}

	trSum := 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		tr := math.Max(highs[i]-lows[i], math.Max(
			math.Abs(highs[i]-closes[i-1]),
			math.Abs(lows[i]-closes[i-1]),
		))
		trSum += tr
	}
	atr := trSum / float64(period)

	volatility := "low"
	last := closes[len(closes)-1]
	if last > 0 {
		relative := atr / last
		if relative > 0.002 {
			volatility = "high"
		} else if relative > 0.001 {
			volatility = "medium"
		}
	}
	return &ATRResult{Value: atr, Volatility: volatility}
}
