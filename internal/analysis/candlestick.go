// Package analysis provides pure functions over candle windows:
// candlestick pattern detection, support/resistance levels and
// technical indicators. Candle slices are newest-first (index 0 is the
// most recent bar) unless noted otherwise.
package analysis

import (
	"pocket-options-bot/internal/pocketoption"
)

// Directional signals carried by patterns and decisions.
const (
	SignalCall    = "CALL"
	SignalPut     = "PUT"
	SignalNeutral = "neutral"
)

// Pattern categories.
const (
	CategoryReversal   = "reversal"
	CategoryIndecision = "indecision"
)

// PatternMatch is one detected candlestick pattern.
type PatternMatch struct {
	Pattern     string  `json:"pattern"`
	Type        string  `json:"type"`
	Signal      string  `json:"signal"`
	Strength    float64 `json:"strength"`
	CandleIndex int     `json:"candle_index"`
	Timestamp   int64   `json:"timestamp"`
	Price       float64 `json:"price"`
}

// patternLookback bounds detection to the most recent positions.
const patternLookback = 10

// AnalyzeCandles scans the most recent candles for known candlestick
// patterns. Fewer than 3 candles yields nil. Matches are returned in
// ascending candle-index order, newest first.
func AnalyzeCandles(candles []pocketoption.Candle) []PatternMatch {
	if len(candles) < 3 {
		return nil
	}

	var found []PatternMatch
	for i := 0; i+2 < len(candles) && i <= patternLookback; i++ {
		current := candles[i]
		prev := candles[i+1]
		prev2 := candles[i+2]

		for _, p := range detectAt(current, prev, prev2) {
			p.CandleIndex = i
			p.Timestamp = current.Timestamp
			p.Price = current.Close
			found = append(found, p)
		}
	}
	return found
}

// detectAt runs every pattern check against one position. prev is the
// bar before current, prev2 the bar before that.
func detectAt(current, prev, prev2 pocketoption.Candle) []PatternMatch {
	var detected []PatternMatch

	if isBullishEngulfing(current, prev) {
		detected = append(detected, PatternMatch{
			Pattern: "Bullish Engulfing", Type: CategoryReversal, Signal: SignalCall, Strength: 0.9,
		})
	}
	if isBearishEngulfing(current, prev) {
		detected = append(detected, PatternMatch{
			Pattern: "Bearish Engulfing", Type: CategoryReversal, Signal: SignalPut, Strength: 0.9,
		})
	}
	if isDoji(current) {
		detected = append(detected, PatternMatch{
			Pattern: "Doji", Type: CategoryIndecision, Signal: SignalNeutral, Strength: 0.5,
		})
	}
	if isHammer(current, prev) {
		detected = append(detected, PatternMatch{
			Pattern: "Hammer", Type: CategoryReversal, Signal: SignalCall, Strength: 0.7,
		})
	}
	if isShootingStar(current, prev) {
		detected = append(detected, PatternMatch{
			Pattern: "Shooting Star", Type: CategoryReversal, Signal: SignalPut, Strength: 0.7,
		})
	}
	if isBullishHarami(current, prev) {
		detected = append(detected, PatternMatch{
			Pattern: "Bullish Harami", Type: CategoryReversal, Signal: SignalCall, Strength: 0.6,
		})
	}
	if isBearishHarami(current, prev) {
		detected = append(detected, PatternMatch{
			Pattern: "Bearish Harami", Type: CategoryReversal, Signal: SignalPut, Strength: 0.6,
		})
	}
	if isMorningStar(current, prev, prev2) {
		detected = append(detected, PatternMatch{
			Pattern: "Morning Star", Type: CategoryReversal, Signal: SignalCall, Strength: 0.8,
		})
	}
	if isEveningStar(current, prev, prev2) {
		detected = append(detected, PatternMatch{
			Pattern: "Evening Star", Type: CategoryReversal, Signal: SignalPut, Strength: 0.8,
		})
	}

	return detected
}

// isBullishEngulfing: bearish bar fully engulfed by the following
// bullish bar.
func isBullishEngulfing(current, prev pocketoption.Candle) bool {
	return prev.IsBearish() && current.IsBullish() &&
		current.Close > prev.Open && current.Open < prev.Close
}

func isBearishEngulfing(current, prev pocketoption.Candle) bool {
	return prev.IsBullish() && current.IsBearish() &&
		current.Close < prev.Open && current.Open > prev.Close
}

// isDoji: body under 10% of the bar range. Zero-range bars never match.
func isDoji(c pocketoption.Candle) bool {
	return c.Range() > 0.0001 && c.Body() < 0.1*c.Range()
}

// isHammer: long lower wick, little upper wick, after a bearish bar.
func isHammer(current, prev pocketoption.Candle) bool {
	body := current.Body()
	if body == 0 {
		return false
	}
	upperWick := current.High - maxF(current.Open, current.Close)
	lowerWick := minF(current.Open, current.Close) - current.Low
	return lowerWick >= body*2 && upperWick <= body*0.3 && prev.IsBearish()
}

// isShootingStar: long upper wick, little lower wick, after a bullish bar.
func isShootingStar(current, prev pocketoption.Candle) bool {
	body := current.Body()
	if body == 0 {
		return false
	}
	upperWick := current.High - maxF(current.Open, current.Close)
	lowerWick := minF(current.Open, current.Close) - current.Low
	return upperWick >= body*2 && lowerWick <= body*0.3 && prev.IsBullish()
}

// isBullishHarami: small bullish bar contained in the prior bearish body.
func isBullishHarami(current, prev pocketoption.Candle) bool {
	return prev.IsBearish() && current.IsBullish() &&
		current.Open > prev.Close && current.Close < prev.Open
}

func isBearishHarami(current, prev pocketoption.Candle) bool {
	return prev.IsBullish() && current.IsBearish() &&
		current.Open < prev.Close && current.Close > prev.Open
}

// isMorningStar: long bearish bar, small indecision bar, long bullish
// bar closing above the first bar's midpoint.
func isMorningStar(current, prev, prev2 pocketoption.Candle) bool {
	if !prev2.IsBearish() || prev2.Body() < prev2.Range()*0.6 {
		return false
	}
	if prev.Body() > prev2.Body()*0.4 {
		return false
	}
	if !current.IsBullish() || current.Body() < current.Range()*0.6 {
		return false
	}
	midpoint := (prev2.Open + prev2.Close) / 2
	return current.Close >= midpoint
}

func isEveningStar(current, prev, prev2 pocketoption.Candle) bool {
	if !prev2.IsBullish() || prev2.Body() < prev2.Range()*0.6 {
		return false
	}
	if prev.Body() > prev2.Body()*0.4 {
		return false
	}
	if !current.IsBearish() || current.Body() < current.Range()*0.6 {
		return false
	}
	midpoint := (prev2.Open + prev2.Close) / 2
	return current.Close <= midpoint
}

// DetectTrend classifies the short-term trend from how far the latest
// close sits from the mean close of the period. Returns "uptrend",
// "downtrend" or "neutral".
func DetectTrend(candles []pocketoption.Candle, period int) string {
	if len(candles) < period || period == 0 {
		return "neutral"
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += candles[i].Close
	}
	avg := sum / float64(period)
	if avg == 0 {
		return "neutral"
	}

	diffPct := (candles[0].Close - avg) / avg * 100
	switch {
	case diffPct > 0.05:
		return "uptrend"
	case diffPct < -0.05:
		return "downtrend"
	default:
		return "neutral"
	}
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
