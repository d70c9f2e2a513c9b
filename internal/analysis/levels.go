package analysis

import (
	"sort"

	"pocket-options-bot/internal/pocketoption"
)

// Level is one merged support or resistance price zone.
type Level struct {
	Price    float64 `json:"price"`
	Type     string  `json:"type"` // "support" or "resistance"
	Touches  int     `json:"touches"`
	Strength float64 `json:"strength"` // min(1, touches/sensitivity)
	Distance float64 `json:"distance"` // absolute distance from the latest close
}

// SRLevels groups the nearest levels on each side of the current price.
type SRLevels struct {
	Support    []Level `json:"support"`
	Resistance []Level `json:"resistance"`
}

type swingPoint struct {
	price     float64
	levelType string
}

// FindSupportResistance locates swing highs/lows, clusters nearby ones
// into levels and returns the nearest `count` supports strictly below
// and resistances strictly above the latest close, sorted by distance.
// Windows shorter than 2*sensitivity yield an empty result.
func FindSupportResistance(candles []pocketoption.Candle, sensitivity int, tolerance float64, count int) SRLevels {
	result := SRLevels{Support: []Level{}, Resistance: []Level{}}
	if sensitivity < 1 || len(candles) < sensitivity*2 {
		return result
	}

	currentPrice := candles[0].Close

	// Swing extrema: a bar whose high (low) dominates every bar within
	// `sensitivity` positions on both sides.
	var points []swingPoint
	for i := sensitivity; i < len(candles)-sensitivity; i++ {
		isResistance := true
		isSupport := true
		for j := 1; j <= sensitivity; j++ {
			if candles[i].High < candles[i-j].High || candles[i].High < candles[i+j].High {
				isResistance = false
			}
			if candles[i].Low > candles[i-j].Low || candles[i].Low > candles[i+j].Low {
				isSupport = false
			}
		}
		if isResistance {
			points = append(points, swingPoint{price: candles[i].High, levelType: "resistance"})
		}
		if isSupport {
			points = append(points, swingPoint{price: candles[i].Low, levelType: "support"})
		}
	}
	if len(points) == 0 {
		return result
	}

	sort.Slice(points, func(a, b int) bool { return points[a].price < points[b].price })

	// Cluster price-adjacent points. Two points merge when they sit
	// within tolerance*currentPrice of each other.
	mergeRadius := tolerance * currentPrice
	var merged []Level
	cluster := []swingPoint{points[0]}
	flush := func() {
		sum := 0.0
		supportVotes := 0
		for _, p := range cluster {
			sum += p.price
			if p.levelType == "support" {
				supportVotes++
			}
		}
		levelType := "resistance"
		if supportVotes*2 > len(cluster) {
			levelType = "support"
		}
		strength := float64(len(cluster)) / float64(sensitivity)
		if strength > 1 {
			strength = 1
		}
		merged = append(merged, Level{
			Price:    sum / float64(len(cluster)),
			Type:     levelType,
			Touches:  len(cluster),
			Strength: strength,
		})
	}
	for i := 1; i < len(points); i++ {
		if points[i].price-cluster[len(cluster)-1].price < mergeRadius {
			cluster = append(cluster, points[i])
		} else {
			flush()
			cluster = []swingPoint{points[i]}
		}
	}
	flush()

	for _, level := range merged {
		level.Distance = absF(level.Price - currentPrice)
		switch {
		case level.Type == "support" && level.Price < currentPrice:
			result.Support = append(result.Support, level)
		case level.Type == "resistance" && level.Price > currentPrice:
			result.Resistance = append(result.Resistance, level)
		}
	}

	sort.Slice(result.Support, func(a, b int) bool {
		return result.Support[a].Distance < result.Support[b].Distance
	})
	sort.Slice(result.Resistance, func(a, b int) bool {
		return result.Resistance[a].Distance < result.Resistance[b].Distance
	})

	if len(result.Support) > count {
		result.Support = result.Support[:count]
	}
	if len(result.Resistance) > count {
		result.Resistance = result.Resistance[:count]
	}
	return result
}

func absF(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
