package strategy

import (
	"github.com/optionflow/coretrader/internal/broker"
)

// LiquidityConfig bundles the thresholds shared by every strategy that
// reads order-book depth (spec §4.5, §6 liquidity_analysis section).
// Grounded on original_source/liquidity_analyzer.py's LiquidityAnalyzer
// constructor defaults.
type LiquidityConfig struct {
	LiquidityThreshold float64 // minimum size to consider a zone
	ZoneProximity      float64 // how close price must be to a zone (dollars)
	ImbalanceThreshold float64 // threshold for a breakout pattern
}

// DefaultLiquidityConfig matches liquidity_analyzer.py's defaults.
var DefaultLiquidityConfig = LiquidityConfig{
	LiquidityThreshold: 1000,
	ZoneProximity:      0.10,
	ImbalanceThreshold: 0.6,
}

// ZoneType distinguishes a support zone (bid side) from a resistance
// zone (ask side).
type ZoneType string

const (
	ZoneSupport    ZoneType = "support"
	ZoneResistance ZoneType = "resistance"
)

// Zone is a single price level whose resting size clears the liquidity
// threshold (spec §4.5 "a zone is any price level whose size >=
// liquidity_threshold").
type Zone struct {
	Price    float64
	Size     float64
	Type     ZoneType
	Strength float64 // size / max_size_on_its_side, in [0,1]
}

// BookAnalysis is the per-tick liquidity read of one depth snapshot.
type BookAnalysis struct {
	Support    []Zone
	Resistance []Zone
	Imbalance  float64 // (Σbids - Σasks) / (Σbids + Σasks), in [-1,1]
}

// AnalyzeBook builds the zone lists and imbalance for one L2 snapshot
// (spec §4.5 swing strategy). Grounded on
// original_source/liquidity_analyzer.py analyze_book/_identify_zones.
func AnalyzeBook(depth broker.Depth, cfg LiquidityConfig) BookAnalysis {
	support := identifyZones(depth.Bids, ZoneSupport, cfg.LiquidityThreshold)
	resistance := identifyZones(depth.Asks, ZoneResistance, cfg.LiquidityThreshold)

	var totalBid, totalAsk float64
	for _, l := range depth.Bids {
		totalBid += l.Size
	}
	for _, l := range depth.Asks {
		totalAsk += l.Size
	}

	return BookAnalysis{
		Support:    support,
		Resistance: resistance,
		Imbalance:  imbalance(totalBid, totalAsk),
	}
}

func identifyZones(levels []broker.DepthLevel, zoneType ZoneType, threshold float64) []Zone {
	if len(levels) == 0 {
		return nil
	}
	maxSize := levels[0].Size
	for _, l := range levels {
		if l.Size > maxSize {
			maxSize = l.Size
		}
	}
	if maxSize == 0 {
		maxSize = 1
	}

	var zones []Zone
	for _, l := range levels {
		if l.Size >= threshold {
			zones = append(zones, Zone{
				Price:    l.Price,
				Size:     l.Size,
				Type:     zoneType,
				Strength: l.Size / maxSize,
			})
		}
	}
	return zones
}

func imbalance(totalBid, totalAsk float64) float64 {
	total := totalBid + totalAsk
	if total == 0 {
		return 0
	}
	return (totalBid - totalAsk) / total
}

// NearestZone returns the zone of the given type closest to price, and
// whether price is within proximity of it (spec §4.5 "nearest zone
// within zone_proximity of the current price").
func NearestZone(zones []Zone, price, proximity float64) (Zone, bool) {
	var best Zone
	var bestDist float64
	found := false
	for _, z := range zones {
		d := absFloat(price - z.Price)
		if !found || d < bestDist {
			best, bestDist, found = z, d, true
		}
	}
	if !found || bestDist > proximity {
		return Zone{}, false
	}
	return best, true
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// AdjustConfidenceByImbalance nudges a zone-based confidence up to ±0.3
// depending on whether the book imbalance confirms or contradicts a
// bullish/bearish pattern, clamped to [0.1, 1.0] (spec §4.5 confidence
// rule; original_source/liquidity_analyzer.py _adjust_confidence_by_imbalance).
func AdjustConfidenceByImbalance(base, imbalance float64, bullish bool) float64 {
	const weight = 0.3
	adj := imbalance * weight
	if !bullish {
		adj = -adj
	}
	out := base + adj
	if out < 0.1 {
		return 0.1
	}
	if out > 1.0 {
		return 1.0
	}
	return out
}
