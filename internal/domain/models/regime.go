package models

import (
	"fmt"
	"math"
)

// Regime is the market direction label. Class index is Regime-1.
type Regime int

const (
	RegimeUptrend   Regime = 1
	RegimeDowntrend Regime = 2
	RegimeSideways  Regime = 3
)

// NumRegimes is the number of output classes.
const NumRegimes = 3

func (r Regime) String() string {
	switch r {
	case RegimeUptrend:
		return "uptrend"
	case RegimeDowntrend:
		return "downtrend"
	case RegimeSideways:
		return "sideways"
	}
	return fmt.Sprintf("regime(%d)", int(r))
}

func (r Regime) Index() int { return int(r) - 1 }

func (r Regime) Valid() bool { return r >= RegimeUptrend && r <= RegimeSideways }

func RegimeFromIndex(i int) Regime { return Regime(i + 1) }

// NumFeatures is the length of a feature vector.
const NumFeatures = 9

// FeatureVector holds, in order: long-term change, volatility, price position,
// trend strength, volume change, momentum, trend continuity, trend consistency
// and the sign of the total change.
type FeatureVector [NumFeatures]float64

// IsFinite reports whether every component is a finite number.
func (f FeatureVector) IsFinite() bool {
	for _, v := range f {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// LabeledPeriod is an inclusive date range with a known regime.
type LabeledPeriod struct {
	Start  string `json:"start"`
	End    string `json:"end"`
	Regime Regime `json:"type"`
}

// Contains reports whether date lies within the period, both ends inclusive.
func (p LabeledPeriod) Contains(date string) bool {
	return date >= p.Start && date <= p.End
}

type RegimePrediction struct {
	Uptrend    float64 `json:"uptrend"`
	Downtrend  float64 `json:"downtrend"`
	Sideways   float64 `json:"sideways"`
	Confidence float64 `json:"confidence"`
	Amplified  bool    `json:"amplified"`
}

// NewRegimePrediction builds a prediction from class probabilities.
func NewRegimePrediction(p [NumRegimes]float64) RegimePrediction {
	return RegimePrediction{Uptrend: p[0], Downtrend: p[1], Sideways: p[2]}
}

func (p RegimePrediction) Probabilities() [NumRegimes]float64 {
	return [NumRegimes]float64{p.Uptrend, p.Downtrend, p.Sideways}
}

// Dominant returns the most probable regime. Ties resolve to the lower class index.
func (p RegimePrediction) Dominant() Regime {
	probs := p.Probabilities()
	best := 0
	for i := 1; i < NumRegimes; i++ {
		if probs[i] > probs[best] {
			best = i
		}
	}
	return RegimeFromIndex(best)
}

type TrainingHistory struct {
	Loss        []float64 `json:"loss"`
	Accuracy    []float64 `json:"accuracy"`
	ValLoss     []float64 `json:"val_loss"`
	ValAccuracy []float64 `json:"val_accuracy"`
}

// ExchangePrediction is one sliding-window prediction for a date.
type ExchangePrediction struct {
	Date       string           `json:"date"`
	Exchange   string           `json:"exchange"`
	Regime     string           `json:"regime"`
	Prediction RegimePrediction `json:"prediction"`
}
