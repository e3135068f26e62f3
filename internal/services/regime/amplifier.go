package regime

import (
	"math"

	"BTCPulse/internal/domain/models"
)

// feature positions read by the amplifier
const (
	featTrendStrength   = 3
	featTrendContinuity = 6
)

// TrendAmplifier boosts the directional class when the window shows a long run of
// same-direction months that also persisted at the 30-day scale. It overrides the
// learned output and can be switched off with model.disable_amplifier.
type TrendAmplifier struct {
	StrengthLimit   float64
	ContinuityLimit float64
	Floor           float64 // minimum probability of the boosted class
	Shrink          float64 // factor applied to the other classes
	Cap             float64 // maximum probability of the other classes
}

func NewTrendAmplifier() *TrendAmplifier {
	return &TrendAmplifier{StrengthLimit: 0.5, ContinuityLimit: 0.6, Floor: 0.8, Shrink: 0.2, Cap: 0.1}
}

// Apply returns the adjusted, unnormalised probabilities and whether it fired.
func (a *TrendAmplifier) Apply(f models.FeatureVector, p [models.NumRegimes]float64) ([models.NumRegimes]float64, bool) {
	strength, continuity := f[featTrendStrength], f[featTrendContinuity]
	if math.Abs(strength) <= a.StrengthLimit || continuity <= a.ContinuityLimit {
		return p, false
	}
	boost := models.RegimeUptrend.Index()
	if strength < 0 {
		boost = models.RegimeDowntrend.Index()
	}
	for i := range p {
		if i == boost {
			p[i] = math.Max(p[i], a.Floor)
			continue
		}
		p[i] = math.Min(p[i]*a.Shrink, a.Cap)
	}
	return p, true
}
