package regime

import (
	"math"
	"sync"

	"BTCPulse/internal/domain/models"
	"BTCPulse/pkg/logger"
	"BTCPulse/pkg/mathx"
)

// probabilityFloor keeps every class strictly positive before amplification.
const probabilityFloor = 0.001

// DefaultPrediction is returned when the network output cannot be used.
var DefaultPrediction = [models.NumRegimes]float64{0.33, 0.33, 0.34}

// Classifier runs the network and the inference post-processing. A nil
// amplifier disables the trend override.
type Classifier struct {
	mu        sync.RWMutex
	net       *Network
	amplifier *TrendAmplifier
	log       *logger.Logger
}

type ClassifierOption func(*Classifier)

func WithNetwork(n *Network) ClassifierOption {
	return func(c *Classifier) { c.net = n }
}

// WithAmplifier replaces the default amplifier. Pass nil to disable it.
func WithAmplifier(a *TrendAmplifier) ClassifierOption {
	return func(c *Classifier) { c.amplifier = a }
}

func WithClassifierLogger(l *logger.Logger) ClassifierOption {
	return func(c *Classifier) { c.log = l }
}

func NewClassifier(opts ...ClassifierOption) *Classifier {
	c := &Classifier{amplifier: NewTrendAmplifier(), log: logger.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetNetwork swaps the model used by Predict.
func (c *Classifier) SetNetwork(n *Network) {
	c.mu.Lock()
	c.net = n
	c.mu.Unlock()
}

func (c *Classifier) Trained() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.net != nil
}

// Predict returns class probabilities summing to 1 with a confidence score.
func (c *Classifier) Predict(f models.FeatureVector) (models.RegimePrediction, error) {
	c.mu.RLock()
	net := c.net
	c.mu.RUnlock()
	if net == nil {
		return models.RegimePrediction{}, models.ErrModelNotTrained
	}
	if !f.IsFinite() {
		c.log.Warn("non-finite features, using default prediction", logger.Any("features", f))
		return withConfidence(DefaultPrediction, false), nil
	}

	p := net.Predict(f)
	for i := range p {
		p[i] = math.Max(probabilityFloor, p[i])
	}
	amplified := false
	if c.amplifier != nil {
		p, amplified = c.amplifier.Apply(f, p)
	}

	p, ok := normalize(p)
	if !ok {
		c.log.Warn("degenerate network output, using default prediction")
		return withConfidence(DefaultPrediction, false), nil
	}
	return withConfidence(p, amplified), nil
}

func normalize(p [models.NumRegimes]float64) ([models.NumRegimes]float64, bool) {
	sum := 0.0
	for _, v := range p {
		if !mathx.Finite(v) || v < 0 {
			return p, false
		}
		sum += v
	}
	if sum <= 0 {
		return p, false
	}
	for i := range p {
		p[i] /= sum
	}
	return p, true
}

func withConfidence(p [models.NumRegimes]float64, amplified bool) models.RegimePrediction {
	pred := models.NewRegimePrediction(p)
	pred.Confidence = Confidence(p)
	pred.Amplified = amplified
	return pred
}

// Confidence weighs the dominant share at 0.7 and the spread of the other two
// classes around their mean at 0.3, clamped to [0, 1].
func Confidence(p [models.NumRegimes]float64) float64 {
	sum := p[0] + p[1] + p[2]
	if sum <= 0 {
		return 0
	}
	top := argmax(p[:])
	dominance := p[top] / sum

	mean := (sum - p[top]) / 2
	variance := 0.0
	for i, v := range p {
		if i != top {
			variance += (v - mean) * (v - mean)
		}
	}
	variance /= 2

	return mathx.Clamp(dominance*0.7+(1-math.Sqrt(variance))*0.3, 0, 1)
}
