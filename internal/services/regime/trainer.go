package regime

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"BTCPulse/internal/domain/models"
	"BTCPulse/internal/services/features"
	"BTCPulse/pkg/config"
	"BTCPulse/pkg/logger"
)

// ErrNoSamples is returned when the training set is empty.
var ErrNoSamples = errors.New("no training samples")

const (
	adamBeta1   = 0.9
	adamBeta2   = 0.999
	adamEpsilon = 1e-7
	// probabilities are clipped before the log in the loss
	lossEpsilon = 1e-7
)

// TrainerConfig controls a training run.
type TrainerConfig struct {
	Epochs          int
	BatchSize       int
	LearningRate    float64
	ValidationSplit float64
	Dropout         float64
	Seed            int64
}

func DefaultTrainerConfig() TrainerConfig {
	return TrainerConfig{
		Epochs:          100,
		BatchSize:       32,
		LearningRate:    0.001,
		ValidationSplit: 0.2,
		Dropout:         DefaultDropout,
		Seed:            42,
	}
}

// TrainerConfigFrom maps the model section of the service config.
func TrainerConfigFrom(cfg config.ModelConfig) TrainerConfig {
	return TrainerConfig{
		Epochs:          cfg.Epochs,
		BatchSize:       cfg.BatchSize,
		LearningRate:    cfg.LearningRate,
		ValidationSplit: cfg.ValidationSplit,
		Dropout:         cfg.DropoutRate,
		Seed:            cfg.Seed,
	}
}

// Trainer fits a fresh Network with categorical cross-entropy and Adam.
type Trainer struct {
	cfg TrainerConfig
	log *logger.Logger
}

func NewTrainer(cfg TrainerConfig, l *logger.Logger) *Trainer {
	if l == nil {
		l = logger.Nop()
	}
	return &Trainer{cfg: cfg, log: l}
}

// Train holds out the last ValidationSplit fraction of samples, in the order
// given, then runs shuffled mini-batch epochs over the rest. The returned
// history has one entry per epoch. Cancelling ctx stops between batches.
func (t *Trainer) Train(ctx context.Context, samples []features.Sample) (*Network, models.TrainingHistory, error) {
	var hist models.TrainingHistory
	if len(samples) == 0 {
		return nil, hist, ErrNoSamples
	}
	for _, s := range samples {
		if !s.Label.Valid() {
			return nil, hist, fmt.Errorf("sample %s: invalid label %d", s.Date, s.Label)
		}
	}

	split := int(math.Floor(float64(len(samples)) * (1 - t.cfg.ValidationSplit)))
	if split <= 0 {
		split = len(samples)
	}
	train, val := samples[:split], samples[split:]

	rng := rand.New(rand.NewSource(t.cfg.Seed))
	net := NewNetwork(rng, t.cfg.Dropout)
	opt := newAdam(net, t.cfg.LearningRate)

	batch := t.cfg.BatchSize
	if batch <= 0 {
		batch = len(train)
	}
	order := make([]int, len(train))
	for i := range order {
		order[i] = i
	}

	started := time.Now()
	for epoch := 0; epoch < t.cfg.Epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		var lossSum float64
		var correct int
		for lo := 0; lo < len(order); lo += batch {
			if err := ctx.Err(); err != nil {
				return nil, hist, err
			}
			hi := min(lo+batch, len(order))
			g := newGrads(net)
			for _, idx := range order[lo:hi] {
				s := train[idx]
				l, ok := g.accumulate(net, s, rng)
				lossSum += l
				if ok {
					correct++
				}
			}
			g.scale(1 / float64(hi-lo))
			opt.step(net, g)
		}
		hist.Loss = append(hist.Loss, lossSum/float64(len(train)))
		hist.Accuracy = append(hist.Accuracy, float64(correct)/float64(len(train)))

		if len(val) > 0 {
			vl, va := Evaluate(net, val)
			hist.ValLoss = append(hist.ValLoss, vl)
			hist.ValAccuracy = append(hist.ValAccuracy, va)
		}

		t.log.Debug("epoch finished",
			logger.Int("epoch", epoch+1),
			logger.Float64("loss", hist.Loss[epoch]),
			logger.Float64("accuracy", hist.Accuracy[epoch]),
		)
	}

	t.log.Info("training finished",
		logger.Int("samples", len(train)),
		logger.Int("validation", len(val)),
		logger.Int("epochs", t.cfg.Epochs),
		logger.Duration("elapsed", time.Since(started)),
	)
	return net, hist, nil
}

// Evaluate returns the mean loss and accuracy without dropout.
func Evaluate(net *Network, samples []features.Sample) (loss, accuracy float64) {
	if len(samples) == 0 {
		return 0, 0
	}
	correct := 0
	for _, s := range samples {
		out := net.Predict(s.Features)
		loss += crossEntropy(out[:], s.Label.Index())
		if argmax(out[:]) == s.Label.Index() {
			correct++
		}
	}
	n := float64(len(samples))
	return loss / n, float64(correct) / n
}

func crossEntropy(p []float64, label int) float64 {
	v := math.Min(math.Max(p[label], lossEpsilon), 1-lossEpsilon)
	return -math.Log(v)
}

// grads mirrors the network's parameter shapes.
type grads struct {
	w [][][]float64
	b [][]float64
}

func newGrads(n *Network) *grads {
	g := &grads{}
	for _, l := range n.Layers {
		w := make([][]float64, l.Units)
		for j := range w {
			w[j] = make([]float64, l.inputs())
		}
		g.w = append(g.w, w)
		g.b = append(g.b, make([]float64, l.Units))
	}
	return g
}

// accumulate backpropagates one sample and reports its loss and whether the
// prediction was correct.
func (g *grads) accumulate(n *Network, s features.Sample, rng *rand.Rand) (float64, bool) {
	var mask []float64
	if n.Dropout > 0 {
		keep := 1 - n.Dropout
		mask = make([]float64, n.Layers[0].Units)
		for i := range mask {
			if rng.Float64() < keep {
				mask[i] = 1 / keep
			}
		}
	}
	p := n.forward(s.Features[:], mask)
	last := len(n.Layers) - 1
	out := p.a[last]
	label := s.Label.Index()

	// softmax with cross-entropy
	delta := make([]float64, len(out))
	copy(delta, out)
	delta[label]--

	for k := last; k >= 0; k-- {
		l := n.Layers[k]
		in := p.in[k]
		for j := 0; j < l.Units; j++ {
			g.b[k][j] += delta[j]
			for i, v := range in {
				g.w[k][j][i] += delta[j] * v
			}
		}
		if k == 0 {
			break
		}
		prev := make([]float64, len(in))
		for i := range prev {
			sum := 0.0
			for j := 0; j < l.Units; j++ {
				sum += l.Weights[j][i] * delta[j]
			}
			if k-1 == 0 && p.mask != nil {
				sum *= p.mask[i]
			}
			if p.z[k-1][i] <= 0 {
				sum = 0
			}
			prev[i] = sum
		}
		delta = prev
	}
	return crossEntropy(out, label), argmax(out) == label
}

func (g *grads) scale(f float64) {
	for k := range g.w {
		for j := range g.w[k] {
			for i := range g.w[k][j] {
				g.w[k][j][i] *= f
			}
			g.b[k][j] *= f
		}
	}
}

type adam struct {
	lr     float64
	t      int
	mw, vw [][][]float64
	mb, vb [][]float64
}

func newAdam(n *Network, lr float64) *adam {
	a := &adam{lr: lr}
	a.mw, a.mb = newGrads(n).w, newGrads(n).b
	a.vw, a.vb = newGrads(n).w, newGrads(n).b
	return a
}

func (a *adam) step(n *Network, g *grads) {
	a.t++
	c1 := 1 - math.Pow(adamBeta1, float64(a.t))
	c2 := 1 - math.Pow(adamBeta2, float64(a.t))
	update := func(param, m, v *float64, grad float64) {
		*m = adamBeta1**m + (1-adamBeta1)*grad
		*v = adamBeta2**v + (1-adamBeta2)*grad*grad
		*param -= a.lr * (*m / c1) / (math.Sqrt(*v/c2) + adamEpsilon)
	}
	for k := range n.Layers {
		l := &n.Layers[k]
		for j := range l.Weights {
			for i := range l.Weights[j] {
				update(&l.Weights[j][i], &a.mw[k][j][i], &a.vw[k][j][i], g.w[k][j][i])
			}
			update(&l.Bias[j], &a.mb[k][j], &a.vb[k][j], g.b[k][j])
		}
	}
}
