package regime

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"BTCPulse/internal/domain/models"
	"BTCPulse/internal/services/features"
	"BTCPulse/pkg/mathx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zeroNetwork() *Network {
	n := NewNetwork(rand.New(rand.NewSource(1)), DefaultDropout)
	for k := range n.Layers {
		for j := range n.Layers[k].Weights {
			for i := range n.Layers[k].Weights[j] {
				n.Layers[k].Weights[j][i] = 0
			}
		}
	}
	return n
}

func toySamples(n int, rng *rand.Rand) []features.Sample {
	out := make([]features.Sample, n)
	for i := range out {
		label := models.RegimeFromIndex(i % 3)
		var f models.FeatureVector
		switch label {
		case models.RegimeUptrend:
			f[0], f[8] = 2, 1
		case models.RegimeDowntrend:
			f[0], f[8] = -2, -1
		}
		f[1] = 0.05 + rng.Float64()*0.01
		f[2] = f[0]/4 + rng.NormFloat64()*0.05
		out[i] = features.Sample{Features: f, Label: label}
	}
	return out
}

func sum(p [models.NumRegimes]float64) float64 { return p[0] + p[1] + p[2] }

func TestNetworkShape(t *testing.T) {
	n := NewNetwork(rand.New(rand.NewSource(7)), DefaultDropout)
	require.NoError(t, n.Validate())
	require.Len(t, n.Layers, 3)
	assert.Equal(t, 16, n.Layers[0].Units)
	assert.Equal(t, 8, n.Layers[1].Units)
	assert.Equal(t, 3, n.Layers[2].Units)
	for _, l := range n.Layers {
		for _, b := range l.Bias {
			assert.Zero(t, b)
		}
	}

	out := n.Predict(models.FeatureVector{})
	assert.InDelta(t, 1, sum(out), 1e-9)

	n.Layers[1].Weights = n.Layers[1].Weights[:4]
	assert.Error(t, n.Validate())
}

func TestGradientsMatchFiniteDifferences(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	n := NewNetwork(rng, 0)
	s := features.Sample{
		Features: models.FeatureVector{0.4, 0.03, -0.2, 0.33, 1.2, -0.1, 0.5, 1, 1},
		Label:    models.RegimeDowntrend,
	}
	g := newGrads(n)
	g.accumulate(n, s, rng)

	loss := func() float64 {
		out := n.Predict(s.Features)
		return crossEntropy(out[:], s.Label.Index())
	}
	const h = 1e-6
	for k := range n.Layers {
		for _, ji := range [][2]int{{0, 0}, {1, 2}, {2, 1}} {
			j, i := ji[0], ji[1]
			w := &n.Layers[k].Weights[j][i]
			orig := *w
			*w = orig + h
			up := loss()
			*w = orig - h
			down := loss()
			*w = orig
			assert.InDelta(t, (up-down)/(2*h), g.w[k][j][i], 1e-5, "layer %d w[%d][%d]", k, j, i)
		}
		b := &n.Layers[k].Bias[0]
		orig := *b
		*b = orig + h
		up := loss()
		*b = orig - h
		down := loss()
		*b = orig
		assert.InDelta(t, (up-down)/(2*h), g.b[k][0], 1e-5, "layer %d bias", k)
	}
}

func TestTrainerLearnsSeparableClasses(t *testing.T) {
	samples := toySamples(300, rand.New(rand.NewSource(5)))
	cfg := DefaultTrainerConfig()
	cfg.Epochs = 60
	cfg.LearningRate = 0.01

	net, hist, err := NewTrainer(cfg, nil).Train(context.Background(), samples)
	require.NoError(t, err)
	require.NoError(t, net.Validate())
	require.Len(t, hist.Loss, cfg.Epochs)
	require.Len(t, hist.ValAccuracy, cfg.Epochs)

	assert.Less(t, hist.Loss[len(hist.Loss)-1], hist.Loss[0])
	assert.GreaterOrEqual(t, hist.ValAccuracy[len(hist.ValAccuracy)-1], 0.9)
	for _, v := range hist.ValLoss {
		assert.False(t, math.IsNaN(v))
	}
}

func TestTrainerIsDeterministic(t *testing.T) {
	samples := toySamples(60, rand.New(rand.NewSource(9)))
	cfg := DefaultTrainerConfig()
	cfg.Epochs = 3

	_, a, err := NewTrainer(cfg, nil).Train(context.Background(), samples)
	require.NoError(t, err)
	_, b, err := NewTrainer(cfg, nil).Train(context.Background(), samples)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestTrainerErrors(t *testing.T) {
	_, _, err := NewTrainer(DefaultTrainerConfig(), nil).Train(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoSamples)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = NewTrainer(DefaultTrainerConfig(), nil).Train(ctx, toySamples(10, rand.New(rand.NewSource(1))))
	assert.ErrorIs(t, err, context.Canceled)

	bad := []features.Sample{{Label: models.Regime(7)}}
	_, _, err = NewTrainer(DefaultTrainerConfig(), nil).Train(context.Background(), bad)
	assert.Error(t, err)
}

func TestClassifierUntrained(t *testing.T) {
	c := NewClassifier()
	assert.False(t, c.Trained())
	_, err := c.Predict(models.FeatureVector{})
	assert.ErrorIs(t, err, models.ErrModelNotTrained)
}

func TestClassifierProbabilities(t *testing.T) {
	c := NewClassifier(WithNetwork(NewNetwork(rand.New(rand.NewSource(11)), DefaultDropout)))
	rng := rand.New(rand.NewSource(12))
	for i := 0; i < 50; i++ {
		var f models.FeatureVector
		for j := range f {
			f[j] = rng.NormFloat64() * 3
		}
		p, err := c.Predict(f)
		require.NoError(t, err)
		probs := p.Probabilities()
		assert.InDelta(t, 1, sum(probs), 1e-6)
		for _, v := range probs {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
		assert.GreaterOrEqual(t, p.Confidence, 0.0)
		assert.LessOrEqual(t, p.Confidence, 1.0)
	}

	p, err := c.Predict(models.FeatureVector{})
	require.NoError(t, err)
	assert.InDelta(t, 1, sum(p.Probabilities()), 1e-6)
}

func TestClassifierNonFiniteFeatures(t *testing.T) {
	c := NewClassifier(WithNetwork(zeroNetwork()))
	p, err := c.Predict(models.FeatureVector{math.NaN()})
	require.NoError(t, err)
	assert.Equal(t, DefaultPrediction, p.Probabilities())
	assert.False(t, p.Amplified)
}

func TestClassifierDegenerateOutput(t *testing.T) {
	n := NewNetwork(rand.New(rand.NewSource(13)), DefaultDropout)
	out := &n.Layers[len(n.Layers)-1]
	for _, row := range out.Weights {
		for j := range row {
			row[j] = math.NaN()
		}
	}

	c := NewClassifier(WithNetwork(n))
	p, err := c.Predict(models.FeatureVector{0.1, 0.2})
	require.NoError(t, err)
	assert.Equal(t, DefaultPrediction, p.Probabilities())
	assert.False(t, p.Amplified)
	assert.True(t, mathx.Finite(p.Confidence))
}

func TestClassifierAmplifier(t *testing.T) {
	strong := models.FeatureVector{3: 0.6, 6: 0.7}

	p, err := NewClassifier(WithNetwork(zeroNetwork())).Predict(strong)
	require.NoError(t, err)
	assert.True(t, p.Amplified)
	third := 1.0 / 3.0
	total := 0.8 + 2*third*0.2
	assert.InDelta(t, 0.8/total, p.Uptrend, 1e-9)
	assert.InDelta(t, third*0.2/total, p.Downtrend, 1e-9)
	assert.Equal(t, models.RegimeUptrend, p.Dominant())

	down := models.FeatureVector{3: -0.7, 6: 0.9}
	p, err = NewClassifier(WithNetwork(zeroNetwork())).Predict(down)
	require.NoError(t, err)
	assert.Equal(t, models.RegimeDowntrend, p.Dominant())

	p, err = NewClassifier(WithNetwork(zeroNetwork()), WithAmplifier(nil)).Predict(strong)
	require.NoError(t, err)
	assert.False(t, p.Amplified)
	assert.InDelta(t, third, p.Uptrend, 1e-9)
}

func TestAmplifierThresholds(t *testing.T) {
	a := NewTrendAmplifier()
	in := [models.NumRegimes]float64{0.2, 0.3, 0.5}

	out, fired := a.Apply(models.FeatureVector{3: 0.5, 6: 0.9}, in)
	assert.False(t, fired)
	assert.Equal(t, in, out)

	out, fired = a.Apply(models.FeatureVector{3: 0.9, 6: 0.6}, in)
	assert.False(t, fired)
	assert.Equal(t, in, out)

	out, fired = a.Apply(models.FeatureVector{3: 0.9, 6: 0.61}, in)
	assert.True(t, fired)
	assert.Equal(t, 0.8, out[0])
	assert.InDelta(t, 0.06, out[1], 1e-12)
	assert.InDelta(t, 0.1, out[2], 1e-12)
}

func TestConfidence(t *testing.T) {
	assert.InDelta(t, 1.0, Confidence([models.NumRegimes]float64{1, 0, 0}), 1e-12)
	assert.InDelta(t, 0.7/3+0.3, Confidence([models.NumRegimes]float64{1, 1, 1}), 1e-12)
	assert.Zero(t, Confidence([models.NumRegimes]float64{}))

	// others 0.1 and 0.3 around 0.2: sd 0.1
	assert.InDelta(t, 0.6*0.7+0.9*0.3, Confidence([models.NumRegimes]float64{0.1, 0.6, 0.3}), 1e-12)
}

func TestSaveAndLoadNetwork(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadNetwork(dir)
	assert.ErrorIs(t, err, models.ErrModelNotTrained)

	n := NewNetwork(rand.New(rand.NewSource(21)), DefaultDropout)
	require.NoError(t, SaveNetwork(dir, n))
	loaded, err := LoadNetwork(dir)
	require.NoError(t, err)

	f := models.FeatureVector{0.3, 0.02, 0.1, 0.44, -0.2, 0.05, 0.75, 1, 1}
	assert.Equal(t, n.Predict(f), loaded.Predict(f))
}

func TestDefaultLabeledPeriods(t *testing.T) {
	periods := DefaultLabeledPeriods()
	require.Len(t, periods, 12)
	for i, p := range periods {
		assert.True(t, p.Regime.Valid())
		assert.LessOrEqual(t, p.Start, p.End)
		if i > 0 {
			assert.Greater(t, p.Start, periods[i-1].End)
		}
	}
}
