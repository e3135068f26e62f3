// Package regime holds the feed-forward regime classifier: the network, its
// trainer, the inference post-processing and the on-disk model artifact.
package regime

import (
	"fmt"
	"math"
	"math/rand"

	"BTCPulse/internal/domain/models"
)

const (
	activationReLU    = "relu"
	activationSoftmax = "softmax"

	// ModelVersion is bumped whenever the artifact layout changes.
	ModelVersion = 1

	// DefaultDropout is the dropout rate after the first hidden layer.
	DefaultDropout = 0.2
)

// hidden layer widths, input is models.NumFeatures and output models.NumRegimes
var topology = []struct {
	units      int
	activation string
}{
	{16, activationReLU},
	{8, activationReLU},
	{models.NumRegimes, activationSoftmax},
}

// Dense is a fully connected layer. Weights are indexed [unit][input].
type Dense struct {
	Units      int         `json:"units"`
	Activation string      `json:"activation"`
	Weights    [][]float64 `json:"weights"`
	Bias       []float64   `json:"bias"`
}

func (d *Dense) inputs() int {
	if len(d.Weights) == 0 {
		return 0
	}
	return len(d.Weights[0])
}

func (d *Dense) forward(x []float64) (z, a []float64) {
	z = make([]float64, d.Units)
	for j := 0; j < d.Units; j++ {
		s := d.Bias[j]
		w := d.Weights[j]
		for i, v := range x {
			s += w[i] * v
		}
		z[j] = s
	}
	switch d.Activation {
	case activationSoftmax:
		a = softmax(z)
	default:
		a = make([]float64, len(z))
		for j, v := range z {
			a[j] = math.Max(0, v)
		}
	}
	return z, a
}

// Network is Dense(16, relu) -> Dropout -> Dense(8, relu) -> Dense(3, softmax).
type Network struct {
	Version int     `json:"version"`
	Inputs  int     `json:"inputs"`
	Dropout float64 `json:"dropout"`
	Layers  []Dense `json:"layers"`
}

// NewNetwork builds a network with He-normal weights and zero biases.
func NewNetwork(rng *rand.Rand, dropout float64) *Network {
	n := &Network{Version: ModelVersion, Inputs: models.NumFeatures, Dropout: dropout}
	in := models.NumFeatures
	for _, t := range topology {
		n.Layers = append(n.Layers, newDense(rng, in, t.units, t.activation))
		in = t.units
	}
	return n
}

func newDense(rng *rand.Rand, in, units int, activation string) Dense {
	d := Dense{Units: units, Activation: activation, Bias: make([]float64, units)}
	d.Weights = make([][]float64, units)
	std := math.Sqrt(2 / float64(in))
	for j := range d.Weights {
		row := make([]float64, in)
		for i := range row {
			row[i] = truncatedNormal(rng) * std
		}
		d.Weights[j] = row
	}
	return d
}

// truncatedNormal redraws samples beyond two standard deviations.
func truncatedNormal(rng *rand.Rand) float64 {
	for {
		v := rng.NormFloat64()
		if math.Abs(v) <= 2 {
			return v
		}
	}
}

// Validate checks the layer shapes chain from Inputs to the output classes.
func (n *Network) Validate() error {
	if n.Version != ModelVersion {
		return fmt.Errorf("unsupported model version %d", n.Version)
	}
	if len(n.Layers) != len(topology) {
		return fmt.Errorf("expected %d layers, got %d", len(topology), len(n.Layers))
	}
	in := n.Inputs
	if in != models.NumFeatures {
		return fmt.Errorf("expected %d inputs, got %d", models.NumFeatures, in)
	}
	for k, l := range n.Layers {
		if l.Units != topology[k].units || l.Activation != topology[k].activation {
			return fmt.Errorf("layer %d: unexpected shape %d/%s", k, l.Units, l.Activation)
		}
		if len(l.Weights) != l.Units || len(l.Bias) != l.Units {
			return fmt.Errorf("layer %d: weights/bias size mismatch", k)
		}
		for _, row := range l.Weights {
			if len(row) != in {
				return fmt.Errorf("layer %d: expected %d inputs per unit", k, in)
			}
		}
		in = l.Units
	}
	if n.Dropout < 0 || n.Dropout >= 1 {
		return fmt.Errorf("dropout %v out of range", n.Dropout)
	}
	return nil
}

// Predict returns the raw softmax output for f.
func (n *Network) Predict(f models.FeatureVector) [models.NumRegimes]float64 {
	c := n.forward(f[:], nil)
	var out [models.NumRegimes]float64
	copy(out[:], c.a[len(c.a)-1])
	return out
}

// pass keeps per-layer inputs and pre-activations for backpropagation.
type pass struct {
	in   [][]float64 // input to each layer, after dropout where applied
	z    [][]float64
	a    [][]float64
	mask []float64 // dropout mask on the first layer's output, nil at inference
}

// forward runs the network. mask, when set, is applied to the first hidden layer.
func (n *Network) forward(x []float64, mask []float64) pass {
	p := pass{mask: mask}
	cur := x
	for k := range n.Layers {
		p.in = append(p.in, cur)
		z, a := n.Layers[k].forward(cur)
		p.z = append(p.z, z)
		p.a = append(p.a, a)
		cur = a
		if k == 0 && mask != nil {
			dropped := make([]float64, len(a))
			for j := range a {
				dropped[j] = a[j] * mask[j]
			}
			cur = dropped
		}
	}
	return p
}

func softmax(z []float64) []float64 {
	hi := z[0]
	for _, v := range z[1:] {
		hi = math.Max(hi, v)
	}
	out := make([]float64, len(z))
	sum := 0.0
	for i, v := range z {
		out[i] = math.Exp(v - hi)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func argmax(xs []float64) int {
	best := 0
	for i := 1; i < len(xs); i++ {
		if xs[i] > xs[best] {
			best = i
		}
	}
	return best
}
