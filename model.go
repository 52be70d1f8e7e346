package main

import (
	"io"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ===========================================================================
// External model contract
// ===========================================================================
//
// The memory-augmented model is a collaborator, consumed through a narrow
// tensor contract: one blocking call per step that takes the encoded
// (input, target, mask) triple, runs forward + backward + optimizer apply,
// and returns a scalar loss. The training loop never inspects the model's
// internals, and the model never inspects the pipeline.
//
// State persistence is split from file handling: the model serializes itself
// to a stream, and CheckpointManager exclusively owns the on-disk artifacts
// and their naming.
// ===========================================================================

// ModelState is the persistable part of the contract.
type ModelState interface {
	// SaveState serializes the full trainable state to w.
	SaveState(w io.Writer) error
	// LoadState replaces the full trainable state from r.
	LoadState(r io.Reader) error
}

// Model is the training-time contract.
type Model interface {
	ModelState

	// TrainStep runs one combined forward + backward + apply-gradient
	// pass over a single encoded sample and returns the scalar masked
	// loss. It blocks until the step is fully applied.
	TrainStep(step *EncodedStep) (float64, error)
}

// clipGradient clamps every element of a gradient matrix to [lo, hi] in
// place. A nil gradient (a parameter the loss does not reach) is left
// untouched.
func clipGradient(g *mat.Dense, lo, hi float64) {
	if g == nil {
		return
	}
	raw := g.RawMatrix()
	for i := range raw.Data {
		raw.Data[i] = clamp(raw.Data[i], lo, hi)
	}
}

// RMSProp implements root-mean-square propagation with momentum, the
// optimizer the controller trains under:
//
//	ms  <- decay*ms + (1-decay)*g^2
//	mom <- momentum*mom + lr*g/sqrt(ms+eps)
//	w   <- w - mom
//
// One accumulator pair is kept per parameter, lazily sized on first use.
type RMSProp struct {
	LearningRate float64
	Momentum     float64
	Decay        float64
	Epsilon      float64

	ms  map[string]*mat.Dense
	mom map[string]*mat.Dense
}

// NewRMSProp creates an optimizer with the given learning rate and momentum
// and conventional decay/epsilon.
func NewRMSProp(lr, momentum float64) *RMSProp {
	return &RMSProp{
		LearningRate: lr,
		Momentum:     momentum,
		Decay:        0.9,
		Epsilon:      1e-10,
		ms:           make(map[string]*mat.Dense),
		mom:          make(map[string]*mat.Dense),
	}
}

// Apply updates one named parameter from its gradient. A nil gradient is a
// no-op: parameters the loss does not reach are passed through unmodified.
func (o *RMSProp) Apply(name string, param, grad *mat.Dense) {
	if grad == nil {
		return
	}

	rows, cols := param.Dims()
	ms, ok := o.ms[name]
	if !ok {
		ms = mat.NewDense(rows, cols, nil)
		o.ms[name] = ms
	}
	mom, ok := o.mom[name]
	if !ok {
		mom = mat.NewDense(rows, cols, nil)
		o.mom[name] = mom
	}

	p := param.RawMatrix().Data
	g := grad.RawMatrix().Data
	m := ms.RawMatrix().Data
	v := mom.RawMatrix().Data
	for i := range p {
		m[i] = o.Decay*m[i] + (1-o.Decay)*g[i]*g[i]
		v[i] = o.Momentum*v[i] + o.LearningRate*g[i]/math.Sqrt(m[i]+o.Epsilon)
		p[i] -= v[i]
	}
}
