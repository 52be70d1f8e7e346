package main

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ===========================================================================
// Reference recurrent controller
// ===========================================================================
//
// A single-layer tanh recurrent network over one-hot inputs with a
// vocabulary-width softmax head. It exists to exercise the Model contract
// end to end: masked softmax cross-entropy, truncated-free BPTT over the
// full sequence, element-wise gradient clipping, and an RMSProp-with-
// momentum update, all in one blocking TrainStep.
//
// Per time step t:
//
//	h_t      = tanh(Wxh x_t + Whh h_{t-1} + bh)
//	logits_t = Why h_t + by
//	loss     = sum_t mask_t * ce(softmax(logits_t), y_t) / T
//
// The memory-augmented addressing machinery of a full DNC lives behind the
// same contract; this controller is the minimal stand-in for it.
// ===========================================================================

// controller parameter names, also the serialization order.
var controllerParams = []string{"wxh", "whh", "bh", "why", "by"}

// RecurrentController implements Model.
type RecurrentController struct {
	hidden int
	vocab  int

	wxh *mat.Dense // hidden x vocab
	whh *mat.Dense // hidden x hidden
	bh  *mat.Dense // hidden x 1
	why *mat.Dense // vocab x hidden
	by  *mat.Dense // vocab x 1

	clipLow  float64
	clipHigh float64
	opt      *RMSProp
}

// ControllerConfig sizes and tunes the reference controller.
type ControllerConfig struct {
	HiddenSize   int
	VocabSize    int
	LearningRate float64
	Momentum     float64
	ClipLow      float64
	ClipHigh     float64
	Seed         int64
}

// NewRecurrentController initializes a controller with small random weights.
func NewRecurrentController(cfg ControllerConfig) (*RecurrentController, error) {
	if cfg.HiddenSize <= 0 || cfg.VocabSize <= 0 {
		return nil, errors.Errorf("invalid controller dimensions: hidden %d, vocab %d", cfg.HiddenSize, cfg.VocabSize)
	}
	if cfg.ClipLow >= cfg.ClipHigh {
		return nil, errors.Errorf("invalid clip range [%g, %g]", cfg.ClipLow, cfg.ClipHigh)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	initDense := func(rows, cols, fanIn int) *mat.Dense {
		m := mat.NewDense(rows, cols, nil)
		scale := 1.0 / math.Sqrt(float64(fanIn))
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				m.Set(i, j, rng.NormFloat64()*scale)
			}
		}
		return m
	}

	return &RecurrentController{
		hidden:   cfg.HiddenSize,
		vocab:    cfg.VocabSize,
		wxh:      initDense(cfg.HiddenSize, cfg.VocabSize, cfg.VocabSize),
		whh:      initDense(cfg.HiddenSize, cfg.HiddenSize, cfg.HiddenSize),
		bh:       mat.NewDense(cfg.HiddenSize, 1, nil),
		why:      initDense(cfg.VocabSize, cfg.HiddenSize, cfg.HiddenSize),
		by:       mat.NewDense(cfg.VocabSize, 1, nil),
		clipLow:  cfg.ClipLow,
		clipHigh: cfg.ClipHigh,
		opt:      NewRMSProp(cfg.LearningRate, cfg.Momentum),
	}, nil
}

// param returns the parameter matrix for a serialization name.
func (c *RecurrentController) param(name string) *mat.Dense {
	switch name {
	case "wxh":
		return c.wxh
	case "whh":
		return c.whh
	case "bh":
		return c.bh
	case "why":
		return c.why
	case "by":
		return c.by
	}
	panic("unknown controller parameter " + name)
}

// checkShapes validates the encoded step against the controller's
// vocabulary width before any arithmetic runs.
func (c *RecurrentController) checkShapes(step *EncodedStep) error {
	switch {
	case step.Input == nil || step.Target == nil || step.Mask == nil:
		return errors.New("encoded step has nil tensors")
	case step.Input.Width() != c.vocab:
		return errors.Errorf("input width %d, controller vocabulary %d", step.Input.Width(), c.vocab)
	case step.Target.Width() != c.vocab:
		return errors.Errorf("target width %d, controller vocabulary %d", step.Target.Width(), c.vocab)
	case step.Mask.Width() != 1:
		return errors.Errorf("mask width %d, want 1", step.Mask.Width())
	case step.Input.Steps() != step.SeqLen ||
		step.Target.Steps() != step.SeqLen ||
		step.Mask.Steps() != step.SeqLen:
		return errors.Errorf("tensor step counts %d/%d/%d do not match sequence length %d",
			step.Input.Steps(), step.Target.Steps(), step.Mask.Steps(), step.SeqLen)
	case step.SeqLen < 1:
		return errors.Errorf("sequence length %d, want >= 1", step.SeqLen)
	}
	return nil
}

// TrainStep runs forward, BPTT, element-wise gradient clipping and the
// optimizer update for one encoded sample, returning the scalar masked loss.
func (c *RecurrentController) TrainStep(step *EncodedStep) (float64, error) {
	if err := c.checkShapes(step); err != nil {
		return 0, errors.Wrap(err, "train step shape check")
	}

	T := step.SeqLen
	H := c.hidden
	V := c.vocab

	// Row-major T x V views of the one-hot tensors.
	input := step.Input.Dense().RawMatrix().Data
	target := step.Target.Dense().RawMatrix().Data

	// Forward pass, keeping hidden states and probabilities for BPTT.
	hs := make([][]float64, T+1)
	hs[0] = make([]float64, H)
	probs := make([][]float64, T)
	loss := 0.0

	for t := 0; t < T; t++ {
		x := input[t*V : (t+1)*V]
		prev := hs[t]
		h := make([]float64, H)
		for i := 0; i < H; i++ {
			a := c.bh.At(i, 0)
			for j := 0; j < V; j++ {
				if x[j] != 0 {
					a += c.wxh.At(i, j) * x[j]
				}
			}
			for j := 0; j < H; j++ {
				a += c.whh.At(i, j) * prev[j]
			}
			h[i] = math.Tanh(a)
		}
		hs[t+1] = h

		// Softmax over logits, max-shifted for stability.
		logits := make([]float64, V)
		maxLogit := math.Inf(-1)
		for i := 0; i < V; i++ {
			l := c.by.At(i, 0)
			for j := 0; j < H; j++ {
				l += c.why.At(i, j) * h[j]
			}
			logits[i] = l
			if l > maxLogit {
				maxLogit = l
			}
		}
		sum := 0.0
		for i := 0; i < V; i++ {
			logits[i] = math.Exp(logits[i] - maxLogit)
			sum += logits[i]
		}
		for i := 0; i < V; i++ {
			logits[i] /= sum
		}
		probs[t] = logits

		m := step.Mask.At(t, 0)
		if m != 0 {
			y := target[t*V : (t+1)*V]
			ce := 0.0
			for i := 0; i < V; i++ {
				if y[i] != 0 {
					ce -= y[i] * math.Log(logits[i]+1e-12)
				}
			}
			loss += m * ce
		}
	}
	loss /= float64(T)

	// Backward pass.
	grads := map[string]*mat.Dense{
		"wxh": mat.NewDense(H, V, nil),
		"whh": mat.NewDense(H, H, nil),
		"bh":  mat.NewDense(H, 1, nil),
		"why": mat.NewDense(V, H, nil),
		"by":  mat.NewDense(V, 1, nil),
	}
	carry := make([]float64, H)

	for t := T - 1; t >= 0; t-- {
		m := step.Mask.At(t, 0)
		h := hs[t+1]
		prev := hs[t]
		y := target[t*V : (t+1)*V]
		x := input[t*V : (t+1)*V]

		// dLogits = mask/T * (p - y); dh = Why^T dLogits + carry.
		dh := make([]float64, H)
		copy(dh, carry)
		if m != 0 {
			scale := m / float64(T)
			for i := 0; i < V; i++ {
				dl := scale * (probs[t][i] - y[i])
				if dl == 0 {
					continue
				}
				grads["by"].Set(i, 0, grads["by"].At(i, 0)+dl)
				for j := 0; j < H; j++ {
					grads["why"].Set(i, j, grads["why"].At(i, j)+dl*h[j])
					dh[j] += c.why.At(i, j) * dl
				}
			}
		}

		// da = dh * (1 - h^2); accumulate into Wxh, Whh, bh; carry back.
		nextCarry := make([]float64, H)
		for i := 0; i < H; i++ {
			da := dh[i] * (1 - h[i]*h[i])
			if da == 0 {
				continue
			}
			grads["bh"].Set(i, 0, grads["bh"].At(i, 0)+da)
			for j := 0; j < V; j++ {
				if x[j] != 0 {
					grads["wxh"].Set(i, j, grads["wxh"].At(i, j)+da*x[j])
				}
			}
			for j := 0; j < H; j++ {
				grads["whh"].Set(i, j, grads["whh"].At(i, j)+da*prev[j])
				nextCarry[j] += c.whh.At(i, j) * da
			}
		}
		carry = nextCarry
	}

	// Clip element-wise, then apply. Clipping happens before the optimizer
	// step; a nil gradient would pass through both untouched.
	for _, name := range controllerParams {
		clipGradient(grads[name], c.clipLow, c.clipHigh)
		c.opt.Apply(name, c.param(name), grads[name])
	}

	return loss, nil
}

// controllerHeader is the JSON header of the serialized state.
type controllerHeader struct {
	Hidden int `json:"hidden"`
	Vocab  int `json:"vocab"`
}

// SaveState writes a JSON header with the dimensions followed by the
// little-endian float64 data of each parameter in a fixed order.
func (c *RecurrentController) SaveState(w io.Writer) error {
	header, err := json.Marshal(controllerHeader{Hidden: c.hidden, Vocab: c.vocab})
	if err != nil {
		return errors.Wrap(err, "marshaling state header")
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(header))); err != nil {
		return errors.Wrap(err, "writing state header length")
	}
	if _, err := w.Write(header); err != nil {
		return errors.Wrap(err, "writing state header")
	}
	for _, name := range controllerParams {
		if err := binary.Write(w, binary.LittleEndian, c.param(name).RawMatrix().Data); err != nil {
			return errors.Wrapf(err, "writing parameter %s", name)
		}
	}
	return nil
}

// LoadState replaces the controller's parameters from a stream produced by
// SaveState. Dimension mismatches are an error, not a partial load.
func (c *RecurrentController) LoadState(r io.Reader) error {
	var headerLen uint32
	if err := binary.Read(r, binary.LittleEndian, &headerLen); err != nil {
		return errors.Wrap(err, "reading state header length")
	}
	headerBytes := make([]byte, headerLen)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return errors.Wrap(err, "reading state header")
	}
	var header controllerHeader
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return errors.Wrap(err, "parsing state header")
	}
	if header.Hidden != c.hidden || header.Vocab != c.vocab {
		return errors.Errorf("state dimensions %dx%d do not match controller %dx%d",
			header.Hidden, header.Vocab, c.hidden, c.vocab)
	}
	for _, name := range controllerParams {
		if err := binary.Read(r, binary.LittleEndian, c.param(name).RawMatrix().Data); err != nil {
			return errors.Wrapf(err, "reading parameter %s", name)
		}
	}
	return nil
}
