package inference

import (
	"context"
	"os"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/multierr"
)

// SessionConfig describes how to load an ONNX model.
type SessionConfig struct {
	ModelPath string
	// SharedLibraryPath points at the onnxruntime shared library. Empty uses the platform default.
	SharedLibraryPath string
	// InputName and OutputName default to the first input and output of the model.
	InputName  string
	OutputName string
	// InputShape and OutputShape are required when the model declares dynamic dimensions.
	InputShape  []int64
	OutputShape []int64
	// IntraOpThreads limits the threads used inside a single operator. Zero keeps the default.
	IntraOpThreads int
}

// Validate checks the config before any native resource is touched.
func (cfg SessionConfig) Validate() error {
	if cfg.ModelPath == "" {
		return errors.New("model path is required")
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return errors.Wrapf(err, "cannot read model %q", cfg.ModelPath)
	}
	for _, shape := range [][]int64{cfg.InputShape, cfg.OutputShape} {
		for _, dim := range shape {
			if dim <= 0 {
				return errors.Errorf("tensor dimensions must be positive, got %d", dim)
			}
		}
	}
	if cfg.IntraOpThreads < 0 {
		return errors.Errorf("intra op threads cannot be negative, got %d", cfg.IntraOpThreads)
	}
	return nil
}

// Session is a Model backed by an onnxruntime session with preallocated tensors. Calls to Infer
// are serialized.
type Session struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	closed  bool
}

// NewSession loads a model. InitializeEnvironment is called on behalf of the caller and released
// again by Close.
func NewSession(cfg SessionConfig) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := InitializeEnvironment(cfg.SharedLibraryPath); err != nil {
		return nil, err
	}

	sess, err := newSession(cfg)
	if err != nil {
		return nil, multierr.Combine(err, DestroyEnvironment())
	}
	return sess, nil
}

func newSession(cfg SessionConfig) (*Session, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read model io info from %q", cfg.ModelPath)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, errors.Errorf("model %q has no inputs or outputs", cfg.ModelPath)
	}

	inName, inShape := cfg.InputName, cfg.InputShape
	if inName == "" {
		inName = inputs[0].Name
	}
	if len(inShape) == 0 {
		inShape = inputs[0].Dimensions
	}
	outName, outShape := cfg.OutputName, cfg.OutputShape
	if outName == "" {
		outName = outputs[0].Name
	}
	if len(outShape) == 0 {
		outShape = outputs[0].Dimensions
	}
	if !static(inShape) || !static(outShape) {
		return nil, errors.Errorf("model %q has dynamic shapes (in %v, out %v); set them in the config",
			cfg.ModelPath, inShape, outShape)
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(inShape...))
	if err != nil {
		return nil, errors.Wrap(err, "failed to allocate input tensor")
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(outShape...))
	if err != nil {
		return nil, multierr.Combine(errors.Wrap(err, "failed to allocate output tensor"), input.Destroy())
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, multierr.Combine(err, input.Destroy(), output.Destroy())
	}
	//nolint:errcheck
	defer options.Destroy()
	if cfg.IntraOpThreads > 0 {
		if err := options.SetIntraOpNumThreads(cfg.IntraOpThreads); err != nil {
			return nil, multierr.Combine(err, input.Destroy(), output.Destroy())
		}
	}

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{inName},
		[]string{outName},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		options,
	)
	if err != nil {
		return nil, multierr.Combine(errors.Wrapf(err, "failed to create session for %q", cfg.ModelPath),
			input.Destroy(), output.Destroy())
	}

	return &Session{session: session, input: input, output: output}, nil
}

func static(shape []int64) bool {
	if len(shape) == 0 {
		return false
	}
	for _, dim := range shape {
		if dim <= 0 {
			return false
		}
	}
	return true
}

// Infer copies input into the session, runs it, and returns a copy of the output.
func (s *Session) Infer(ctx context.Context, input []float32) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New("inference session is closed")
	}

	dst := s.input.GetData()
	if len(input) != len(dst) {
		return nil, errors.Errorf("input has %d values, model expects %d", len(input), len(dst))
	}
	copy(dst, input)
	if err := s.session.Run(); err != nil {
		return nil, errors.Wrap(err, "model inference failed")
	}

	out := make([]float32, len(s.output.GetData()))
	copy(out, s.output.GetData())
	return out, nil
}

// InputShape returns the shape of the input tensor.
func (s *Session) InputShape() []int64 {
	return append([]int64{}, s.input.GetShape()...)
}

// OutputShape returns the shape of the output tensor.
func (s *Session) OutputShape() []int64 {
	return append([]int64{}, s.output.GetShape()...)
}

// Close releases the native session and tensors.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return multierr.Combine(
		s.session.Destroy(),
		s.input.Destroy(),
		s.output.Destroy(),
		DestroyEnvironment(),
	)
}
