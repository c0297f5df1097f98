// Package inference runs ONNX models through onnxruntime.
package inference

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// Model is a loaded network with a single float32 input and a single float32 output.
type Model interface {
	// Infer runs the model on a flattened input tensor and returns a copy of the flattened output.
	Infer(ctx context.Context, input []float32) ([]float32, error)
	InputShape() []int64
	OutputShape() []int64
	Close() error
}

var (
	envMu   sync.Mutex
	envRefs int
)

// InitializeEnvironment loads the onnxruntime shared library found at libPath and sets up the
// runtime. It may be called once per model; the runtime is torn down when every caller has
// called DestroyEnvironment.
func InitializeEnvironment(libPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if envRefs == 0 {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return errors.Wrap(err, "failed to initialize onnxruntime")
		}
	}
	envRefs++
	return nil
}

// DestroyEnvironment releases one reference taken by InitializeEnvironment.
func DestroyEnvironment() error {
	envMu.Lock()
	defer envMu.Unlock()

	if envRefs == 0 {
		return nil
	}
	envRefs--
	if envRefs > 0 {
		return nil
	}
	return errors.Wrap(ort.DestroyEnvironment(), "failed to destroy onnxruntime environment")
}
