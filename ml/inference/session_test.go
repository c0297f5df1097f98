package inference

import (
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

func TestSessionConfigValidate(t *testing.T) {
	err := SessionConfig{}.Validate()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "model path")

	err = SessionConfig{ModelPath: filepath.Join(t.TempDir(), "missing.onnx")}.Validate()
	test.That(t, err, test.ShouldNotBeNil)

	modelPath := filepath.Join(t.TempDir(), "model.onnx")
	test.That(t, os.WriteFile(modelPath, []byte("not really a model"), 0o600), test.ShouldBeNil)
	test.That(t, SessionConfig{ModelPath: modelPath}.Validate(), test.ShouldBeNil)

	err = SessionConfig{ModelPath: modelPath, InputShape: []int64{1, 3, -1, 640}}.Validate()
	test.That(t, err, test.ShouldNotBeNil)

	err = SessionConfig{ModelPath: modelPath, IntraOpThreads: -2}.Validate()
	test.That(t, err, test.ShouldNotBeNil)
}

func TestStaticShape(t *testing.T) {
	test.That(t, static([]int64{1, 3, 640, 640}), test.ShouldBeTrue)
	test.That(t, static([]int64{-1, 3, 640, 640}), test.ShouldBeFalse)
	test.That(t, static(nil), test.ShouldBeFalse)
}

func TestDestroyEnvironmentWithoutInit(t *testing.T) {
	test.That(t, DestroyEnvironment(), test.ShouldBeNil)
}
