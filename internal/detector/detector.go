package detector

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"

	"github.com/rzqiy/deteksi-kwh/internal/onnx"
	"github.com/rzqiy/deteksi-kwh/internal/utils"
	"github.com/yalue/onnxruntime_go"
)

// Detector wraps one ONNX detection model behind the gateway contract:
// Detect returns zero or more detections, never an error for "nothing found".
// The session is immutable after load and safe for concurrent inference.
type Detector struct {
	config     Config
	session    *onnxruntime_go.DynamicAdvancedSession
	inputInfo  onnxruntime_go.InputOutputInfo
	outputInfo onnxruntime_go.InputOutputInfo
	labels     []string
	mu         sync.RWMutex
}

// NewDetector creates a detector for the given configuration. A missing or
// unloadable model is a fatal construction error, surfaced at startup.
func NewDetector(config Config) (*Detector, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	if _, err := os.Stat(config.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", config.ModelPath)
	}

	labels, err := LoadLabels(config.LabelsPath)
	if err != nil {
		return nil, err
	}

	slog.Debug("Initializing detector",
		"model_path", config.ModelPath,
		"classes", len(labels),
		"input_size", config.InputSize,
		"gpu_enabled", config.GPU.UseGPU)

	if err := onnx.EnsureEnvironment(config.GPU.UseGPU); err != nil {
		return nil, err
	}

	inputInfo, outputInfo, err := inspectModel(config.ModelPath)
	if err != nil {
		return nil, err
	}

	session, err := createSession(config.ModelPath, inputInfo, outputInfo, config)
	if err != nil {
		return nil, err
	}

	slog.Debug("Detector initialized successfully", "model_path", config.ModelPath)
	return &Detector{
		config:     config,
		session:    session,
		inputInfo:  inputInfo,
		outputInfo: outputInfo,
		labels:     labels,
	}, nil
}

// Close releases the underlying session.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session != nil {
		if err := d.session.Destroy(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to destroy detector session: %v\n", err)
		}
		d.session = nil
	}
	// The shared runtime environment is torn down at process exit, not here.
	return nil
}

// GetConfig returns a copy of the detector's configuration.
func (d *Detector) GetConfig() Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.config
}

// Labels returns the class names the model predicts.
func (d *Detector) Labels() []string {
	out := make([]string, len(d.labels))
	copy(out, d.labels)
	return out
}

// Detect runs inference on img and returns all detections above the
// configured confidence threshold, NMS-applied, in model output order.
// An empty result is a normal outcome, not an error.
func (d *Detector) Detect(img image.Image) ([]Detection, error) {
	if img == nil {
		return nil, errors.New("input image is nil")
	}

	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()

	lb := utils.Letterbox(img, d.config.InputSize)
	data, w, h := utils.NormalizeImage(lb.Image)
	tensor, err := onnx.NewImageTensor(data, 3, h, w)
	if err != nil {
		return nil, fmt.Errorf("failed to create tensor: %w", err)
	}

	outputData, outputShape, err := d.runInference(tensor)
	if err != nil {
		return nil, err
	}

	candidates, err := decodeOutput(outputData, outputShape, d.labels, lb, srcW, srcH, d.config.ConfThreshold)
	if err != nil {
		return nil, err
	}
	kept := applyNMS(candidates, d.config.IoUThreshold)

	slog.Debug("Detection completed",
		"model_path", d.config.ModelPath,
		"candidates", len(candidates),
		"kept", len(kept))
	return kept, nil
}

func (d *Detector) runInference(tensor onnx.Tensor) ([]float32, []int64, error) {
	if err := onnx.VerifyImageTensor(tensor); err != nil {
		return nil, nil, fmt.Errorf("invalid tensor: %w", err)
	}

	d.mu.RLock()
	session := d.session
	d.mu.RUnlock()
	if session == nil {
		return nil, nil, errors.New("detector session is closed")
	}

	inputTensor, err := onnxruntime_go.NewTensor(onnxruntime_go.NewShape(tensor.Shape...), tensor.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer func() {
		if err := inputTensor.Destroy(); err != nil {
			fmt.Fprintf(os.Stderr, "Error destroying input tensor: %v\n", err)
		}
	}()

	outputs := []onnxruntime_go.Value{nil}
	if err := session.Run([]onnxruntime_go.Value{inputTensor}, outputs); err != nil {
		return nil, nil, fmt.Errorf("inference failed: %w", err)
	}
	outputTensor := outputs[0]
	defer func() {
		if err := outputTensor.Destroy(); err != nil {
			fmt.Fprintf(os.Stderr, "Error destroying output tensor: %v\n", err)
		}
	}()

	floatTensor, ok := outputTensor.(*onnxruntime_go.Tensor[float32])
	if !ok {
		return nil, nil, fmt.Errorf("expected float32 output tensor, got %T", outputTensor)
	}

	shape := outputTensor.GetShape()
	data := make([]float32, len(floatTensor.GetData()))
	copy(data, floatTensor.GetData())
	return data, shape, nil
}

// GetModelInfo returns information about the loaded detection model.
func (d *Detector) GetModelInfo() map[string]interface{} {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return map[string]interface{}{
		"model_path":     d.config.ModelPath,
		"labels_path":    d.config.LabelsPath,
		"classes":        d.labels,
		"input_name":     d.inputInfo.Name,
		"output_name":    d.outputInfo.Name,
		"input_size":     d.config.InputSize,
		"conf_threshold": d.config.ConfThreshold,
		"iou_threshold":  d.config.IoUThreshold,
		"num_threads":    d.config.NumThreads,
		"gpu_enabled":    d.config.GPU.UseGPU,
	}
}

func inspectModel(modelPath string) (onnxruntime_go.InputOutputInfo, onnxruntime_go.InputOutputInfo, error) {
	inputs, outputs, err := onnxruntime_go.GetInputOutputInfo(modelPath)
	if err != nil {
		return onnxruntime_go.InputOutputInfo{}, onnxruntime_go.InputOutputInfo{},
			fmt.Errorf("failed to get model input/output info: %w", err)
	}
	if len(inputs) != 1 {
		return onnxruntime_go.InputOutputInfo{}, onnxruntime_go.InputOutputInfo{},
			fmt.Errorf("expected 1 input, got %d", len(inputs))
	}
	if len(outputs) != 1 {
		return onnxruntime_go.InputOutputInfo{}, onnxruntime_go.InputOutputInfo{},
			fmt.Errorf("expected 1 output, got %d", len(outputs))
	}
	if len(inputs[0].Dimensions) != 4 {
		return onnxruntime_go.InputOutputInfo{}, onnxruntime_go.InputOutputInfo{},
			fmt.Errorf("expected 4D input tensor, got %dD", len(inputs[0].Dimensions))
	}
	return inputs[0], outputs[0], nil
}

func createSession(modelPath string, inputInfo, outputInfo onnxruntime_go.InputOutputInfo,
	config Config,
) (*onnxruntime_go.DynamicAdvancedSession, error) {
	sessionOptions, err := onnxruntime_go.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer func() {
		if err := sessionOptions.Destroy(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to destroy session options: %v\n", err)
		}
	}()

	if err := onnx.ConfigureSessionForGPU(sessionOptions, config.GPU); err != nil {
		return nil, fmt.Errorf("failed to configure GPU: %w", err)
	}
	if config.NumThreads > 0 {
		if err := sessionOptions.SetIntraOpNumThreads(config.NumThreads); err != nil {
			return nil, fmt.Errorf("failed to set thread count: %w", err)
		}
	}

	session, err := onnxruntime_go.NewDynamicAdvancedSession(modelPath,
		[]string{inputInfo.Name}, []string{outputInfo.Name}, sessionOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	return session, nil
}
