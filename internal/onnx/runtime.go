package onnx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/yalue/onnxruntime_go"
)

const (
	osLinux    = "linux"
	osDarwin   = "darwin"
	osWindows  = "windows"
	libLinux   = "libonnxruntime.so"
	libDarwin  = "libonnxruntime.dylib"
	libWindows = "onnxruntime.dll"
)

// GPUConfig holds configuration for CUDA acceleration of model sessions.
type GPUConfig struct {
	UseGPU      bool   // Enable GPU acceleration
	DeviceID    int    // CUDA device ID (default: 0)
	GPUMemLimit uint64 // GPU memory limit in bytes (0 = unlimited)
}

// DefaultGPUConfig returns default GPU configuration (CPU only).
func DefaultGPUConfig() GPUConfig {
	return GPUConfig{UseGPU: false, DeviceID: 0, GPUMemLimit: 0}
}

// ValidateGPUConfig checks if the GPU configuration is valid.
func ValidateGPUConfig(config GPUConfig) error {
	if !config.UseGPU {
		return nil
	}
	if config.DeviceID < 0 {
		return fmt.Errorf("device ID must be non-negative, got %d", config.DeviceID)
	}
	return nil
}

// ConfigureSessionForGPU appends the CUDA execution provider to a session
// when GPU use is requested; with GPU disabled it is a no-op.
func ConfigureSessionForGPU(sessionOptions *onnxruntime_go.SessionOptions, gpuConfig GPUConfig) error {
	if !gpuConfig.UseGPU {
		return nil
	}

	cudaOpts, err := onnxruntime_go.NewCUDAProviderOptions()
	if err != nil {
		return fmt.Errorf("failed to create CUDA provider options (GPU may not be available): %w", err)
	}
	defer func() {
		if destroyErr := cudaOpts.Destroy(); destroyErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to destroy CUDA provider options: %v\n", destroyErr)
		}
	}()

	settings := map[string]string{
		"device_id": strconv.Itoa(gpuConfig.DeviceID),
	}
	if gpuConfig.GPUMemLimit > 0 {
		settings["gpu_mem_limit"] = strconv.FormatUint(gpuConfig.GPUMemLimit, 10)
	}
	if err := cudaOpts.Update(settings); err != nil {
		return fmt.Errorf("failed to update CUDA provider options: %w", err)
	}
	if err := sessionOptions.AppendExecutionProviderCUDA(cudaOpts); err != nil {
		return fmt.Errorf("failed to append CUDA execution provider: %w", err)
	}
	return nil
}

// EnsureEnvironment sets the ONNX Runtime shared library path and initializes
// the runtime environment once per process.
func EnsureEnvironment(useGPU bool) error {
	if err := SetLibraryPath(useGPU); err != nil {
		return fmt.Errorf("failed to set ONNX Runtime library path: %w", err)
	}
	if !onnxruntime_go.IsInitialized() {
		if err := onnxruntime_go.InitializeEnvironment(); err != nil {
			return fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
		}
	}
	return nil
}

// SetLibraryPath locates the ONNX Runtime shared library, trying system
// paths first and then a project-relative onnxruntime/ directory.
func SetLibraryPath(useGPU bool) error {
	for _, path := range systemLibraryPaths(useGPU) {
		if trySetLibraryPath(path) {
			return nil
		}
	}

	projectRoot, err := findProjectRoot()
	if err != nil {
		return err
	}
	libName, err := libraryName()
	if err != nil {
		return err
	}

	if useGPU {
		gpuLibPath := filepath.Join(projectRoot, "onnxruntime", "gpu", "lib", libName)
		if trySetLibraryPath(gpuLibPath) {
			return nil
		}
	}
	libPath := filepath.Join(projectRoot, "onnxruntime", "lib", libName)
	if !trySetLibraryPath(libPath) {
		return fmt.Errorf("ONNX Runtime library not found at %s", libPath)
	}
	return nil
}

func systemLibraryPaths(useGPU bool) []string {
	if useGPU {
		return []string{
			"/opt/onnxruntime/gpu/lib/libonnxruntime.so",
			"/usr/local/lib/libonnxruntime.so",
			"/usr/lib/libonnxruntime.so",
			"/opt/onnxruntime/cpu/lib/libonnxruntime.so",
		}
	}
	return []string{
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/libonnxruntime.so",
		"/opt/onnxruntime/cpu/lib/libonnxruntime.so",
	}
}

func findProjectRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	root := cwd
	for {
		if _, err := os.Stat(filepath.Join(root, "go.mod")); err == nil {
			return root, nil
		}
		parent := filepath.Dir(root)
		if parent == root {
			return "", errors.New("could not find project root")
		}
		root = parent
	}
}

func libraryName() (string, error) {
	switch runtime.GOOS {
	case osLinux:
		return libLinux, nil
	case osDarwin:
		return libDarwin, nil
	case osWindows:
		return libWindows, nil
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
}

func trySetLibraryPath(path string) bool {
	if _, err := os.Stat(path); err == nil {
		onnxruntime_go.SetSharedLibraryPath(path)
		return true
	}
	return false
}
