package onnx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewImageTensor(t *testing.T) {
	data := make([]float32, 3*4*5)
	tensor, err := NewImageTensor(data, 3, 4, 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 4, 5}, tensor.Shape)
	assert.Len(t, tensor.Data, 60)
}

func TestNewImageTensorErrors(t *testing.T) {
	_, err := NewImageTensor(nil, 3, 4, 5)
	assert.Error(t, err)

	_, err = NewImageTensor(make([]float32, 10), 3, 4, 5)
	assert.Error(t, err)
}

func TestValidateNCHW(t *testing.T) {
	assert.NoError(t, ValidateNCHW([]int64{1, 3, 640, 640}))
	assert.Error(t, ValidateNCHW([]int64{1, 3, 640}))
	assert.Error(t, ValidateNCHW([]int64{1, 3, 0, 640}))
	assert.Error(t, ValidateNCHW([]int64{1, 3, -1, 640}))
}

func TestVerifyImageTensor(t *testing.T) {
	tensor, err := NewImageTensor(make([]float32, 12), 3, 2, 2)
	require.NoError(t, err)
	assert.NoError(t, VerifyImageTensor(tensor))

	tensor.Data = tensor.Data[:6]
	assert.Error(t, VerifyImageTensor(tensor))
}

func TestValidateGPUConfig(t *testing.T) {
	assert.NoError(t, ValidateGPUConfig(DefaultGPUConfig()))
	assert.NoError(t, ValidateGPUConfig(GPUConfig{UseGPU: true, DeviceID: 1}))
	assert.Error(t, ValidateGPUConfig(GPUConfig{UseGPU: true, DeviceID: -1}))
}
