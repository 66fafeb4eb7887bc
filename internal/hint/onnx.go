package hint

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"TradeSentinel/internal/model"
)

var initOnce sync.Once
var initErr error

// InitRuntime loads the onnxruntime shared library once per process.
func InitRuntime(libPath string) error {
	initOnce.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		initErr = ort.InitializeEnvironment()
	})
	return initErr
}

// ONNXProvider runs a binary classifier exported to ONNX. The model takes a
// [1, FeatureCount] float32 input and returns [p_down, p_up].
type ONNXProvider struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

// NewONNXProvider loads modelPath with the given runtime library.
func NewONNXProvider(libPath, modelPath string) (*ONNXProvider, error) {
	if err := InitRuntime(libPath); err != nil {
		return nil, fmt.Errorf("init onnxruntime: %w", err)
	}

	input, err := ort.NewTensor(ort.NewShape(1, int64(model.FeatureCount)), make([]float32, model.FeatureCount))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 2))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}
	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input"}, []string{"output"},
		[]ort.Value{input}, []ort.Value{output}, nil)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &ONNXProvider{session: session, input: input, output: output}, nil
}

func (p *ONNXProvider) Predict(ctx context.Context, fv model.FeatureVector) (model.Hint, error) {
	if err := ctx.Err(); err != nil {
		return model.Hint{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return model.Hint{}, ErrUnavailable
	}

	data := p.input.GetData()
	for i, v := range fv.Values() {
		data[i] = float32(v)
	}
	if err := p.session.Run(); err != nil {
		return model.Hint{}, fmt.Errorf("inference: %w", err)
	}
	out := p.output.GetData()
	return Calibrate(float64(out[1]), fv), nil
}

func (p *ONNXProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session != nil {
		p.session.Destroy()
		p.session = nil
	}
	if p.input != nil {
		p.input.Destroy()
		p.input = nil
	}
	if p.output != nil {
		p.output.Destroy()
		p.output = nil
	}
	return nil
}
