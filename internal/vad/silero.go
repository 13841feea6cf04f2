package vad

import (
	"errors"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var runtimeMu sync.Mutex

// frameShape is the model input shape, one batch of one frame
var frameShape = ort.NewShape(1, int64(FrameSize))

// initRuntime loads the onnxruntime shared library once per process
func initRuntime(libPath string) error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize onnxruntime: %w", err)
	}
	return nil
}

// sileroModel runs the Silero model one frame at a time, carrying the
// LSTM state between calls.
type sileroModel struct {
	session *ort.AdvancedSession

	input  *ort.Tensor[float32]
	rate   *ort.Tensor[int64]
	h, c   *ort.Tensor[float32]
	output *ort.Tensor[float32]
	hn, cn *ort.Tensor[float32]
}

func newSileroModel(modelPath, libPath string) (*sileroModel, error) {
	if modelPath == "" {
		return nil, errors.New("model path is empty")
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model not readable: %w", err)
	}
	if err := initRuntime(libPath); err != nil {
		return nil, err
	}

	m := &sileroModel{}
	if err := m.allocate(); err != nil {
		_ = m.close()
		return nil, err
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input", "sr", "h", "c"},
		[]string{"output", "hn", "cn"},
		[]ort.Value{m.input, m.rate, m.h, m.c},
		[]ort.Value{m.output, m.hn, m.cn},
		nil)
	if err != nil {
		_ = m.close()
		return nil, fmt.Errorf("failed to load model %s: %w", modelPath, err)
	}
	m.session = session

	return m, nil
}

func (m *sileroModel) allocate() error {
	var err error
	stateShape := ort.NewShape(2, 1, 64)

	if m.input, err = ort.NewEmptyTensor[float32](frameShape); err != nil {
		return err
	}
	if m.rate, err = ort.NewTensor(ort.NewShape(1), []int64{SampleRate}); err != nil {
		return err
	}
	if m.h, err = ort.NewEmptyTensor[float32](stateShape); err != nil {
		return err
	}
	if m.c, err = ort.NewEmptyTensor[float32](stateShape); err != nil {
		return err
	}
	if m.output, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 1)); err != nil {
		return err
	}
	if m.hn, err = ort.NewEmptyTensor[float32](stateShape); err != nil {
		return err
	}
	if m.cn, err = ort.NewEmptyTensor[float32](stateShape); err != nil {
		return err
	}
	return nil
}

func (m *sileroModel) infer(frame []float32) (float32, error) {
	copy(m.input.GetData(), frame)

	if err := m.session.Run(); err != nil {
		return 0, fmt.Errorf("inference failed: %w", err)
	}

	copy(m.h.GetData(), m.hn.GetData())
	copy(m.c.GetData(), m.cn.GetData())

	return m.output.GetData()[0], nil
}

func (m *sileroModel) reset() {
	clear(m.h.GetData())
	clear(m.c.GetData())
}

func (m *sileroModel) close() error {
	var errs []error
	if m.session != nil {
		errs = append(errs, m.session.Destroy())
		m.session = nil
	}
	for _, t := range []*ort.Tensor[float32]{m.input, m.h, m.c, m.output, m.hn, m.cn} {
		if t != nil {
			errs = append(errs, t.Destroy())
		}
	}
	if m.rate != nil {
		errs = append(errs, m.rate.Destroy())
	}
	*m = sileroModel{}
	return errors.Join(errs...)
}
