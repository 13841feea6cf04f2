package models

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	ModelBaseURL = "https://github.com/snakers4/silero-vad/raw"
	modelExt     = ".onnx"
)

// Model describes one downloadable VAD model
type Model struct {
	Name        string
	Path        string // path below the base URL
	Description string
}

// AvailableModels lists the known VAD models
var AvailableModels = []Model{
	{Name: "silero_vad", Path: "v4.0/files/silero_vad.onnx", Description: "Silero VAD v4, live frame classification"},
	{Name: "silero_vad_v5", Path: "v5.0/files/silero_vad.onnx", Description: "Silero VAD v5, offline segmentation"},
}

type Manager struct {
	modelDir string
	baseURL  string
	client   *http.Client
}

func NewManager(modelDir string) *Manager {
	return &Manager{
		modelDir: modelDir,
		baseURL:  ModelBaseURL,
		client:   http.DefaultClient,
	}
}

// WithBaseURL returns a copy of m downloading from baseURL
func (m *Manager) WithBaseURL(baseURL string, client *http.Client) *Manager {
	c := *m
	c.baseURL = strings.TrimSuffix(baseURL, "/")
	if client != nil {
		c.client = client
	}
	return &c
}

func (m *Manager) GetModelDir() string {
	return m.modelDir
}

func (m *Manager) EnsureModelDir() error {
	return os.MkdirAll(m.modelDir, 0755)
}

func (m *Manager) ListAvailableModels() []Model {
	return AvailableModels
}

func (m *Manager) ListDownloadedModels() ([]string, error) {
	files, err := os.ReadDir(m.modelDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	var models []string
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), modelExt) {
			continue
		}
		models = append(models, strings.TrimSuffix(file.Name(), modelExt))
	}
	sort.Strings(models)

	return models, nil
}

func (m *Manager) IsModelDownloaded(model string) bool {
	_, err := os.Stat(m.GetModelPath(model))
	return err == nil
}

func (m *Manager) GetModelPath(model string) string {
	return filepath.Join(m.modelDir, model+modelExt)
}

// DownloadModel fetches model into the model directory. progress receives
// the completed fraction, or -1 when the size is unknown.
func (m *Manager) DownloadModel(ctx context.Context, model string, progress func(float64)) error {
	info, ok := lookup(model)
	if !ok {
		return fmt.Errorf("invalid model name: %s", model)
	}

	if m.IsModelDownloaded(model) {
		return fmt.Errorf("model %s is already downloaded", model)
	}

	if err := m.EnsureModelDir(); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	url := m.baseURL + "/" + info.Path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status: %s", resp.Status)
	}

	// the model path only appears once the body is complete
	outputPath := m.GetModelPath(model)
	tmp, err := os.CreateTemp(m.modelDir, model+".*.part")
	if err != nil {
		return fmt.Errorf("failed to create model file: %w", err)
	}
	defer os.Remove(tmp.Name())

	src := io.Reader(resp.Body)
	if progress != nil {
		src = &progressReader{r: resp.Body, total: resp.ContentLength, report: progress}
	}
	if _, err := io.Copy(tmp, src); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("download interrupted: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write model file: %w", err)
	}

	if err := os.Rename(tmp.Name(), outputPath); err != nil {
		return fmt.Errorf("failed to install model file: %w", err)
	}
	return nil
}

// DownloadModelWithProgress downloads model drawing a progress bar on w
func (m *Manager) DownloadModelWithProgress(ctx context.Context, model string, w io.Writer) error {
	err := m.DownloadModel(ctx, model, func(progress float64) {
		if progress < 0 {
			return
		}
		percentage := int(progress * 100)
		bar := strings.Repeat("=", percentage/5) + strings.Repeat(" ", 20-percentage/5)
		fmt.Fprintf(w, "\r[%s] %d%%", bar, percentage)
	})
	fmt.Fprintln(w)
	return err
}

func (m *Manager) DeleteModel(model string) error {
	if _, ok := lookup(model); !ok {
		return fmt.Errorf("invalid model name: %s", model)
	}

	if !m.IsModelDownloaded(model) {
		return fmt.Errorf("model %s is not downloaded", model)
	}

	if err := os.Remove(m.GetModelPath(model)); err != nil {
		return fmt.Errorf("failed to delete model: %w", err)
	}
	return nil
}

func (m *Manager) GetModelSize(model string) (int64, error) {
	info, err := os.Stat(m.GetModelPath(model))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("model %s is not downloaded", model)
		}
		return 0, err
	}
	return info.Size(), nil
}

// PrintModelInfo writes the model listing to w
func (m *Manager) PrintModelInfo(w io.Writer, activeModel string) error {
	fmt.Fprintf(w, "VAD models in %s\n", m.modelDir)
	fmt.Fprintf(w, "Active model: %s\n\n", activeModel)

	for _, model := range AvailableModels {
		mark := " "
		if model.Name == activeModel {
			mark = "*"
		}
		state := "not downloaded"
		if size, err := m.GetModelSize(model.Name); err == nil {
			state = fmt.Sprintf("%.1f MB", float64(size)/(1024*1024))
		}
		fmt.Fprintf(w, " %s %-14s %-16s %s\n", mark, model.Name, state, model.Description)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Use 'hablara download <model>' to download a model.")
	return nil
}

func lookup(model string) (Model, bool) {
	for _, m := range AvailableModels {
		if m.Name == model {
			return m, true
		}
	}
	return Model{}, false
}

type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	report func(float64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if n > 0 {
		if p.total <= 0 {
			p.report(-1)
		} else {
			p.report(min(float64(p.read)/float64(p.total), 1))
		}
	}
	return n, err
}
