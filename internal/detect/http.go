package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/Artem468/hakaton-ml-lep/internal/model"
)

// HTTPDetector talks to a model-serving sidecar over HTTP. The sidecar loads
// weights by object key and answers a multipart POST with a JSON detection
// list.
type HTTPDetector struct {
	inferenceURL string
	client       *http.Client
}

func NewHTTPDetector(inferenceURL string, timeout time.Duration) *HTTPDetector {
	return &HTTPDetector{
		inferenceURL: inferenceURL,
		client:       &http.Client{Timeout: timeout},
	}
}

func (d *HTTPDetector) Detect(ctx context.Context, modelKey string, imageData []byte) ([]model.Detection, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("model", modelKey); err != nil {
		return nil, fmt.Errorf("write model field: %w", err)
	}
	part, err := writer.CreateFormFile("file", "image")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(imageData)); err != nil {
		return nil, fmt.Errorf("copy image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finish multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.inferenceURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference failed with status %d", resp.StatusCode)
	}

	var result struct {
		Detections []model.Detection `json:"detections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if result.Detections == nil {
		result.Detections = []model.Detection{}
	}
	return result.Detections, nil
}

// Health probes the sidecar's health endpoint.
func (d *HTTPDetector) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.inferenceURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inference service unhealthy: %d", resp.StatusCode)
	}
	return nil
}
