// Package imagestore uploads diagnostic result images to the remote file
// endpoint and returns a publicly reachable URL for them.
package imagestore

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/clinic-flow/pkg/circuitbreaker"
	"github.com/jwalitptl/clinic-flow/pkg/errors"
	"github.com/jwalitptl/clinic-flow/pkg/metrics"
)

// MaxImageSize bounds the decoded payload accepted for upload.
const MaxImageSize = 10 * 1024 * 1024

var ErrEmptyImage = stderrors.New("image payload is empty")

// Image is a result image ready for upload
type Image struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Uploader stores an image and returns its URL
type Uploader interface {
	Upload(ctx context.Context, img Image) (string, error)
}

type Config struct {
	URL               string
	Timeout           time.Duration
	DirectURLTemplate string
}

// Client talks to the upload endpoint, which expects
// {"file": "<data url>", "fileName": "..."} and answers
// {"status": "success"|"error", "id", "url", "message"}.
type Client struct {
	httpClient *http.Client
	cfg        Config
	cb         *circuitbreaker.CircuitBreaker
	metrics    *metrics.Metrics
}

type uploadRequest struct {
	File     string `json:"file"`
	FileName string `json:"fileName"`
}

type uploadResponse struct {
	Status  string `json:"status"`
	ID      string `json:"id"`
	URL     string `json:"url"`
	Message string `json:"message"`
}

func NewClient(cfg Config, m *metrics.Metrics) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "imagestore",
			MaxFailures: 3,
			Timeout:     30 * time.Second,
		}),
		metrics: m,
	}
}

func (c *Client) Upload(ctx context.Context, img Image) (string, error) {
	if len(img.Data) == 0 {
		return "", errors.Validation("image is empty", ErrEmptyImage)
	}
	if len(img.Data) > MaxImageSize {
		return "", errors.Validation(fmt.Sprintf("image exceeds %d bytes", MaxImageSize), nil)
	}
	if c.cfg.URL == "" {
		return "", errors.TransientIO("image upload endpoint is not configured", nil)
	}

	start := time.Now()
	var url string
	err := c.cb.Execute(func() error {
		var err error
		url, err = c.post(ctx, img)
		return err
	})
	if c.metrics != nil {
		c.metrics.ImageUploadDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		c.observe("error")
		if _, ok := errors.As(err); ok {
			return "", err
		}
		return "", errors.TransientIO("image upload failed", err)
	}

	c.observe("success")
	return url, nil
}

func (c *Client) post(ctx context.Context, img Image) (string, error) {
	contentType := img.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(img.Data)
	}

	body, err := json.Marshal(uploadRequest{
		File:     "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(img.Data),
		FileName: img.FileName,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal upload request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("upload endpoint returned %d", resp.StatusCode)
	}

	var out uploadResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}
	if out.Status != "success" {
		msg := out.Message
		if msg == "" {
			msg = "upload rejected"
		}
		return "", fmt.Errorf("upload endpoint: %s", msg)
	}

	if out.ID != "" && c.cfg.DirectURLTemplate != "" {
		return strings.ReplaceAll(c.cfg.DirectURLTemplate, "{id}", out.ID), nil
	}
	if out.URL == "" {
		return "", fmt.Errorf("upload endpoint returned no url")
	}
	return out.URL, nil
}

func (c *Client) observe(result string) {
	if c.metrics != nil {
		c.metrics.ImageUploads.With(prometheus.Labels{"result": result}).Inc()
	}
}

// DecodeDataURL accepts either a bare base64 string or a data URL and
// returns the raw bytes and the declared content type.
func DecodeDataURL(s string) ([]byte, string, error) {
	contentType := ""
	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 {
			return nil, "", fmt.Errorf("malformed data url")
		}
		meta := s[len("data:"):comma]
		contentType = strings.TrimSuffix(meta, ";base64")
		s = s[comma+1:]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, "", fmt.Errorf("invalid base64 image: %w", err)
	}
	return data, contentType, nil
}
