package render

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"
)

// ImageLoader fetches one raster tile or image and decodes it into a
// drawable. Implementations differ by execution environment (live HTTP vs
// test fixtures) but expose the same capability.
type ImageLoader interface {
	LoadImage(ctx context.Context, url string) (image.Image, error)
}

// FeatureLoader fetches the raw bytes of a feature collection.
type FeatureLoader interface {
	LoadFeatures(ctx context.Context, url string) ([]byte, error)
}

// SourceLoader is the full loading capability a render job needs.
type SourceLoader interface {
	ImageLoader
	FeatureLoader
}

// HTTPSourceLoader loads sources over HTTP.
type HTTPSourceLoader struct {
	httpClient *http.Client
}

// NewHTTPSourceLoader creates a loader with the given request timeout.
func NewHTTPSourceLoader(timeout time.Duration) *HTTPSourceLoader {
	return &HTTPSourceLoader{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// LoadImage fetches and decodes a raster source.
func (l *HTTPSourceLoader) LoadImage(ctx context.Context, url string) (image.Image, error) {
	body, err := l.fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	img, _, err := image.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// LoadFeatures fetches a feature collection document.
func (l *HTTPSourceLoader) LoadFeatures(ctx context.Context, url string) ([]byte, error) {
	body, err := l.fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return data, nil
}

func (l *HTTPSourceLoader) fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("source error (status %d): %s", resp.StatusCode, url)
	}
	return resp.Body, nil
}
