package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"net/http"
	"os"
	"time"

	_ "image/png"
)

// ScreenshotRenderer rasterizes submitted markup through the external
// headless-browser rendering service. The service accepts raw markup and
// answers with a PNG screenshot.
type ScreenshotRenderer struct {
	endpoint string
	client   *http.Client
}

func NewScreenshotRenderer() *ScreenshotRenderer {
	return &ScreenshotRenderer{
		endpoint: os.Getenv("RENDERER_URL"),
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (r *ScreenshotRenderer) Render(ctx context.Context, markup string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewBufferString(markup))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/html")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("render request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("renderer answered %d", resp.StatusCode)
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode rendered screenshot: %w", err)
	}
	return img, nil
}
