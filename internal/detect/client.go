package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/draftbox-io/stampline/internal/ocr"
)

// Compile-time check: Client implements Detector.
var _ Detector = (*Client)(nil)

// Client calls a remote detection service over HTTP. The service receives a
// PNG body and answers with a JSON list of labeled boxes.
type Client struct {
	endpoint      string
	minConfidence float64
	httpClient    *http.Client
}

// NewClient creates a remote detector client.
func NewClient(endpoint string, timeout time.Duration, minConfidence float64) *Client {
	return &Client{
		endpoint:      endpoint,
		minConfidence: minConfidence,
		httpClient:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Name() string { return "remote" }

type wireDetection struct {
	Label      string     `json:"label"`
	Confidence float64    `json:"confidence"`
	Box        [4]float64 `json:"box"` // x1, y1, x2, y2
}

// Detect submits the image and returns detections at or above the client's
// confidence floor.
func (c *Client) Detect(ctx context.Context, image []byte) ([]Detection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("build detect request: %w", err)
	}
	req.Header.Set("Content-Type", "image/png")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detect request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read detect response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("detector returned status %d: %s", resp.StatusCode, body)
	}

	var wire []wireDetection
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("parse detect response: %w", err)
	}

	out := make([]Detection, 0, len(wire))
	for _, d := range wire {
		if d.Confidence < c.minConfidence {
			continue
		}
		out = append(out, Detection{
			Label:      d.Label,
			Confidence: d.Confidence,
			Bounds: ocr.Region{
				X:      d.Box[0],
				Y:      d.Box[1],
				Width:  d.Box[2] - d.Box[0],
				Height: d.Box[3] - d.Box[1],
			},
		})
	}
	return out, nil
}
