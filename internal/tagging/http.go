package tagging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPLoader returns a Loader for a captioning model served over HTTP. The
// loader checks the endpoint answers before handing out the Captioner.
func HTTPLoader(endpoint string, timeout time.Duration) Loader {
	return func(ctx context.Context) (Captioner, error) {
		const op = "tagging.HTTPLoader"

		c := &httpCaptioner{endpoint: endpoint, client: &http.Client{Timeout: timeout}}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/health", nil)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%s: model not ready: %s", op, resp.Status)
		}
		return c, nil
	}
}

type httpCaptioner struct {
	endpoint string
	client   *http.Client
}

type captionResponse struct {
	Caption string `json:"caption"`
}

func (c *httpCaptioner) Caption(ctx context.Context, image []byte) (string, error) {
	const op = "tagging.Caption"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/caption", bytes.NewReader(image))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%s: %s: %s", op, resp.Status, bytes.TrimSpace(body))
	}
	var out captionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return out.Caption, nil
}
