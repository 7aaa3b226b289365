package oidc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Fetcher obtiene un documento remoto (discovery, JWKS).
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

const defaultMaxBody = 1 << 20

// HTTPFetcher hace GET y devuelve el cuerpo de respuestas 2xx (máx. 1 MiB).
type HTTPFetcher struct {
	Client   *http.Client
	MaxBytes int64
}

func NewHTTPFetcher(c *http.Client) *HTTPFetcher {
	if c == nil {
		c = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPFetcher{Client: c, MaxBytes: defaultMaxBody}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("oidc: GET %s: http %d", url, resp.StatusCode)
	}
	max := f.MaxBytes
	if max <= 0 {
		max = defaultMaxBody
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > max {
		return nil, fmt.Errorf("oidc: GET %s: body exceeds %d bytes", url, max)
	}
	return body, nil
}
