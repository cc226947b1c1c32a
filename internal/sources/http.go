package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"finpod/internal/services"
)

const maxBodyBytes = 32 << 20

// get fetches url and maps failures onto the error taxonomy. 404 and 410
// mean the material does not exist yet.
func get(ctx context.Context, client *http.Client, service, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, service, "request", "build request", err)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, services.TransportError(service, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, services.TransportError(service, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		return nil, services.Wrap(services.ErrInputUnavailable, service, "request", fmt.Sprintf("%s returned %d", url, resp.StatusCode), nil)
	case resp.StatusCode >= http.StatusMultipleChoices:
		return nil, &services.HTTPStatusError{Service: service, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
