package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"thoughtbox/internal/domain"
)

// RemoteStore uploads blobs to an external media service over HTTP and
// returns the URL the service assigns.
type RemoteStore struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

var _ domain.BlobStore = (*RemoteStore)(nil)

// NewRemoteStore targets the service's upload endpoint. token, if non-empty,
// is sent as a bearer token.
func NewRemoteStore(endpoint, token string) *RemoteStore {
	return &RemoteStore{
		endpoint: endpoint,
		token:    token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type uploadResponse struct {
	URL string `json:"url"`
}

func (s *RemoteStore) Store(ctx context.Context, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty image", domain.ErrValidation)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: upload blob: %v", domain.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: blob service status %d: %s", domain.ErrUnavailable, resp.StatusCode, string(respBody))
	}

	var result uploadResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if result.URL == "" {
		return "", fmt.Errorf("%w: blob service returned no url", domain.ErrUnavailable)
	}
	return result.URL, nil
}
