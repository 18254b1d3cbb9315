package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/boardsync/internal/protocol"
)

// HTTPFetcher loads board snapshots from the REST API.
type HTTPFetcher struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPFetcher creates a fetcher for the server at baseURL.
func NewHTTPFetcher(baseURL string, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
	}
}

// FetchBoard implements Fetcher.
func (f *HTTPFetcher) FetchBoard(ctx context.Context, workspaceID uuid.UUID) (protocol.BoardSnapshot, error) {
	url := f.BaseURL + "/api/v1/workspaces/" + workspaceID.String() + "/board"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return protocol.BoardSnapshot{}, fmt.Errorf("client.HTTPFetcher.FetchBoard: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.Client.Do(req)
	if err != nil {
		return protocol.BoardSnapshot{}, fmt.Errorf("client.HTTPFetcher.FetchBoard: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return protocol.BoardSnapshot{}, fmt.Errorf("client.HTTPFetcher.FetchBoard: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var snap protocol.BoardSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return protocol.BoardSnapshot{}, fmt.Errorf("client.HTTPFetcher.FetchBoard: decode: %w", err)
	}
	if snap.Workspace.ID == uuid.Nil {
		snap.Workspace.ID = workspaceID
	}
	return snap, nil
}
