package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// RemoteGateway talks to the backend wiki cache service.
type RemoteGateway struct {
	baseURL string
	client  *http.Client
}

// NewRemoteGateway creates a gateway against the backend base URL. A nil
// client uses http.DefaultClient.
func NewRemoteGateway(baseURL string, client *http.Client) *RemoteGateway {
	if client == nil {
		client = http.DefaultClient
	}
	return &RemoteGateway{baseURL: strings.TrimSuffix(baseURL, "/"), client: client}
}

// Lookup fetches a cached wiki. An empty response body is a miss.
func (g *RemoteGateway) Lookup(ctx context.Context, key Key) (*Entry, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cacheURL(key), nil)
	if err != nil {
		return nil, false, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("cache lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode >= 400 {
		return nil, false, fmt.Errorf("cache lookup: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, false, fmt.Errorf("cache lookup: read body: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 || string(bytes.TrimSpace(body)) == "null" {
		return nil, false, nil
	}

	var entry Entry
	if err := json.Unmarshal(body, &entry); err != nil {
		return nil, false, fmt.Errorf("cache lookup: decode: %w", err)
	}
	if entry.Empty() {
		return nil, false, nil
	}
	return &entry, true, nil
}

// Save stores a generated wiki. Best-effort by contract; callers log and
// move on when it fails.
func (g *RemoteGateway) Save(ctx context.Context, key Key, entry *Entry) error {
	payload := struct {
		Owner         string `json:"owner"`
		Repo          string `json:"repo"`
		RepoType      string `json:"repo_type"`
		Language      string `json:"language"`
		Comprehensive bool   `json:"comprehensive"`
		Entry
	}{
		Owner:         key.Owner,
		Repo:          key.Repo,
		RepoType:      string(key.Platform),
		Language:      key.Language,
		Comprehensive: key.Comprehensive,
		Entry:         *entry,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("cache save: encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/wiki_cache", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("cache save: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("cache save: HTTP %d", resp.StatusCode)
	}
	return nil
}

func (g *RemoteGateway) cacheURL(key Key) string {
	q := url.Values{}
	q.Set("owner", key.Owner)
	q.Set("repo", key.Repo)
	q.Set("repo_type", string(key.Platform))
	q.Set("language", key.Language)
	q.Set("comprehensive", strconv.FormatBool(key.Comprehensive))
	return g.baseURL + "/api/wiki_cache?" + q.Encode()
}
