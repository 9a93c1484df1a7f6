package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/deskagent/deskagent/internal/config"
)

// apiClient is the thin HTTP client the run/resume/pause/cancel/status
// commands use to talk to a running "deskagentd serve" instance, grounded
// on the teacher's apiClient (same getJSON/postJSON shape, stripped of the
// auth headers this daemon doesn't need since it has no multi-tenant surface).
type apiClient struct {
	baseURL    string
	httpClient *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *apiClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, path, out)
}

func (c *apiClient) postJSON(ctx context.Context, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, path, out)
}

func (c *apiClient) do(req *http.Request, path string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if readErr != nil {
			return fmt.Errorf("request %s failed: %s (read body: %w)", path, resp.Status, readErr)
		}
		if len(body) > 0 {
			return fmt.Errorf("request %s failed: %s (%s)", path, resp.Status, strings.TrimSpace(string(body)))
		}
		return fmt.Errorf("request %s failed: %s", path, resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// resolveServerAddr returns serverAddr if set, otherwise derives
// http://host:port from configPath's gateway section.
func resolveServerAddr(configPath, serverAddr string) (string, error) {
	if addr := strings.TrimSpace(serverAddr); addr != "" {
		return addr, nil
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}
	host := cfg.Gateway.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, cfg.Gateway.Port), nil
}
