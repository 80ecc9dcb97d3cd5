// Package supabase talks to a hosted Supabase project: GoTrue for sessions
// and PostgREST for the loyalty remote procedures.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"uplus-loyalty/internal/config"
)

// maxBody caps how much of a response is read.
const maxBody = 1 << 20

// APIError is a non-2xx answer from GoTrue or PostgREST.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("supabase %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("supabase %d: %s", e.Status, e.Message)
}

// Client performs authenticated REST calls against one project.
type Client struct {
	baseURL string
	anonKey string
	http    *http.Client
	log     *zerolog.Logger
}

func NewClient(cfg config.SupabaseConfig, logger *zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		anonKey: cfg.AnonKey,
		http:    &http.Client{Timeout: timeout},
		log:     logger,
	}
}

// do sends body as JSON to path. bearer defaults to the anon key.
func (c *Client) do(ctx context.Context, method, path, bearer string, body any) ([]byte, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", path, err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, err
	}
	if bearer == "" {
		bearer = c.anonKey
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := parseError(resp.StatusCode, data)
		c.log.Debug().Int("status", resp.StatusCode).Str("path", path).Str("code", apiErr.Code).Msg("supabase request rejected")
		return nil, apiErr
	}
	return data, nil
}

// parseError reads the error shapes used by GoTrue ({error, error_description},
// {code, msg}, {error_code, msg}) and PostgREST ({code, message}).
func parseError(status int, body []byte) *APIError {
	e := &APIError{Status: status}
	if !gjson.ValidBytes(body) {
		e.Message = strings.TrimSpace(string(body))
		if e.Message == "" {
			e.Message = http.StatusText(status)
		}
		return e
	}
	res := gjson.ParseBytes(body)
	for _, k := range []string{"error_code", "code", "error"} {
		if v := res.Get(k); v.Exists() && v.Type == gjson.String {
			e.Code = v.String()
			break
		}
	}
	for _, k := range []string{"msg", "message", "error_description", "error"} {
		if v := res.Get(k); v.Exists() && v.String() != "" {
			e.Message = v.String()
			break
		}
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}
