// Package backend talks to the proxy that fronts the three upstream
// platforms: authentication, bulk events, cache refresh, calendar export and
// the meeting-link store.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	appLog "unical/internal/log"
	"unical/internal/normalize"
)

// ErrUnauthorized is returned for 401/403 responses.
var ErrUnauthorized = errors.New("backend: unauthorized")

// StatusError is returned for any other non-2xx response.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return "backend: unexpected status " + e.Status
}

// Platform names an upstream platform for login and token headers.
type Platform string

const (
	PlatformUniversity Platform = "university"
	PlatformProvider   Platform = "provider"
	PlatformLMS        Platform = "lms"
)

// Platforms lists every platform in a fixed order.
var Platforms = []Platform{PlatformUniversity, PlatformProvider, PlatformLMS}

// tokenHeaders maps a platform to the request header carrying its token.
var tokenHeaders = map[Platform]string{
	PlatformUniversity: "X-University-Token",
	PlatformProvider:   "X-Provider-Token",
	PlatformLMS:        "X-LMS-Token",
}

// ParsePlatform validates a platform name.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := tokenHeaders[p]; !ok {
		return "", fmt.Errorf("backend: unknown platform %q", s)
	}
	return p, nil
}

// Credentials are forwarded to the proxy as-is.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Query identifies a bulk-events window. TimeMax is exclusive.
type Query struct {
	CalendarID string
	Timezone   string
	TimeMin    time.Time
	TimeMax    time.Time
	Tokens     map[Platform]string
}

// Client is an HTTP client for the backend proxy.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a Client for baseURL. A zero timeout means 15s.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Login exchanges credentials for an opaque session token.
func (c *Client) Login(ctx context.Context, p Platform, creds Credentials) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/"+string(p), nil, nil, creds, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", ErrUnauthorized
	}
	return out.Token, nil
}

// FetchEvents retrieves the bulk-events document for q.
func (c *Client) FetchEvents(ctx context.Context, q Query) (*normalize.Payload, error) {
	return c.events(ctx, "/api/events", q)
}

// RefreshCache is FetchEvents with the backend cache bypassed.
func (c *Client) RefreshCache(ctx context.Context, q Query) (*normalize.Payload, error) {
	return c.events(ctx, "/api/events/refresh", q)
}

func (c *Client) events(ctx context.Context, path string, q Query) (*normalize.Payload, error) {
	body, err := c.do(ctx, http.MethodGet, path, q.values(), q.headers(), nil)
	if err != nil {
		return nil, err
	}
	p, err := normalize.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("backend: decode events: %w", err)
	}
	return p, nil
}

// ExportCalendar returns the calendar file for q without interpreting it.
func (c *Client) ExportCalendar(ctx context.Context, q Query) ([]byte, error) {
	return c.do(ctx, http.MethodGet, "/api/calendar/export", q.values(), q.headers(), nil)
}

// SaveLink stores a meeting link for one lesson.
func (c *Client) SaveLink(ctx context.Context, lessonID, link string) error {
	payload := struct {
		LessonID string `json:"lesson_id"`
		URL      string `json:"url"`
	}{LessonID: lessonID, URL: link}
	return c.doJSON(ctx, http.MethodPost, "/api/links", nil, nil, payload, nil)
}

// GetLinks returns stored links for the given lessons. Lessons without a
// link are absent from the map.
func (c *Client) GetLinks(ctx context.Context, lessonIDs []string) (map[string]string, error) {
	out := make(map[string]string)
	if len(lessonIDs) == 0 {
		return out, nil
	}
	payload := struct {
		LessonIDs []string `json:"lesson_ids"`
	}{LessonIDs: lessonIDs}
	if err := c.doJSON(ctx, http.MethodPost, "/api/links/batch", nil, nil, payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (q Query) values() url.Values {
	v := url.Values{}
	if q.CalendarID != "" {
		v.Set("calendar_id", q.CalendarID)
	}
	if q.Timezone != "" {
		v.Set("timezone", q.Timezone)
	}
	v.Set("time_min", q.TimeMin.Format(time.RFC3339))
	v.Set("time_max", q.TimeMax.Format(time.RFC3339))
	return v
}

func (q Query) headers() http.Header {
	h := http.Header{}
	for _, p := range Platforms {
		if tok := q.Tokens[p]; tok != "" {
			h.Set(tokenHeaders[p], tok)
		}
	}
	return h
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, headers http.Header, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
		if headers == nil {
			headers = http.Header{}
		}
		headers.Set("Content-Type", "application/json")
	}
	resp, err := c.do(ctx, method, path, query, headers, body)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(resp)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp, out); err != nil {
		return fmt.Errorf("backend: decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, headers http.Header, body io.Reader) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		appLog.Error("backend request failed", err, "method", method, "url", redactURL(u))
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	appLog.Debug("backend request", "method", method, "url", redactURL(u), "status", resp.StatusCode, "took", time.Since(start))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}
	return data, nil
}

// redactURL keeps only scheme and host so tokens in paths or queries never
// reach the logs.
func redactURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return "backend://...(redacted)"
	}
	return parsed.Scheme + "://" + parsed.Host + "/...(redacted)"
}
