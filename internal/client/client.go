// Package client provides a Go client for the gamerev API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alphabot-ai/gamerev/internal/model"
	"github.com/alphabot-ai/gamerev/internal/revision"
	"github.com/google/uuid"
)

// Client is a gamerev API client. Cookies carries the caller's identity and
// is sent with every request.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Cookies    []*http.Cookie
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// UseUserID identifies as a user of the rest API.
func (c *Client) UseUserID(id uuid.UUID) {
	c.Cookies = []*http.Cookie{{Name: "user_id", Value: id.String()}}
}

// UseAnonymous identifies as an anonymous user of the restlike API.
func (c *Client) UseAnonymous(uid string, token uuid.UUID) {
	c.Cookies = []*http.Cookie{
		{Name: "uid", Value: uid},
		{Name: "token", Value: token.String()},
	}
}

// APIError is a failure reported by the server.
type APIError struct {
	Status      int    `json:"-"`
	Kind        string `json:"kind"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Href        string `json:"href"`
}

func (e *APIError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%d %s: %s: %s", e.Status, e.Kind, e.Title, e.Description)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Kind, e.Title)
}

// Is matches another *APIError by kind.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrMissingCredential = &APIError{Kind: "MISSING_CREDENTIAL"}
	ErrInvalidCredential = &APIError{Kind: "INVALID_CREDENTIAL"}
	ErrMalformedJSON     = &APIError{Kind: "MALFORMED_JSON"}
	ErrInvalidDocument   = &APIError{Kind: "INVALID_DOCUMENT"}
	ErrNotFound          = &APIError{Kind: "NOT_FOUND"}
	ErrForbidden         = &APIError{Kind: "FORBIDDEN"}
	ErrConflict          = &APIError{Kind: "CONFLICT"}
	ErrRateLimited       = &APIError{Kind: "RATE_LIMITED"}
)

type Created struct {
	GameID   uuid.UUID `json:"game_id"`
	Rev      int       `json:"rev"`
	Location string    `json:"-"`
}

type Revision struct {
	GameID uuid.UUID `json:"game_id"`
	model.Revision
	Location string `json:"-"`
}

func (c *Client) CreateGame(ctx context.Context) (Created, error) {
	var out Created
	resp, err := c.do(ctx, http.MethodPost, "/", nil, &out)
	if err != nil {
		return Created{}, err
	}
	out.Location = resp.Header.Get("Location")
	return out, nil
}

func (c *Client) ListGames(ctx context.Context) ([]model.GameSummary, error) {
	var out []model.GameSummary
	_, err := c.do(ctx, http.MethodGet, "/", nil, &out)
	return out, err
}

func (c *Client) GetGame(ctx context.Context, id uuid.UUID) (model.GameSummary, error) {
	var out model.GameSummary
	_, err := c.do(ctx, http.MethodGet, gamePath(id), nil, &out)
	return out, err
}

// TouchGame posts to the game resource of the rest API.
func (c *Client) TouchGame(ctx context.Context, id uuid.UUID) (model.GameSummary, error) {
	var out model.GameSummary
	_, err := c.do(ctx, http.MethodPost, gamePath(id), nil, &out)
	return out, err
}

// RestoreGame asks the rest API to restore the tip's shadow state. expected
// may be nil to restore whatever the tip is. A nil revision with a nil error
// means the tip had no shadow state and nothing was appended.
func (c *Client) RestoreGame(ctx context.Context, id uuid.UUID, expected *int) (*Revision, error) {
	var body any
	if expected != nil {
		body = map[string]int{"rev": *expected}
	}
	var out Revision
	resp, err := c.do(ctx, http.MethodPut, gamePath(id), body, &out)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	out.Location = resp.Header.Get("Location")
	return &out, nil
}

func (c *Client) AppendRevision(ctx context.Context, id uuid.UUID, t revision.Transformation) (Revision, error) {
	var out Revision
	resp, err := c.do(ctx, http.MethodPost, gamePath(id)+"revs/", t, &out)
	if err != nil {
		return Revision{}, err
	}
	out.Location = resp.Header.Get("Location")
	return out, nil
}

func (c *Client) ListRevisions(ctx context.Context, id uuid.UUID) ([]model.Revision, error) {
	var out []model.Revision
	_, err := c.do(ctx, http.MethodGet, gamePath(id)+"revs/", nil, &out)
	return out, err
}

func (c *Client) GetRevision(ctx context.Context, id uuid.UUID, rev int) (Revision, error) {
	var out Revision
	_, err := c.do(ctx, http.MethodGet, fmt.Sprintf("%srevs/%d/", gamePath(id), rev), nil, &out)
	return out, err
}

func gamePath(id uuid.UUID) string {
	return "/" + id.String() + "/"
}

// do sends a JSON request and decodes a JSON response into out. Responses
// with status 400 and above are returned as *APIError.
func (c *Client) do(ctx context.Context, method, path string, body, out any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if method == http.MethodPost || method == http.MethodPut {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, ck := range c.Cookies {
		req.AddCookie(ck)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.Unmarshal(respBody, apiErr); err != nil || apiErr.Kind == "" {
			apiErr.Kind = "UNKNOWN"
			apiErr.Title = strings.TrimSpace(string(respBody))
		}
		return resp, apiErr
	}
	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return resp, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return resp, nil
}
