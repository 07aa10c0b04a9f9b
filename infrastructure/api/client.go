// Package api is the request/response side-channel of the chat backend.
// Every authenticated call carries the bearer token of the session.
package api

import (
	"bytes"
	"chat-client/auth"
	"chat-client/domain"
	"chat-client/domain/event"
	"chat-client/errors"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

const maxBodySize = 4 << 20

type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration, log *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// envelope is the shape of every data endpoint. Success is checked by successOf.
type envelope[T any] struct {
	Data T `json:"data"`
}

type authResponse struct {
	Token string          `json:"token"`
	User  domain.Identity `json:"user"`
}

func (c *Client) Login(ctx context.Context, req auth.LoginRequest) (domain.Session, error) {
	return c.authenticate(ctx, "/auth/login", req)
}

func (c *Client) Register(ctx context.Context, req auth.RegisterRequest) (domain.Session, error) {
	return c.authenticate(ctx, "/auth/register", req)
}

func (c *Client) ListUsers(ctx context.Context, token string, filter domain.Filter) ([]domain.Counterpart, error) {
	query := url.Values{}
	if filter.OnlineOnly {
		query.Set("onlineOnly", "true")
	}
	if filter.Search != "" {
		query.Set("search", filter.Search)
	}
	var env envelope[[]domain.Counterpart]
	if err := c.fetch(ctx, http.MethodGet, "/users", query, token, nil, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

func (c *Client) History(ctx context.Context, token string, counterpartID domain.UserID, page domain.Page) ([]domain.Message, error) {
	page.Number = lo.Ternary(page.Number > 0, page.Number, domain.DefaultPage.Number)
	page.Limit = lo.Ternary(page.Limit > 0, page.Limit, domain.DefaultPage.Limit)
	query := url.Values{}
	query.Set("isGroup", "false")
	query.Set("page", strconv.Itoa(page.Number))
	query.Set("limit", strconv.Itoa(page.Limit))
	var env envelope[[]domain.Message]
	path := "/messages/" + url.PathEscape(counterpartID)
	if err := c.fetch(ctx, http.MethodGet, path, query, token, nil, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

func (c *Client) MarkRead(ctx context.Context, token string, chat event.ChatRef) error {
	var env envelope[json.RawMessage]
	return c.fetch(ctx, http.MethodPost, "/messages/mark-read", nil, token, chat, &env)
}

// fetch performs a call against a data endpoint. Any failure is an ErrFetch.
func (c *Client) fetch(ctx context.Context, method, path string, query url.Values, token string, body any, out any) error {
	status, raw, err := c.do(ctx, method, path, query, token, body)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", errors.ErrFetch, method, path, err)
	}
	if status == http.StatusUnauthorized {
		return fmt.Errorf("%w: %s %s: %w", errors.ErrFetch, method, path, errors.ErrAuth)
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("%w: %s %s: status %d: %s", errors.ErrFetch, method, path, status, serverMessage(raw))
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s %s: %v", errors.ErrFetch, method, path, err)
	}
	if !successOf(raw) {
		return fmt.Errorf("%w: %s %s: %s", errors.ErrFetch, method, path, serverMessage(raw))
	}
	return nil
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (domain.Session, error) {
	status, raw, err := c.do(ctx, http.MethodPost, path, nil, "", body)
	if err != nil {
		return domain.Session{}, fmt.Errorf("%w: %v", errors.ErrAuth, err)
	}
	if status < 200 || status >= 300 {
		return domain.Session{}, fmt.Errorf("%w: %s", errors.ErrAuth, serverMessage(raw))
	}
	var resp authResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return domain.Session{}, fmt.Errorf("%w: %v", errors.ErrAuth, err)
	}
	session := domain.Session{Token: resp.Token, User: resp.User}
	if !session.Valid() {
		return domain.Session{}, fmt.Errorf("%w: incomplete session returned by server", errors.ErrAuth)
	}
	return session, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, token string, body any) (int, []byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, nil, err
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug("Request failed", "method", method, "path", path, "request_id", requestID, "error", err)
		return 0, nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	c.log.Debug("Request done", "method", method, "path", path, "request_id", requestID,
		"status", resp.StatusCode, "duration", time.Since(start))
	return resp.StatusCode, raw, nil
}

// successOf reads the "success" flag. A body without one counts as success.
func successOf(raw []byte) bool {
	var envelope struct {
		Success *bool `json:"success"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Success == nil {
		return true
	}
	return *envelope.Success
}

// serverMessage extracts the human readable error sent by the backend.
func serverMessage(raw []byte) string {
	var body struct {
		Msg     string `json:"msg"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	_ = json.Unmarshal(raw, &body)
	msg := lo.CoalesceOrEmpty(body.Msg, body.Message, body.Error)
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}
	return lo.Ellipsis(msg, 200)
}
