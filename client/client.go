// Package client talks to the newsboard REST API. Forms are checked with the
// server's validation schema before anything is sent.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cppla/newsboard/apperr"
	"github.com/cppla/newsboard/models"
	"github.com/cppla/newsboard/validation"
)

const defaultTimeout = 15 * time.Second

// APIError is a non-2xx response decoded from the server's error envelope.
type APIError struct {
	Status  int                 `json:"status"`
	Code    int                 `json:"code"`
	Message string              `json:"message"`
	Fields  []apperr.FieldError `json:"errors,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

// FieldErrors returns the field-level messages carried by err, whether it
// came from local validation or from the server.
func FieldErrors(err error) []apperr.FieldError {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Fields
	}
	var e *apperr.Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}

// Client is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenStore

	// accounts checks auth forms, which do not depend on categories.
	accounts *validation.Schema

	mu     sync.Mutex
	schema *validation.Schema
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithSchema skips fetching categories to build the validation schema.
func WithSchema(s *validation.Schema) Option {
	return func(c *Client) { c.schema = s }
}

// New returns a client for the API rooted at baseURL. A nil tokens keeps
// the session in memory.
func New(baseURL string, tokens TokenStore, opts ...Option) *Client {
	if tokens == nil {
		tokens = &MemoryTokenStore{}
	}
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: defaultTimeout},
		tokens:   tokens,
		accounts: validation.New(nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns the stored session.
func (c *Client) Session() (Session, error) {
	return c.tokens.Load()
}

// ListOptions selects a page of posts. Category "" or "all" lists everything.
type ListOptions struct {
	Category string
	Page     int
	Size     int
}

func (c *Client) ListPosts(ctx context.Context, opts ListOptions) (*models.PostPage, error) {
	q := url.Values{}
	if opts.Category != "" {
		q.Set("category", opts.Category)
	}
	q.Set("page", strconv.Itoa(opts.Page))
	if opts.Size > 0 {
		q.Set("size", strconv.Itoa(opts.Size))
	}
	var page models.PostPage
	if err := c.do(ctx, http.MethodGet, "/api/newsposts?"+q.Encode(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := c.do(ctx, http.MethodGet, postPath(id), nil, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) Categories(ctx context.Context) ([]models.Category, error) {
	var cats []models.Category
	if err := c.do(ctx, http.MethodGet, "/api/newsposts/categories", nil, &cats); err != nil {
		return nil, err
	}
	return cats, nil
}

// CreatePost validates req locally and then submits it.
func (c *Client) CreatePost(ctx context.Context, req models.PostCreateRequest) (*models.Post, error) {
	schema, err := c.validator(ctx)
	if err != nil {
		return nil, err
	}
	if err := schema.PostCreate(&req); err != nil {
		return nil, err
	}
	var post models.Post
	if err := c.do(ctx, http.MethodPost, "/api/newsposts", req, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// UpdatePost validates req locally and then submits it.
func (c *Client) UpdatePost(ctx context.Context, id uint, req models.PostUpdateRequest) (*models.Post, error) {
	schema, err := c.validator(ctx)
	if err != nil {
		return nil, err
	}
	req = clonePostUpdate(req)
	if err := schema.PostUpdate(&req); err != nil {
		return nil, err
	}
	var post models.Post
	if err := c.do(ctx, http.MethodPut, postPath(id), req, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) DeletePost(ctx context.Context, id uint) error {
	return c.do(ctx, http.MethodDelete, postPath(id), nil, nil)
}

// Register creates an account and stores the returned session.
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResult, error) {
	if err := c.accounts.Register(&req); err != nil {
		return nil, err
	}
	return c.authenticate(ctx, "/api/auth/register", req)
}

// Login stores the returned session.
func (c *Client) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResult, error) {
	if err := c.accounts.Login(&req); err != nil {
		return nil, err
	}
	return c.authenticate(ctx, "/api/auth/login", req)
}

// Logout revokes the token on the server and forgets it locally. The local
// session is cleared even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
	if clearErr := c.tokens.Clear(); clearErr != nil {
		return clearErr
	}
	var ae *APIError
	if errors.As(err, &ae) && ae.Status == http.StatusUnauthorized {
		return nil
	}
	return err
}

func (c *Client) CurrentUser(ctx context.Context) (*models.UserSummary, error) {
	var out struct {
		User models.UserSummary `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/auth/user", nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

func (c *Client) UpdateUser(ctx context.Context, req models.UserUpdateRequest) (*models.UserSummary, error) {
	req.Email = cloneString(req.Email)
	req.Password = cloneString(req.Password)
	if err := c.accounts.UserUpdate(&req); err != nil {
		return nil, err
	}
	var out struct {
		User models.UserSummary `json:"user"`
	}
	if err := c.do(ctx, http.MethodPut, "/api/auth/user", req, &out); err != nil {
		return nil, err
	}
	if s, err := c.tokens.Load(); err == nil && s.LoggedIn() {
		s.Email = out.User.Email
		_ = c.tokens.Save(s)
	}
	return &out.User, nil
}

// DeleteUser removes the account with all its posts and clears the session.
func (c *Client) DeleteUser(ctx context.Context) error {
	if err := c.do(ctx, http.MethodDelete, "/api/auth/user", nil, nil); err != nil {
		return err
	}
	return c.tokens.Clear()
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (*models.AuthResult, error) {
	var res models.AuthResult
	if err := c.do(ctx, http.MethodPost, path, body, &res); err != nil {
		return nil, err
	}
	if err := c.tokens.Save(Session{Token: res.Token, UserID: res.User.ID, Email: res.User.Email}); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}
	return &res, nil
}

// validator returns the post schema, building it from the server's
// category list on first use.
func (c *Client) validator(ctx context.Context) (*validation.Schema, error) {
	c.mu.Lock()
	s := c.schema
	c.mu.Unlock()
	if s != nil {
		return s, nil
	}
	cats, err := c.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading categories: %w", err)
	}
	s = validation.New(models.CategoryNames(cats))
	c.mu.Lock()
	c.schema = s
	c.mu.Unlock()
	return s, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s, err := c.tokens.Load(); err == nil && s.LoggedIn() {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if json.Unmarshal(respBody, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		apiErr.Status = resp.StatusCode
		return apiErr
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// clonePostUpdate copies the pointed-to values so that validation, which
// trims in place, leaves the caller's request untouched.
func clonePostUpdate(req models.PostUpdateRequest) models.PostUpdateRequest {
	req.Title = cloneString(req.Title)
	req.Content = cloneString(req.Content)
	req.Excerpt = cloneString(req.Excerpt)
	req.Category = cloneString(req.Category)
	if req.Tags != nil {
		tags := slices.Clone(*req.Tags)
		req.Tags = &tags
	}
	return req
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func postPath(id uint) string {
	return "/api/newsposts/" + strconv.FormatUint(uint64(id), 10)
}
