package navidrome

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/lestrrat-go/jwx/v2/jwt"
)

const userAgent = "K-Librarian/0.4.0 (+https://github.com/noaione/klibrarian)"

// authHeader carries the bearer token; Navidrome may rotate it on any
// response.
const authHeader = "x-nd-authorization"

// Library is a minimal Navidrome library listing entry.
type Library struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

// User is the subset of a created Navidrome user the invite flow cares about.
type User struct {
	ID string `json:"id"`
}

// UserCreate is the account-creation payload. Name mirrors the username.
type UserCreate struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	IsAdmin  bool   `json:"isAdmin"`
	Name     string `json:"name"`
	Username string `json:"userName"`
}

// NewUserCreate builds an account-creation payload from redeemer credentials.
func NewUserCreate(username, email, password string, isAdmin bool) UserCreate {
	return UserCreate{
		Email:    email,
		Password: password,
		IsAdmin:  isAdmin,
		Name:     username,
		Username: username,
	}
}

type userLibraryUpdate struct {
	LibraryIDs []uint64 `json:"libraryIds"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// ErrApplyRestriction reports a failed library assignment.
var ErrApplyRestriction = errors.New("failed to apply user library restriction")

// Client talks to one Navidrome instance. The remote rotates the bearer
// credential on every call, so the whole read-request-store sequence runs
// under one mutex; concurrent redemptions serialize through this instance.
type Client struct {
	mu      sync.Mutex
	client  *http.Client
	host    string
	token   string
	isAdmin bool
}

// NewClient logs in to Navidrome, captures the bearer token, and decodes its
// admin claim.
func NewClient(ctx context.Context, host, username, password string) (*Client, error) {
	c := &Client{
		client: &http.Client{},
		host:   strings.TrimRight(host, "/"),
	}

	body, err := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode navidrome login: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Navidrome: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("navidrome login failed: status code %d", res.StatusCode)
	}

	var login loginResponse
	if err := json.NewDecoder(res.Body).Decode(&login); err != nil {
		return nil, fmt.Errorf("failed to parse Navidrome response: %w", err)
	}

	isAdmin, err := decodeAdminClaim(login.Token)
	if err != nil {
		return nil, err
	}

	c.token = login.Token
	c.isAdmin = isAdmin
	return c, nil
}

// IsAdmin reports whether the login token carried the adm claim.
func (c *Client) IsAdmin() bool {
	return c.isAdmin
}

// do issues one authenticated request and stores any rotated token from the
// response. Callers must hold c.mu.
func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode navidrome request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.host+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(authHeader, "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Navidrome: %w", err)
	}

	if rotated := res.Header.Get(authHeader); rotated != "" {
		c.token = strings.TrimPrefix(rotated, "Bearer ")
	}
	return res, nil
}

// GetLibraries lists the music libraries on the instance.
func (c *Client) GetLibraries(ctx context.Context) ([]Library, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.do(ctx, http.MethodGet, "/api/library?_start=0&_end=-1&_sort=id&_order=asc", nil)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected response from Navidrome: status code %d", res.StatusCode)
	}

	var libraries []Library
	if err := json.NewDecoder(res.Body).Decode(&libraries); err != nil {
		return nil, fmt.Errorf("failed to parse Navidrome response: %w", err)
	}
	return libraries, nil
}

// CreateUser creates a new Navidrome account.
func (c *Client) CreateUser(ctx context.Context, user UserCreate) (User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.do(ctx, http.MethodPost, "/api/user", user)
	if err != nil {
		return User{}, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return User{}, fmt.Errorf("unexpected response from Navidrome: status code %d", res.StatusCode)
	}

	var created User
	if err := json.NewDecoder(res.Body).Decode(&created); err != nil {
		return User{}, fmt.Errorf("failed to parse Navidrome response: %w", err)
	}
	return created, nil
}

// ApplyUserLibrary assigns the given libraries to an existing user.
func (c *Client) ApplyUserLibrary(ctx context.Context, userID string, libraryIDs []uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.do(ctx, http.MethodPut, "/api/user/"+userID+"/library", userLibraryUpdate{LibraryIDs: libraryIDs})
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return ErrApplyRestriction
	}
	return nil
}

// decodeAdminClaim reads the adm claim from the login JWT. The token is not
// verified; Navidrome signs it for its own use and we only need the claim.
func decodeAdminClaim(token string) (bool, error) {
	parsed, err := jwt.ParseInsecure([]byte(token))
	if err != nil {
		return false, fmt.Errorf("failed to decode Navidrome JWT token: %w", err)
	}

	claim, ok := parsed.Get("adm")
	if !ok {
		return false, nil
	}
	isAdmin, _ := claim.(bool)
	return isAdmin, nil
}
