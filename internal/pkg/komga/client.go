package komga

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const userAgent = "K-Librarian/0.4.0 (+https://github.com/noaione/klibrarian)"

// AdminRole is the role the configured Komga account must carry.
const AdminRole = "ADMIN"

// User is the subset of a Komga user the invite flow cares about.
type User struct {
	ID                 string   `json:"id"`
	Email              string   `json:"email"`
	Roles              []string `json:"roles"`
	SharedAllLibraries bool     `json:"sharedAllLibraries"`
	SharedLibrariesIDs []string `json:"sharedLibrariesIds"`
	LabelsAllow        []string `json:"labelsAllow"`
	LabelsExclude      []string `json:"labelsExclude"`
}

// IsAdmin reports whether the user carries the ADMIN role.
func (u User) IsAdmin() bool {
	for _, role := range u.Roles {
		if role == AdminRole {
			return true
		}
	}
	return false
}

// UserCreate is the account-creation payload.
type UserCreate struct {
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Roles    []string `json:"roles"`
}

// SharedLibraries scopes a user to a library subset.
type SharedLibraries struct {
	All        bool     `json:"all"`
	LibraryIDs []string `json:"libraryIds"`
}

// UserRestriction is the PATCH payload applied after account creation.
type UserRestriction struct {
	LabelsAllow     []string         `json:"labelsAllow"`
	LabelsExclude   []string         `json:"labelsExclude"`
	SharedLibraries *SharedLibraries `json:"sharedLibraries"`
}

// Library is a minimal Komga library listing entry.
type Library struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Unavailable bool   `json:"unavailable"`
}

// Violation is one field-level validation message from Komga.
type Violation struct {
	FieldName string `json:"field_name"`
	Message   string `json:"message"`
}

func (v Violation) String() string {
	return v.FieldName + ": " + v.Message
}

// ViolationsError is a structured validation response from Komga.
type ViolationsError struct {
	Violations []Violation `json:"violations"`
}

func (e *ViolationsError) Error() string {
	var sb strings.Builder
	for _, violation := range e.Violations {
		sb.WriteString(violation.String())
		sb.WriteString("\n")
	}
	return sb.String()
}

// APIError is a non-success response carrying Komga's common error body.
type APIError struct {
	Status    int    `json:"status"`
	ErrorCode string `json:"error"`
	Message   string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.ErrorCode, e.Message)
}

// ErrApplyRestriction reports a failed restriction PATCH without a parseable
// error body.
var ErrApplyRestriction = errors.New("failed to apply user restriction")

// Client talks to one Komga instance with basic auth. It is stateless per
// call and safe for concurrent use.
type Client struct {
	url      string
	username string
	password string
	client   *http.Client
}

func NewClient(url, username, password string) *Client {
	return &Client{
		url:      strings.TrimRight(url, "/"),
		username: username,
		password: password,
		client:   &http.Client{},
	}
}

// Host returns the configured Komga base URL.
func (c *Client) Host() string {
	return c.url
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode komga request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url+path, reader)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// decodeError turns a non-success response into an APIError when the common
// error body parses, or a plain status error otherwise.
func decodeError(res *http.Response) error {
	var apiErr APIError
	if err := json.NewDecoder(res.Body).Decode(&apiErr); err != nil || apiErr.Message == "" {
		return fmt.Errorf("unexpected response from Komga: status code %d", res.StatusCode)
	}
	return &apiErr
}

// GetMe returns the account the client authenticates as. Used at startup to
// verify the configured account has admin privileges.
func (c *Client) GetMe(ctx context.Context) (User, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v2/users/me", nil)
	if err != nil {
		return User{}, err
	}

	res, err := c.client.Do(req)
	if err != nil {
		return User{}, fmt.Errorf("failed to connect to Komga: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return User{}, decodeError(res)
	}

	var user User
	if err := json.NewDecoder(res.Body).Decode(&user); err != nil {
		return User{}, fmt.Errorf("failed to parse Komga response: %w", err)
	}
	return user, nil
}

// CreateUser creates a new Komga account. A non-success response is decoded
// into an APIError, or a ViolationsError when Komga returns field-level
// validation messages.
func (c *Client) CreateUser(ctx context.Context, user UserCreate) (User, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/v2/users", user)
	if err != nil {
		return User{}, err
	}

	res, err := c.client.Do(req)
	if err != nil {
		return User{}, fmt.Errorf("failed to connect to Komga: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(res.Body); err != nil {
			return User{}, fmt.Errorf("failed to read Komga error response: %w", err)
		}

		var violations ViolationsError
		if err := json.Unmarshal(buf.Bytes(), &violations); err == nil && len(violations.Violations) > 0 {
			return User{}, &violations
		}

		var apiErr APIError
		if err := json.Unmarshal(buf.Bytes(), &apiErr); err != nil {
			return User{}, fmt.Errorf("failed to parse Komga response: %w", err)
		}
		return User{}, &apiErr
	}

	var created User
	if err := json.NewDecoder(res.Body).Decode(&created); err != nil {
		return User{}, fmt.Errorf("failed to parse Komga response: %w", err)
	}
	return created, nil
}

// ApplyUserRestriction patches the label and library scoping of an existing
// user.
func (c *Client) ApplyUserRestriction(ctx context.Context, userID string, restriction UserRestriction) error {
	req, err := c.newRequest(ctx, http.MethodPatch, "/api/v2/users/"+userID, restriction)
	if err != nil {
		return err
	}

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to Komga: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return ErrApplyRestriction
	}
	return nil
}

// GetSharingLabels lists the sharing labels configured on the instance.
func (c *Client) GetSharingLabels(ctx context.Context) ([]string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/sharing-labels", nil)
	if err != nil {
		return nil, err
	}

	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Komga: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, decodeError(res)
	}

	var labels []string
	if err := json.NewDecoder(res.Body).Decode(&labels); err != nil {
		return nil, fmt.Errorf("failed to parse Komga response: %w", err)
	}
	return labels, nil
}

// GetLibraries lists the libraries on the instance.
func (c *Client) GetLibraries(ctx context.Context) ([]Library, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/libraries", nil)
	if err != nil {
		return nil, err
	}

	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Komga: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, decodeError(res)
	}

	var libraries []Library
	if err := json.NewDecoder(res.Body).Decode(&libraries); err != nil {
		return nil, fmt.Errorf("failed to parse Komga response: %w", err)
	}
	return libraries, nil
}
