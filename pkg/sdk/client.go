package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
)

// Client is a thin client for the back-office REST API. It performs no
// authorization of its own: credentials are attached and 401s handled by the
// Transport of its http.Client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// ClientOptions configures SDK client construction.
type ClientOptions struct {
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// ClientOption mutates ClientOptions.
type ClientOption func(*ClientOptions)

// WithHTTPClient overrides the HTTP client used for API calls.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(opts *ClientOptions) {
		opts.HTTPClient = client
	}
}

// WithLogger sets the logger used for request failures.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(opts *ClientOptions) {
		opts.Logger = logger
	}
}

// NewClient creates a Client for the API rooted at baseURL
// (e.g. http://localhost:8080/api).
func NewClient(baseURL string, optFns ...ClientOption) *Client {
	opts := ClientOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		httpClient: opts.HTTPClient,
		baseURL:    baseURL,
		logger:     opts.Logger,
	}
}

// Student is a student record.
type Student struct {
	ID          int64  `json:"id"`
	StudentCode string `json:"studentcode"`
	FullName    string `json:"fullname"`
	DateOfBirth string `json:"dateofbirth,omitempty"`
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
	Address     string `json:"address,omitempty"`
	Major       string `json:"major,omitempty"`
	ClassName   string `json:"classname,omitempty"`
}

// CatalogRole is an entry of the role catalog.
type CatalogRole struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// User is a user account as managed by administrators.
type User struct {
	ID       int64         `json:"id"`
	Username string        `json:"username"`
	Email    string        `json:"email"`
	FullName string        `json:"fullname"`
	IsActive bool          `json:"-"`
	Roles    []CatalogRole `json:"roles"`
}

// RoleIDs returns the normalized identifiers of the user's roles.
func (u User) RoleIDs() []string {
	ids := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		ids = append(ids, NormalizeRoleID(r.Name))
	}
	return ids
}

// UnmarshalJSON accepts both "isActive" and "active" for the account status.
func (u *User) UnmarshalJSON(data []byte) error {
	type plain User
	var raw struct {
		plain
		IsActive *bool `json:"isActive"`
		Active   *bool `json:"active"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*u = User(raw.plain)
	u.IsActive = accountActive(raw.IsActive, raw.Active)
	return nil
}

// ListStudents returns every student.
func (c *Client) ListStudents(ctx context.Context) ([]Student, error) {
	var out []Student
	if err := c.do(ctx, http.MethodGet, "/students", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetStudent returns one student by ID.
func (c *Client) GetStudent(ctx context.Context, id int64) (*Student, error) {
	var out Student
	if err := c.do(ctx, http.MethodGet, "/students/"+strconv.FormatInt(id, 10), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteStudent removes a student.
func (c *Client) DeleteStudent(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/students/"+strconv.FormatInt(id, 10), nil, nil)
}

// ListUsers returns every user account.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var out []User
	if err := c.do(ctx, http.MethodGet, "/users", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SearchUsers returns the accounts matching keyword.
func (c *Client) SearchUsers(ctx context.Context, keyword string) ([]User, error) {
	var out []User
	q := url.Values{"keyword": {keyword}}
	if err := c.do(ctx, http.MethodGet, "/users/search", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetUserByUsername returns the account named username.
func (c *Client) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var out User
	if err := c.do(ctx, http.MethodGet, "/users/username/"+url.PathEscape(username), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteUser removes a user account.
func (c *Client) DeleteUser(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/users/"+strconv.FormatInt(id, 10), nil, nil)
}

// ToggleUserStatus flips the active flag of a user account and returns the result.
func (c *Client) ToggleUserStatus(ctx context.Context, id int64) (*User, error) {
	var out User
	if err := c.do(ctx, http.MethodPatch, "/users/"+strconv.FormatInt(id, 10)+"/toggle-status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListRoles returns the role catalog.
func (c *Client) ListRoles(ctx context.Context) ([]CatalogRole, error) {
	var out []CatalogRole
	if err := c.do(ctx, http.MethodGet, "/roles", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteRole removes a role from the catalog.
func (c *Client) DeleteRole(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/roles/"+strconv.FormatInt(id, 10), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, out any) error {
	endpoint, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %w", method, path, ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("%s %s: read response: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
		c.logger.Debug("api call failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode))
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}
