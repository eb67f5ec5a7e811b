package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukex/flowcrm/pkg/models"
)

const defaultTimeout = 10 * time.Second

// Client calls the collaborator services over HTTP with the caller's bearer token.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger.With("module", "lookup"),
	}
}

func (c *Client) GetUser(ctx context.Context, id int64, token string) (*models.User, error) {
	var user models.User

	err := c.get(ctx, fmt.Sprintf("/v1/users/%d", id), token, &user)
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (c *Client) GetTenant(ctx context.Context, token string) (*models.Tenant, error) {
	var tenant models.Tenant

	err := c.get(ctx, "/v1/tenants", token, &tenant)
	if err != nil {
		return nil, err
	}

	return &tenant, nil
}

func (c *Client) GetPipeline(ctx context.Context, id int64, token string) (models.IdName, error) {
	return c.getIdName(ctx, fmt.Sprintf("/v1/pipelines/%d", id), token)
}

func (c *Client) GetPipelineStage(ctx context.Context, id int64, token string) (models.IdName, error) {
	return c.getIdName(ctx, fmt.Sprintf("/v1/pipeline-stages/%d", id), token)
}

func (c *Client) GetProduct(ctx context.Context, id int64, token string) (models.IdName, error) {
	return c.getIdName(ctx, fmt.Sprintf("/v1/products/%d", id), token)
}

func (c *Client) GetContact(ctx context.Context, id int64, token string) (*models.Contact, error) {
	var contact models.Contact

	err := c.get(ctx, fmt.Sprintf("/v1/contacts/%d", id), token, &contact)
	if err != nil {
		return nil, err
	}

	return &contact, nil
}

func (c *Client) getIdName(ctx context.Context, path, token string) (models.IdName, error) {
	var ref models.IdName

	err := c.get(ctx, path, token, &ref)

	return ref, err
}

func (c *Client) get(ctx context.Context, path, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("lookup %s: %w", path, ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &StatusError{Path: path, StatusCode: resp.StatusCode}
	}

	err = json.NewDecoder(resp.Body).Decode(out)
	if err != nil {
		return fmt.Errorf("lookup %s: failed to decode response: %w", path, err)
	}

	c.logger.DebugContext(ctx, "Lookup succeeded", "path", path)

	return nil
}
