// Package crm implements the downstream CRM client behind the
// ports.CRMClient interface.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"leadbridge/internal/syncing/ports"
	"leadbridge/platform/apperr"
	"leadbridge/platform/config"
	"leadbridge/platform/logger"
)

const defaultTimeout = 15 * time.Second

// Client talks to the CRM's REST API. Find-or-create calls are a single
// round trip on the CRM side, so a repeated call for the same name or
// email is safe and returns the existing record with Created unset.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *logger.Logger
}

func New(cfg config.CRMConfig, log *logger.Logger) *Client {
	timeout := cfg.GetCRMTimeout()
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    cfg.GetCRMBaseURL(),
		apiKey:     cfg.GetCRMAPIKey(),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(5), 10),
		log:        log,
	}
}

var _ ports.CRMClient = (*Client)(nil)

type orgResultDTO struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Created bool   `json:"created"`
}

func (c *Client) FindOrCreateOrganization(ctx context.Context, name, domain string) (*ports.OrgResult, error) {
	body := map[string]string{"name": name}
	if domain != "" {
		body["domain"] = domain
	}

	var dto orgResultDTO
	if err := c.do(ctx, http.MethodPost, "/api/v1/organizations/find-or-create", nil, body, &dto); err != nil {
		return nil, err
	}
	return &ports.OrgResult{ID: dto.ID, Name: dto.Name, Created: dto.Created}, nil
}

type personResultDTO struct {
	ID      string `json:"id"`
	OrgID   string `json:"organization_id"`
	Created bool   `json:"created"`
}

func (c *Client) FindOrCreatePerson(ctx context.Context, email, firstName, lastName, orgID string) (*ports.PersonResult, error) {
	body := map[string]string{"email": email}
	if firstName != "" {
		body["first_name"] = firstName
	}
	if lastName != "" {
		body["last_name"] = lastName
	}
	if orgID != "" {
		body["organization_id"] = orgID
	}

	var dto personResultDTO
	if err := c.do(ctx, http.MethodPost, "/api/v1/persons/find-or-create", nil, body, &dto); err != nil {
		return nil, err
	}
	return &ports.PersonResult{ID: dto.ID, OrgID: dto.OrgID, Created: dto.Created}, nil
}

type statusResultDTO struct {
	Success bool   `json:"success"`
	Skipped bool   `json:"skipped"`
	Reason  string `json:"reason"`
}

func (c *Client) SetStatus(ctx context.Context, personID, statusKey string, force bool) (*ports.StatusResult, error) {
	body := map[string]any{"status": statusKey}
	if force {
		body["force"] = true
	}

	var dto statusResultDTO
	path := "/api/v1/persons/" + url.PathEscape(personID) + "/status"
	if err := c.do(ctx, http.MethodPut, path, nil, body, &dto); err != nil {
		return nil, err
	}
	return &ports.StatusResult{Success: dto.Success, Skipped: dto.Skipped, Reason: dto.Reason}, nil
}

func (c *Client) UpdateOrganization(ctx context.Context, orgID string, update ports.OrgUpdate) error {
	body := map[string]string{}
	if update.Website != nil {
		body["website"] = *update.Website
	}
	if update.Industry != nil {
		body["industry"] = *update.Industry
	}
	if len(body) == 0 {
		return nil
	}
	return c.do(ctx, http.MethodPatch, "/api/v1/organizations/"+url.PathEscape(orgID), nil, body, nil)
}

func (c *Client) UpdatePerson(ctx context.Context, personID string, update ports.PersonUpdate) error {
	body := map[string]string{}
	if update.FirstName != nil {
		body["first_name"] = *update.FirstName
	}
	if update.LastName != nil {
		body["last_name"] = *update.LastName
	}
	if update.Phone != nil {
		body["phone"] = *update.Phone
	}
	if update.Title != nil {
		body["title"] = *update.Title
	}
	if len(body) == 0 {
		return nil
	}
	return c.do(ctx, http.MethodPatch, "/api/v1/persons/"+url.PathEscape(personID), nil, body, nil)
}

func (c *Client) AddNote(ctx context.Context, personID, body string) error {
	payload := map[string]string{"body": body}
	return c.do(ctx, http.MethodPost, "/api/v1/persons/"+url.PathEscape(personID)+"/notes", nil, payload, nil)
}

func (c *Client) AddEmailActivity(ctx context.Context, personID string, message ports.EmailMessage) error {
	payload := map[string]any{
		"external_id": message.ID,
		"direction":   message.Direction,
		"subject":     message.Subject,
		"body":        message.Body,
		"timestamp":   message.Timestamp,
	}
	return c.do(ctx, http.MethodPost, "/api/v1/persons/"+url.PathEscape(personID)+"/activities/email", nil, payload, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	err := c.doOnce(ctx, method, path, query, body, out)
	if err == nil || !apperr.IsTransient(err) {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(2 * time.Second):
	}
	return c.doOnce(ctx, method, path, query, body, out)
}

func (c *Client) doOnce(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.KindUnavailable, fmt.Sprintf("crm %s %s", method, path), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return apperr.RateLimited("crm rate limit on " + path)
	case resp.StatusCode >= 500:
		return apperr.Unavailable(fmt.Sprintf("crm %s returned %d", path, resp.StatusCode))
	case resp.StatusCode == http.StatusNotFound:
		return apperr.NotFound("crm resource " + path)
	case resp.StatusCode >= 400:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return apperr.BadRequest(fmt.Sprintf("crm %s returned %d: %s", path, resp.StatusCode, data))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode crm response: %w", err)
	}
	return nil
}
