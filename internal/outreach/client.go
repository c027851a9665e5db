// Package outreach implements the engagement-platform client behind the
// ports.OutreachClient interface.
package outreach

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"leadbridge/internal/syncing/ports"
	"leadbridge/platform/apperr"
	"leadbridge/platform/config"
	"leadbridge/platform/logger"
)

const defaultTimeout = 15 * time.Second

// Client talks to the engagement platform's REST API. Requests are paced
// by a shared limiter and a 429 or 5xx gets exactly one retry after a
// short backoff; anything beyond that surfaces as a transient error for
// the ledger's retry pass.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *logger.Logger
}

func New(cfg config.OutreachConfig, log *logger.Logger) *Client {
	timeout := cfg.GetOutreachTimeout()
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    cfg.GetOutreachBaseURL(),
		apiKey:     cfg.GetOutreachAPIKey(),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(5), 10),
		log:        log,
	}
}

var _ ports.OutreachClient = (*Client)(nil)

type campaignDTO struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

func (c *Client) GetCampaign(ctx context.Context, campaignID string) (*ports.Campaign, error) {
	var dto campaignDTO
	if err := c.do(ctx, http.MethodGet, "/api/v2/campaigns/"+url.PathEscape(campaignID), nil, nil, &dto); err != nil {
		return nil, err
	}
	return &ports.Campaign{ID: dto.ID, Name: dto.Name, Status: dto.Status}, nil
}

type leadDTO struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	CompanyName    string     `json:"company_name"`
	Phone          string     `json:"phone"`
	Website        string     `json:"website"`
	Title          string     `json:"job_title"`
	ReplyCount     int        `json:"reply_count"`
	OpenCount      int        `json:"open_count"`
	ClickCount     int        `json:"click_count"`
	LastReplyAt    *time.Time `json:"last_reply_at"`
	LastOpenAt     *time.Time `json:"last_open_at"`
	LastClickAt    *time.Time `json:"last_click_at"`
	InterestStatus *int       `json:"interest_status"`
	Status         *int       `json:"status"`
}

type leadPageDTO struct {
	Leads      []leadDTO `json:"leads"`
	NextCursor string    `json:"next_cursor"`
}

func (c *Client) ListLeadsByCampaign(ctx context.Context, campaignID, cursor string, limit int) (*ports.LeadPage, error) {
	query := url.Values{}
	query.Set("campaign_id", campaignID)
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var dto leadPageDTO
	if err := c.do(ctx, http.MethodGet, "/api/v2/leads", query, nil, &dto); err != nil {
		return nil, err
	}

	page := &ports.LeadPage{NextCursor: dto.NextCursor, Leads: make([]ports.OutreachLead, 0, len(dto.Leads))}
	for _, lead := range dto.Leads {
		page.Leads = append(page.Leads, ports.OutreachLead{
			ID:             lead.ID,
			Email:          lead.Email,
			FirstName:      lead.FirstName,
			LastName:       lead.LastName,
			CompanyName:    lead.CompanyName,
			Phone:          lead.Phone,
			Website:        lead.Website,
			Title:          lead.Title,
			ReplyCount:     lead.ReplyCount,
			OpenCount:      lead.OpenCount,
			ClickCount:     lead.ClickCount,
			LastReplyAt:    lead.LastReplyAt,
			LastOpenAt:     lead.LastOpenAt,
			LastClickAt:    lead.LastClickAt,
			InterestStatus: lead.InterestStatus,
			LeadStatus:     lead.Status,
		})
	}
	return page, nil
}

type emailMessageDTO struct {
	ID        string    `json:"id"`
	Direction string    `json:"direction"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

func (c *Client) GetLeadEmailHistory(ctx context.Context, campaignID, email string) ([]ports.EmailMessage, error) {
	query := url.Values{}
	query.Set("campaign_id", campaignID)
	query.Set("email", email)

	var dto struct {
		Messages []emailMessageDTO `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v2/leads/history", query, nil, &dto); err != nil {
		return nil, err
	}

	messages := make([]ports.EmailMessage, 0, len(dto.Messages))
	for _, m := range dto.Messages {
		messages = append(messages, ports.EmailMessage{
			ID:        m.ID,
			Direction: m.Direction,
			Subject:   m.Subject,
			Body:      m.Body,
			Timestamp: m.Timestamp,
		})
	}
	return messages, nil
}

func (c *Client) DeleteLeadByEmail(ctx context.Context, campaignID, email string) error {
	body := map[string]string{"campaign_id": campaignID, "email": email}
	return c.do(ctx, http.MethodPost, "/api/v2/leads/delete", nil, body, nil)
}

func (c *Client) AddToBlocklist(ctx context.Context, value string) error {
	body := map[string]string{"value": value}
	return c.do(ctx, http.MethodPost, "/api/v2/blocklist", nil, body, nil)
}

func (c *Client) IsBlocked(ctx context.Context, value string) (bool, error) {
	query := url.Values{}
	query.Set("value", value)

	var dto struct {
		Blocked bool `json:"blocked"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v2/blocklist/check", query, nil, &dto); err != nil {
		return false, err
	}
	return dto.Blocked, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	err := c.doOnce(ctx, method, path, query, body, out)
	if err == nil || !apperr.IsTransient(err) {
		return err
	}

	// One bounded retry after a short backoff, never a retry loop.
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
		return apperr.Wrap(apperr.KindUnavailable, fmt.Sprintf("outreach %s %s", method, path), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return apperr.RateLimited("outreach rate limit on " + path)
	case resp.StatusCode >= 500:
		return apperr.Unavailable(fmt.Sprintf("outreach %s returned %d", path, resp.StatusCode))
	case resp.StatusCode == http.StatusNotFound:
		return apperr.NotFound("outreach resource " + path)
	case resp.StatusCode >= 400:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return apperr.BadRequest(fmt.Sprintf("outreach %s returned %d: %s", path, resp.StatusCode, data))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode outreach response: %w", err)
	}
	return nil
}
