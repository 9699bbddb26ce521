package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"tradelic.app/cloud/models"
)

// ListOptions narrows the license listing server-side.
type ListOptions struct {
	Status    string
	RobotName string
}

// Licenses fetches every license and normalizes each one locally, so the
// derived fields always reflect the caller's clock even against an older
// server.
func (c *Client) Licenses(ctx context.Context, opts ListOptions) ([]models.License, error) {
	path := "/api/licenses"
	q := url.Values{}
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	if opts.RobotName != "" {
		q.Set("robot_name", opts.RobotName)
	}
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp struct {
		Licenses []models.RawLicense `json:"licenses"`
	}
	if err := c.do(ctx, "GET", path, nil, &resp); err != nil {
		return nil, err
	}

	now := time.Now()
	licenses := make([]models.License, 0, len(resp.Licenses))
	for _, raw := range resp.Licenses {
		licenses = append(licenses, models.NewLicense(raw, now))
	}
	return licenses, nil
}

// License fetches one license by key.
func (c *Client) License(ctx context.Context, key string) (*models.License, error) {
	var resp struct {
		License models.RawLicense `json:"license"`
	}
	if err := c.do(ctx, "GET", "/api/licenses/"+url.PathEscape(key), nil, &resp); err != nil {
		return nil, err
	}
	lic := models.NewLicense(resp.License, time.Now())
	return &lic, nil
}

// Create registers a new license and returns it with the generated key.
func (c *Client) Create(ctx context.Context, req models.CreateLicenseRequest) (*models.License, error) {
	var resp struct {
		License models.RawLicense `json:"license"`
	}
	if err := c.do(ctx, "POST", "/api/licenses", req, &resp); err != nil {
		return nil, err
	}
	lic := models.NewLicense(resp.License, time.Now())
	return &lic, nil
}

// Update edits the client-facing fields of a license.
func (c *Client) Update(ctx context.Context, key string, req models.UpdateLicenseRequest) (*models.License, error) {
	var resp struct {
		License models.RawLicense `json:"license"`
	}
	if err := c.do(ctx, "PUT", "/api/licenses/"+url.PathEscape(key), req, &resp); err != nil {
		return nil, err
	}
	lic := models.NewLicense(resp.License, time.Now())
	return &lic, nil
}

// Extend pushes the expiry out by whole months and returns the new
// expiry the server settled on.
func (c *Client) Extend(ctx context.Context, key string, months int) (*models.License, error) {
	if months < 1 {
		return nil, fmt.Errorf("months must be at least 1")
	}
	var resp struct {
		License models.RawLicense `json:"license"`
	}
	err := c.do(ctx, "POST", "/api/licenses/"+url.PathEscape(key)+"/extend",
		models.ExtendLicenseRequest{Months: months}, &resp)
	if err != nil {
		return nil, err
	}
	lic := models.NewLicense(resp.License, time.Now())
	return &lic, nil
}

// Block puts an administrative block on a license.
func (c *Client) Block(ctx context.Context, key string) error {
	return c.setBlocked(ctx, key, true)
}

// Unblock lifts the administrative block.
func (c *Client) Unblock(ctx context.Context, key string) error {
	return c.setBlocked(ctx, key, false)
}

func (c *Client) setBlocked(ctx context.Context, key string, blocked bool) error {
	return c.do(ctx, "POST", "/api/licenses/"+url.PathEscape(key)+"/block",
		models.BlockLicenseRequest{Blocked: blocked}, nil)
}

// Delete removes a license permanently.
func (c *Client) Delete(ctx context.Context, key string) error {
	return c.do(ctx, "DELETE", "/api/licenses/"+url.PathEscape(key), nil, nil)
}

// Statistics asks the server for fleet statistics. When the server
// predates the endpoint, the client aggregates a full listing itself so
// callers still get numbers.
func (c *Client) Statistics(ctx context.Context) (*models.Statistics, error) {
	var resp struct {
		Statistics models.Statistics `json:"statistics"`
	}
	err := c.do(ctx, "GET", "/api/statistics", nil, &resp)
	if err == nil {
		return &resp.Statistics, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	licenses, err := c.Licenses(ctx, ListOptions{})
	if err != nil {
		return nil, err
	}
	stats := models.Aggregate(licenses, time.Now())
	return &stats, nil
}

// CheckResult is the server's verdict on a heartbeat check.
type CheckResult struct {
	Valid    bool   `json:"valid"`
	Status   string `json:"status"`
	DaysLeft int    `json:"days_left"`
}

// Check runs a heartbeat check against a license, the same call the
// robots make. Denials come back as an *APIError with the refusal code.
func (c *Client) Check(ctx context.Context, req models.CheckRequest) (*CheckResult, error) {
	var res CheckResult
	if err := c.do(ctx, "POST", "/api/check", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Events fetches the event log for the trailing window.
func (c *Client) Events(ctx context.Context, days int) ([]models.Event, error) {
	path := "/api/statistics/events"
	if days > 0 {
		path += fmt.Sprintf("?days=%d", days)
	}
	var resp struct {
		Events []models.Event `json:"events"`
	}
	if err := c.do(ctx, "GET", path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}
