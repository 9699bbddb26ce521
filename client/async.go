package client

import (
	"context"

	"tradelic.app/cloud/models"
)

// LicensesResult is the outcome of a background fetch.
type LicensesResult struct {
	Licenses []models.License
	Err      error
}

// LicensesAsync fetches the license list in the background and delivers
// the result on the returned channel. The channel is buffered, so the
// fetch completes even if the caller walked away.
func (c *Client) LicensesAsync(ctx context.Context, opts ListOptions) <-chan LicensesResult {
	ch := make(chan LicensesResult, 1)
	go func() {
		licenses, err := c.Licenses(ctx, opts)
		ch <- LicensesResult{Licenses: licenses, Err: err}
		close(ch)
	}()
	return ch
}

// StatisticsResult is the outcome of a background aggregation.
type StatisticsResult struct {
	Statistics *models.Statistics
	Err        error
}

// StatisticsAsync computes fleet statistics in the background.
func (c *Client) StatisticsAsync(ctx context.Context) <-chan StatisticsResult {
	ch := make(chan StatisticsResult, 1)
	go func() {
		stats, err := c.Statistics(ctx)
		ch <- StatisticsResult{Statistics: stats, Err: err}
		close(ch)
	}()
	return ch
}
