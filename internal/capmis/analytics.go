package capmis

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

func (c *Client) Dashboard(ctx context.Context) (*DashboardSummary, error) {
	var out DashboardSummary
	if err := c.doJSON(ctx, "analytics", http.MethodGet, "/api/analytics/dashboard", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) MonthlyReport(ctx context.Context, year, month int) ([]MonthlyReportRow, error) {
	var out []MonthlyReportRow
	path := fmt.Sprintf("/api/analytics/monthly?year=%d&month=%d", year, month)
	if err := c.doJSON(ctx, "analytics", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) WeeklyCounts(ctx context.Context) (*WeeklyCounts, error) {
	var out WeeklyCounts
	if err := c.doJSON(ctx, "analytics", http.MethodGet, "/api/analytics/weekly", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Trends(ctx context.Context, timeRange string) ([]TrendPoint, error) {
	var out []TrendPoint
	path := "/api/analytics/trends?range=" + url.QueryEscape(timeRange)
	if err := c.doJSON(ctx, "analytics", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ReturnPunctuality(ctx context.Context) (*PunctualityStats, error) {
	var out PunctualityStats
	if err := c.doJSON(ctx, "analytics", http.MethodGet, "/api/analytics/return-punctuality", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) StudentStats(ctx context.Context, studentID int64) (*StudentPermissionStats, error) {
	var out StudentPermissionStats
	path := fmt.Sprintf("/api/analytics/students/%d", studentID)
	if err := c.doJSON(ctx, "analytics", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
