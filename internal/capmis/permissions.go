package capmis

import (
	"context"
	"fmt"
	"net/http"
)

func (c *Client) ListPermissions(ctx context.Context) ([]Permission, error) {
	var out []Permission
	if err := c.doJSON(ctx, "permissions", http.MethodGet, "/api/permissions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreatePermission(ctx context.Context, in PermissionInput) (*Permission, error) {
	var out Permission
	if err := c.doJSON(ctx, "permissions", http.MethodPost, "/api/permissions", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreatePermissions(ctx context.Context, in []PermissionInput) ([]Permission, error) {
	var out []Permission
	if err := c.doJSON(ctx, "permissions", http.MethodPost, "/api/permissions/bulk", in, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdatePermissionStatus transitions one permission and returns the
// authoritative record.
func (c *Client) UpdatePermissionStatus(ctx context.Context, id int64, status PermissionStatus) (*Permission, error) {
	var out Permission
	path := fmt.Sprintf("/api/permissions/%d/status", id)
	in := struct {
		Status PermissionStatus `json:"status"`
	}{status}
	if err := c.doJSON(ctx, "permissions", http.MethodPut, path, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
