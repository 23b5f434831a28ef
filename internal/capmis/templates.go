package capmis

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

func (c *Client) ListTemplates(ctx context.Context) ([]Template, error) {
	var out []Template
	if err := c.doJSON(ctx, "templates", http.MethodGet, "/api/templates", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type TemplateUpload struct {
	Name         string
	Description  string
	FrontName    string
	Front        []byte
	BackName     string
	Back         []byte
	SetAsDefault bool
}

func (c *Client) UploadTemplate(ctx context.Context, in TemplateUpload, progress ProgressFunc) (*Template, error) {
	var out Template
	fields := map[string]string{
		"name":         in.Name,
		"description":  in.Description,
		"setAsDefault": strconv.FormatBool(in.SetAsDefault),
	}
	files := []formFile{
		{field: "frontSide", name: in.FrontName, data: in.Front},
		{field: "backSide", name: in.BackName, data: in.Back},
	}
	if err := c.doMultipart(ctx, "templates", "/api/templates", fields, files, progress, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SetDefaultTemplate(ctx context.Context, id string) error {
	path := fmt.Sprintf("/api/templates/%s/set-default", url.PathEscape(id))
	return c.doJSON(ctx, "templates", http.MethodPost, path, nil, nil)
}

func (c *Client) DeleteTemplate(ctx context.Context, id string) error {
	return c.doJSON(ctx, "templates", http.MethodDelete, "/api/templates/"+url.PathEscape(id), nil, nil)
}

// TemplateDimensions looks up pixel dimensions for a template. Callers fall
// back to FallbackDimensions when this fails.
func (c *Client) TemplateDimensions(ctx context.Context, id string) (Dimensions, error) {
	var out Dimensions
	path := fmt.Sprintf("/api/templates/%s/dimensions", url.PathEscape(id))
	if err := c.doJSON(ctx, "templates", http.MethodGet, path, nil, &out); err != nil {
		return Dimensions{}, err
	}
	return out, nil
}

// TemplatePreviewURL resolves a preview image by public identifier, the
// fallback when a template carries no direct URL.
func (c *Client) TemplatePreviewURL(ctx context.Context, publicID string) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	path := fmt.Sprintf("/api/templates/preview/%s", url.PathEscape(publicID))
	if err := c.doJSON(ctx, "templates", http.MethodGet, path, nil, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

func (c *Client) CleanupOrphanedTemplateFiles(ctx context.Context) (*CleanupReport, error) {
	var out CleanupReport
	if err := c.doJSON(ctx, "templates", http.MethodPost, "/api/templates/cleanup-orphaned-files", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
