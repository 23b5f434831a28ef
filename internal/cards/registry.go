package cards

import (
	"context"

	"go.uber.org/zap"

	"github.com/capmis/capmis-console/internal/capmis"
)

// TemplateAPI is the slice of the backend client the registry needs.
type TemplateAPI interface {
	ListTemplates(ctx context.Context) ([]capmis.Template, error)
	TemplateDimensions(ctx context.Context, id string) (capmis.Dimensions, error)
	TemplatePreviewURL(ctx context.Context, publicID string) (string, error)
}

// TemplateRegistry reads card templates and resolves their preview images.
// Templates are read-only reference data here; mutation goes through the
// templates handlers directly.
type TemplateRegistry struct {
	api TemplateAPI
	log *zap.Logger
}

func NewTemplateRegistry(api TemplateAPI, log *zap.Logger) *TemplateRegistry {
	return &TemplateRegistry{api: api, log: log}
}

// Load fetches all templates, preferring direct preview URLs and falling
// back to the preview-by-identifier endpoint. A failed resolution leaves
// the URL empty rather than failing the listing.
func (r *TemplateRegistry) Load(ctx context.Context) ([]capmis.Template, error) {
	templates, err := r.api.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}
	for i := range templates {
		t := &templates[i]
		if t.FrontSide == "" && t.FrontPublicID != "" {
			t.FrontSide = r.resolvePreview(ctx, t.FrontPublicID)
		}
		if t.BackSide == "" && t.BackPublicID != "" {
			t.BackSide = r.resolvePreview(ctx, t.BackPublicID)
		}
	}
	return templates, nil
}

func (r *TemplateRegistry) resolvePreview(ctx context.Context, publicID string) string {
	u, err := r.api.TemplatePreviewURL(ctx, publicID)
	if err != nil {
		r.log.Debug("preview resolution failed", zap.String("publicId", publicID), zap.Error(err))
		return ""
	}
	return u
}

// Default returns the default template when exactly one is marked so.
func (r *TemplateRegistry) Default(templates []capmis.Template) *capmis.Template {
	var found *capmis.Template
	for i := range templates {
		if templates[i].IsDefault {
			if found != nil {
				return nil
			}
			found = &templates[i]
		}
	}
	return found
}

// DimensionsFor looks up template dimensions, degrading to the stock
// fallback when the lookup fails. The degradation is logged, not propagated.
func (r *TemplateRegistry) DimensionsFor(ctx context.Context, id string) capmis.Dimensions {
	d, err := r.api.TemplateDimensions(ctx, id)
	if err != nil {
		r.log.Warn("dimension lookup failed, using fallback",
			zap.String("templateId", id), zap.Error(err))
		return capmis.FallbackDimensions
	}
	return d
}
