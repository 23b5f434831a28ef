package cards

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capmis/capmis-console/internal/capmis"
	"github.com/capmis/capmis-console/internal/metrics"
	"github.com/capmis/capmis-console/internal/observability"
)

// API is everything the card workflow needs from the backend client.
type API interface {
	TemplateAPI
	GenerateAPI
}

// Manager owns live wizards, keyed by id. Wizards are in-memory only; a
// restart forgets them, which matches their session-scoped nature.
type Manager struct {
	api        API
	registry   *TemplateRegistry
	log        *zap.Logger
	genTimeout time.Duration

	mu      sync.Mutex
	wizards map[string]*Wizard
}

func NewManager(api API, log *zap.Logger, genTimeout time.Duration) *Manager {
	return &Manager{
		api:        api,
		registry:   NewTemplateRegistry(api, log),
		log:        log,
		genTimeout: genTimeout,
		wizards:    make(map[string]*Wizard),
	}
}

func (m *Manager) Registry() *TemplateRegistry { return m.registry }

// Create starts a wizard in the given mode. When the backend marks exactly
// one template as default it is pre-selected, dimensions and all; template
// listing failures leave the wizard usable with the choice still open.
func (m *Manager) Create(ctx context.Context, mode Mode) (*Wizard, error) {
	if mode != ModeBatch && mode != ModeSingle {
		return nil, fmt.Errorf("unknown generation mode %q", mode)
	}
	w := newWizard(uuid.NewString(), mode, m.api, m.log)

	templates, err := m.registry.Load(ctx)
	if err != nil {
		m.log.Warn("template listing failed on wizard mount", zap.Error(err))
	} else if def := m.registry.Default(templates); def != nil {
		w.SelectTemplate(def.ID, m.registry.DimensionsFor(ctx, def.ID))
	}

	m.mu.Lock()
	m.wizards[w.ID] = w
	m.mu.Unlock()
	return w, nil
}

func (m *Manager) Get(id string) (*Wizard, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wizards[id]
	return w, ok
}

func (m *Manager) Remove(id string) {
	m.mu.Lock()
	delete(m.wizards, id)
	m.mu.Unlock()
}

// SelectTemplate resolves dimensions (with fallback) and pins the wizard.
func (m *Manager) SelectTemplate(ctx context.Context, w *Wizard, templateID string) {
	w.SelectTemplate(templateID, m.registry.DimensionsFor(ctx, templateID))
}

// StartGeneration launches the generation in the background under the
// configured deadline. The in-flight and validation checks run before this
// returns, so callers get double-submit rejections synchronously.
func (m *Manager) StartGeneration(w *Wizard) error {
	in, err := w.beginGeneration()
	if err != nil {
		return err
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.genTimeout)
		defer cancel()
		mode := string(in.mode)
		if err := w.runGeneration(ctx, in); err != nil {
			metrics.GenerationJobs.WithLabelValues(mode, "error").Inc()
			if !errors.Is(err, ErrPhotoRequired) && capmis.KindOf(err) != capmis.KindValidation {
				observability.CaptureErr(err)
			}
			m.log.Warn("card generation failed",
				zap.String("wizard", w.ID), zap.String("mode", mode), zap.Error(err))
			return
		}
		metrics.GenerationJobs.WithLabelValues(mode, "ok").Inc()
		m.log.Info("card generation finished",
			zap.String("wizard", w.ID), zap.String("mode", mode))
	}()
	return nil
}
