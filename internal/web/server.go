// Package web exposes the console over HTTP: a JSON API for the UI plus
// printable pages and workbook downloads.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capmis/capmis-console/internal/capmis"
	"github.com/capmis/capmis-console/internal/cards"
	"github.com/capmis/capmis-console/internal/ctxutil"
	"github.com/capmis/capmis-console/internal/metrics"
	"github.com/capmis/capmis-console/internal/observability"
	"github.com/capmis/capmis-console/internal/permissions"
	"github.com/capmis/capmis-console/internal/session"
)

type Server struct {
	cli     *capmis.Client
	store   *session.Store
	wizards *cards.Manager
	studio  *permissions.Studio
	storage session.StorageBackend
	log     *zap.Logger
	loc     *time.Location
}

func NewServer(cli *capmis.Client, store *session.Store, wizards *cards.Manager, studio *permissions.Studio, storage session.StorageBackend, log *zap.Logger, loc *time.Location) *Server {
	if loc == nil {
		loc = time.Local
	}
	return &Server{
		cli:     cli,
		store:   store,
		wizards: wizards,
		studio:  studio,
		storage: storage,
		log:     log,
		loc:     loc,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestIDMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Post("/api/session/login", s.handleLogin)
	r.Post("/api/session/register", s.handleRegister)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Get("/api/session", s.handleProfile)
		r.Post("/api/session/logout", s.handleLogout)
		r.Put("/api/session/profile", s.handleUpdateProfile)
		r.Post("/api/session/password", s.handleChangePassword)
		r.Get("/api/settings", s.handleGetSettings)
		r.Put("/api/settings", s.handlePutSettings)

		r.Get("/api/students", s.handleListStudents)
		r.Post("/api/students", s.handleAddStudent)
		r.Put("/api/students/{id}", s.handleUpdateStudent)
		r.Delete("/api/students/{id}", s.handleDeleteStudent)
		r.Post("/api/students/import", s.handleImportStudents)
		r.Post("/api/students/{id}/photo", s.handleStudentPhoto)
		r.Post("/api/students/cleanup", s.handleStudentCleanup)

		r.Get("/api/templates", s.handleListTemplates)
		r.Post("/api/templates", s.handleUploadTemplate)
		r.Post("/api/templates/{id}/default", s.handleSetDefaultTemplate)
		r.Delete("/api/templates/{id}", s.handleDeleteTemplate)
		r.Post("/api/templates/cleanup", s.handleTemplateCleanup)

		r.Post("/api/wizards", s.handleCreateWizard)
		r.Get("/api/wizards/{id}", s.handleGetWizard)
		r.Delete("/api/wizards/{id}", s.handleDeleteWizard)
		r.Post("/api/wizards/{id}/step", s.handleWizardStep)
		r.Post("/api/wizards/{id}/template", s.handleWizardTemplate)
		r.Post("/api/wizards/{id}/coordinates", s.handleWizardCoordinate)
		r.Post("/api/wizards/{id}/csv", s.handleWizardCSV)
		r.Post("/api/wizards/{id}/photozip", s.handleWizardPhotoZip)
		r.Post("/api/wizards/{id}/student", s.handleWizardStudent)
		r.Post("/api/wizards/{id}/photo", s.handleWizardPhoto)
		r.Post("/api/wizards/{id}/photo/cancel", s.handleWizardPhotoCancel)
		r.Post("/api/wizards/{id}/generate", s.handleWizardGenerate)
		r.Get("/api/wizards/{id}/download", s.handleWizardDownload)

		r.Get("/api/cards/history", s.handleCardHistory)
		r.Get("/api/cards/statistics", s.handleCardStatistics)

		r.Get("/api/permissions", s.handleListPermissions)
		r.Post("/api/permissions/bulk", s.handleCreatePermissions)
		r.Post("/api/permissions/{id}/return", s.handleReturnPermission)
		r.Get("/api/permissions/print", s.handlePrintPermissions)
		r.Get("/api/permissions/export", s.handleExportPermissions)

		r.Get("/api/analytics/dashboard", s.handleDashboard)
		r.Get("/api/analytics/weekly", s.handleWeekly)
		r.Get("/api/analytics/trends", s.handleTrends)
		r.Get("/api/analytics/return-punctuality", s.handlePunctuality)
		r.Get("/api/analytics/students/{id}", s.handleStudentStats)
		r.Get("/api/analytics/monthly/export", s.handleExportMonthly)
	})

	return r
}

// Middleware

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(ctxutil.WithRequestID(r.Context(), id)))
	})
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := s.store.Current()
		if u == nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Kind: "unauthenticated", Message: "login required"})
			return
		}
		next.ServeHTTP(w, r.WithContext(ctxutil.WithUserEmail(r.Context(), u.Email)))
	})
}

// Helpers

type errorBody struct {
	Kind     string `json:"kind"`
	Code     string `json:"code,omitempty"`
	Message  string `json:"message"`
	Redirect string `json:"redirect,omitempty"`
	Details  any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps tagged error kinds onto HTTP statuses. Handlers never
// branch on error text.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	metrics.HandlerErrors.Inc()

	var pv *permissions.ValidationError
	if errors.As(err, &pv) {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Kind: "validation", Message: pv.Error(), Details: pv.PerStudent,
		})
		return
	}

	switch {
	case errors.Is(err, cards.ErrTemplateRequired):
		writeJSON(w, http.StatusConflict, errorBody{
			Kind: "validation", Message: err.Error(), Redirect: string(cards.StepTemplate),
		})
		return
	case errors.Is(err, cards.ErrGenerationInFlight):
		writeJSON(w, http.StatusConflict, errorBody{Kind: "conflict", Message: err.Error()})
		return
	case errors.Is(err, cards.ErrPhotoRequired):
		writeJSON(w, http.StatusConflict, errorBody{
			Kind: "business_rule", Code: capmis.CodePhotoRequired, Message: err.Error(),
		})
		return
	case errors.Is(err, cards.ErrNoCSV), errors.Is(err, cards.ErrNoStudent), errors.Is(err, cards.ErrWrongMode):
		writeJSON(w, http.StatusBadRequest, errorBody{Kind: "validation", Message: err.Error()})
		return
	}

	var ce *capmis.Error
	if errors.As(err, &ce) {
		switch ce.Kind {
		case capmis.KindValidation:
			writeJSON(w, http.StatusBadRequest, errorBody{Kind: "validation", Message: ce.Message})
		case capmis.KindTimeout:
			writeJSON(w, http.StatusGatewayTimeout, errorBody{Kind: "timeout", Message: "the backend did not answer in time"})
		case capmis.KindNetwork:
			writeJSON(w, http.StatusBadGateway, errorBody{Kind: "network", Message: "the backend is unreachable"})
		case capmis.KindBusinessRule:
			writeJSON(w, http.StatusConflict, errorBody{Kind: "business_rule", Code: ce.Code, Message: ce.Message})
		default:
			writeJSON(w, http.StatusBadGateway, errorBody{Kind: "server_status", Message: ce.Message})
		}
		return
	}

	observability.CaptureErr(err)
	if id, ok := ctxutil.RequestID(r.Context()); ok {
		s.log.Error("handler failed", zap.String("requestId", id), zap.Error(err))
	} else {
		s.log.Error("handler failed", zap.Error(err))
	}
	writeJSON(w, http.StatusInternalServerError, errorBody{Kind: "internal", Message: "internal error"})
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return capmis.NewValidationError("request body is not valid JSON")
	}
	return nil
}

func apiCtx(r *http.Request) (context.Context, context.CancelFunc) {
	return ctxutil.WithAPITimeout(r.Context())
}
