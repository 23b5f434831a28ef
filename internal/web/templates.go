package web

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/capmis/capmis-console/internal/capmis"
)

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := apiCtx(r)
	defer cancel()
	templates, err := s.wizards.Registry().Load(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, templates)
}

func (s *Server) handleUploadTemplate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, r, capmis.NewValidationError("could not parse upload"))
		return
	}
	name := r.FormValue("name")
	if name == "" {
		s.writeError(w, r, capmis.NewValidationError("template name is required"))
		return
	}
	frontName, front, err := formFileBytes(r, "frontSide")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	backName, back, err := formFileBytes(r, "backSide")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	setDefault, _ := strconv.ParseBool(r.FormValue("setAsDefault"))

	ctx, cancel := apiCtx(r)
	defer cancel()
	tpl, err := s.cli.UploadTemplate(ctx, capmis.TemplateUpload{
		Name:         name,
		Description:  r.FormValue("description"),
		FrontName:    frontName,
		Front:        front,
		BackName:     backName,
		Back:         back,
		SetAsDefault: setDefault,
	}, nil)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tpl)
}

func (s *Server) handleSetDefaultTemplate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := apiCtx(r)
	defer cancel()
	if err := s.cli.SetDefaultTemplate(ctx, chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "default_set"})
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := apiCtx(r)
	defer cancel()
	if err := s.cli.DeleteTemplate(ctx, chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleTemplateCleanup(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := apiCtx(r)
	defer cancel()
	report, err := s.cli.CleanupOrphanedTemplateFiles(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
