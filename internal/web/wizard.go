package web

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/capmis/capmis-console/internal/capmis"
	"github.com/capmis/capmis-console/internal/cards"
)

func (s *Server) handleCreateWizard(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Mode cards.Mode `json:"mode"`
	}
	if err := decodeBody(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx, cancel := apiCtx(r)
	defer cancel()
	wiz, err := s.wizards.Create(ctx, in.Mode)
	if err != nil {
		s.writeError(w, r, capmis.NewValidationError(err.Error()))
		return
	}
	writeJSON(w, http.StatusCreated, wiz.Snapshot())
}

func (s *Server) wizard(w http.ResponseWriter, r *http.Request) (*cards.Wizard, bool) {
	id := chi.URLParam(r, "id")
	wiz, ok := s.wizards.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Kind: "not_found", Message: "no such wizard"})
		return nil, false
	}
	return wiz, true
}

func (s *Server) handleGetWizard(w http.ResponseWriter, r *http.Request) {
	wiz, ok := s.wizard(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, wiz.Snapshot())
}

func (s *Server) handleDeleteWizard(w http.ResponseWriter, r *http.Request) {
	s.wizards.Remove(chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (s *Server) handleWizardStep(w http.ResponseWriter, r *http.Request) {
	wiz, ok := s.wizard(w, r)
	if !ok {
		return
	}
	var in struct {
		Step cards.Step `json:"step"`
	}
	if err := decodeBody(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := wiz.SetStep(in.Step); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wiz.Snapshot())
}

func (s *Server) handleWizardTemplate(w http.ResponseWriter, r *http.Request) {
	wiz, ok := s.wizard(w, r)
	if !ok {
		return
	}
	var in struct {
		TemplateID string `json:"templateId"`
	}
	if err := decodeBody(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	if in.TemplateID == "" {
		s.writeError(w, r, capmis.NewValidationError("templateId is required"))
		return
	}
	ctx, cancel := apiCtx(r)
	defer cancel()
	s.wizards.SelectTemplate(ctx, wiz, in.TemplateID)
	writeJSON(w, http.StatusOK, wiz.Snapshot())
}

func (s *Server) handleWizardCoordinate(w http.ResponseWriter, r *http.Request) {
	wiz, ok := s.wizard(w, r)
	if !ok {
		return
	}
	var in struct {
		Field string     `json:"field"`
		Axis  cards.Axis `json:"axis"`
		Value string     `json:"value"`
	}
	if err := decodeBody(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := wiz.SetCoordinate(in.Field, in.Axis, in.Value); err != nil {
		s.writeError(w, r, capmis.NewValidationError(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, wiz.Snapshot())
}

func (s *Server) handleWizardCSV(w http.ResponseWriter, r *http.Request) {
	wiz, ok := s.wizard(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, r, capmis.NewValidationError("could not parse upload"))
		return
	}
	name, data, err := formFileBytes(r, "csv")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := wiz.AttachCSV(name, data); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wiz.Snapshot())
}

func (s *Server) handleWizardPhotoZip(w http.ResponseWriter, r *http.Request) {
	wiz, ok := s.wizard(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, r, capmis.NewValidationError("could not parse upload"))
		return
	}
	name, data, err := formFileBytes(r, "photoZip")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	report, err := wiz.AttachPhotoZip(name, data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"wizard": wiz.Snapshot(),
		"photos": report,
	})
}

// handleWizardStudent picks the single-mode subject from the card student
// list. A student without a photo holds the wizard in the photo sub-flow.
func (s *Server) handleWizardStudent(w http.ResponseWriter, r *http.Request) {
	wiz, ok := s.wizard(w, r)
	if !ok {
		return
	}
	var in struct {
		StudentID int64 `json:"student_id"`
	}
	if err := decodeBody(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx, cancel := apiCtx(r)
	defer cancel()
	students, err := s.cli.CardStudents(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var picked *capmis.Student
	for i := range students {
		if students[i].ID == in.StudentID {
			picked = &students[i]
			break
		}
	}
	if picked == nil {
		s.writeError(w, r, capmis.NewValidationError(fmt.Sprintf("no student with id %d", in.StudentID)))
		return
	}
	photoRequired, err := wiz.SelectStudent(*picked)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"wizard":        wiz.Snapshot(),
		"photoRequired": photoRequired,
	})
}

func (s *Server) handleWizardPhoto(w http.ResponseWriter, r *http.Request) {
	wiz, ok := s.wizard(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, r, capmis.NewValidationError("could not parse upload"))
		return
	}
	name, data, err := formFileBytes(r, "photo")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx, cancel := apiCtx(r)
	defer cancel()
	if err := wiz.UploadPhoto(ctx, name, data); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wiz.Snapshot())
}

func (s *Server) handleWizardPhotoCancel(w http.ResponseWriter, r *http.Request) {
	wiz, ok := s.wizard(w, r)
	if !ok {
		return
	}
	wiz.CancelPhoto()
	writeJSON(w, http.StatusOK, wiz.Snapshot())
}

// handleWizardGenerate launches generation in the background; the UI polls
// the wizard for progress and fetches the download on completion.
func (s *Server) handleWizardGenerate(w http.ResponseWriter, r *http.Request) {
	wiz, ok := s.wizard(w, r)
	if !ok {
		return
	}
	if err := s.wizards.StartGeneration(wiz); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, wiz.Snapshot())
}

func (s *Server) handleWizardDownload(w http.ResponseWriter, r *http.Request) {
	wiz, ok := s.wizard(w, r)
	if !ok {
		return
	}
	archive := wiz.Archive()
	if archive == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Kind: "not_found", Message: "no finished generation to download"})
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", archive.Filename))
	_, _ = w.Write(archive.Data)
}

func (s *Server) handleCardHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := apiCtx(r)
	defer cancel()
	events, err := s.cli.CardHistory(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleCardStatistics(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := apiCtx(r)
	defer cancel()
	stats, err := s.cli.CardStatistics(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
