package web

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/capmis/capmis-console/internal/capmis"
	"github.com/capmis/capmis-console/internal/cards"
)

const maxUploadBytes = 64 << 20

func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := apiCtx(r)
	defer cancel()
	students, err := s.cli.ListStudents(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, students)
}

func (s *Server) handleAddStudent(w http.ResponseWriter, r *http.Request) {
	var in capmis.Student
	if err := decodeBody(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx, cancel := apiCtx(r)
	defer cancel()
	st, err := s.cli.AddStudent(ctx, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (s *Server) handleUpdateStudent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var in capmis.Student
	if err := decodeBody(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	in.ID = id
	ctx, cancel := apiCtx(r)
	defer cancel()
	st, err := s.cli.UpdateStudent(ctx, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleDeleteStudent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx, cancel := apiCtx(r)
	defer cancel()
	if err := s.cli.DeleteStudent(ctx, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleImportStudents accepts a roster CSV and an optional photo zip. The
// CSV header is validated here, before a single byte reaches the backend.
func (s *Server) handleImportStudents(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, r, capmis.NewValidationError("could not parse upload"))
		return
	}
	csvName, csvData, err := formFileBytes(r, "csv")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := cards.ValidateHeader(csvData, cards.ImportColumns); err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx, cancel := apiCtx(r)
	defer cancel()
	zipName, zipData, zipErr := formFileBytes(r, "photoZip")
	var report *capmis.ImportReport
	if zipErr == nil {
		report, err = s.cli.ImportCSVWithPhotos(ctx, csvName, csvData, zipName, zipData, nil)
	} else {
		report, err = s.cli.ImportCSV(ctx, csvName, csvData, nil)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleStudentPhoto(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
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
	st, err := s.cli.UploadStudentPhoto(ctx, id, name, data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleStudentCleanup(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := apiCtx(r)
	defer cancel()
	report, err := s.cli.CleanupOrphanedStudentFiles(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, capmis.NewValidationError("invalid id in path")
	}
	return id, nil
}

func formFileBytes(r *http.Request, field string) (string, []byte, error) {
	f, hdr, err := r.FormFile(field)
	if err != nil {
		return "", nil, capmis.NewValidationError("missing file field " + field)
	}
	defer func() { _ = f.Close() }()
	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
	if err != nil {
		return "", nil, capmis.NewValidationError("could not read uploaded file")
	}
	return hdr.Filename, data, nil
}
