package web

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/capmis/capmis-console/internal/capmis"
	"github.com/capmis/capmis-console/internal/export"
	"github.com/capmis/capmis-console/internal/permissions"
)

func (s *Server) handleListPermissions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := apiCtx(r)
	defer cancel()
	if err := s.studio.Refresh(ctx); err != nil {
		s.writeError(w, r, err)
		return
	}
	var out []capmis.Permission
	switch r.URL.Query().Get("filter") {
	case "active":
		out = s.studio.Active()
	case "overdue":
		out = s.studio.Overdue(time.Now().In(s.loc))
	default:
		out = s.studio.All()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreatePermissions(w http.ResponseWriter, r *http.Request) {
	var forms []permissions.Form
	if err := decodeBody(r, &forms); err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx, cancel := apiCtx(r)
	defer cancel()
	created, err := s.studio.CreateBulk(ctx, forms)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleReturnPermission(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx, cancel := apiCtx(r)
	defer cancel()
	p, err := s.studio.MarkReturned(ctx, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handlePrintPermissions renders the standalone print document for the
// requested ids (?ids=1,2,3), or every active permission when unset.
func (s *Server) handlePrintPermissions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := apiCtx(r)
	defer cancel()
	if err := s.studio.Refresh(ctx); err != nil {
		s.writeError(w, r, err)
		return
	}

	var selected []capmis.Permission
	if raw := r.URL.Query().Get("ids"); raw != "" {
		wanted := make(map[int64]bool)
		for _, part := range strings.Split(raw, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				s.writeError(w, r, capmis.NewValidationError("ids must be a comma-separated list of numbers"))
				return
			}
			wanted[id] = true
		}
		for _, p := range s.studio.All() {
			if wanted[p.ID] {
				selected = append(selected, p)
			}
		}
	} else {
		selected = s.studio.Active()
	}
	if len(selected) == 0 {
		s.writeError(w, r, capmis.NewValidationError("no permissions to print"))
		return
	}

	doc, err := permissions.RenderPrintable(selected, time.Now().In(s.loc))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(doc)
}

func (s *Server) handleExportPermissions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := apiCtx(r)
	defer cancel()
	if err := s.studio.Refresh(ctx); err != nil {
		s.writeError(w, r, err)
		return
	}
	now := time.Now().In(s.loc)
	f, err := export.PermissionRegister(s.studio.All(), now)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeWorkbook(w, f, export.PermissionRegisterFilename(now))
}

func writeWorkbook(w http.ResponseWriter, f *excelize.File, filename string) {
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = f.WriteTo(w)
}
