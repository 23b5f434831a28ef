package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/capmis/capmis-console/internal/capmis"
	"github.com/capmis/capmis-console/internal/export"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := apiCtx(r)
	defer cancel()
	summary, err := s.cli.Dashboard(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleWeekly(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := apiCtx(r)
	defer cancel()
	counts, err := s.cli.WeeklyCounts(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	timeRange := r.URL.Query().Get("range")
	if timeRange == "" {
		timeRange = "30d"
	}
	ctx, cancel := apiCtx(r)
	defer cancel()
	points, err := s.cli.Trends(ctx, timeRange)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) handlePunctuality(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := apiCtx(r)
	defer cancel()
	stats, err := s.cli.ReturnPunctuality(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleStudentStats(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx, cancel := apiCtx(r)
	defer cancel()
	stats, err := s.cli.StudentStats(ctx, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleExportMonthly turns one analytics month into a workbook download.
// Year and month default to the current month in the console's timezone.
func (s *Server) handleExportMonthly(w http.ResponseWriter, r *http.Request) {
	now := time.Now().In(s.loc)
	year, month := now.Year(), int(now.Month())
	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, r, capmis.NewValidationError("year must be a number"))
			return
		}
		year = y
	}
	if v := r.URL.Query().Get("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			s.writeError(w, r, capmis.NewValidationError("month must be 1..12"))
			return
		}
		month = m
	}

	ctx, cancel := apiCtx(r)
	defer cancel()
	rows, err := s.cli.MonthlyReport(ctx, year, month)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	f, err := export.MonthlyAnalytics(year, month, rows)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeWorkbook(w, f, export.MonthlyAnalyticsFilename(year, month))
}
