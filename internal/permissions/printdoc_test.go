package permissions

import (
	"strings"
	"testing"
	"time"

	"github.com/capmis/capmis-console/internal/capmis"
)

func TestRenderPrintable(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	perms := []capmis.Permission{
		{
			ID:               1,
			PermissionNumber: "PRM-2026-001",
			Student:          capmis.Student{Name: "Alice Mbarga", Class: "5A"},
			Guardian:         capmis.Guardian{Name: "Paul Essomba", Phone: "670000001"},
			Reason:           "medical appointment",
			Destination:      "Douala",
			Departure:        now.Add(-48 * time.Hour),
			ReturnDate:       now.Add(-24 * time.Hour), // overdue
			Status:           capmis.PermissionApproved,
		},
		{
			ID:               2,
			PermissionNumber: "PRM-2026-002",
			Student:          capmis.Student{Name: "Ben Fokou", Class: "5A"},
			Guardian:         capmis.Guardian{Name: "Marie Fokou"},
			Reason:           "family event",
			Destination:      "Yaounde",
			Departure:        now,
			ReturnDate:       now.Add(24 * time.Hour),
			Status:           capmis.PermissionPending,
		},
	}

	out, err := RenderPrintable(perms, now)
	if err != nil {
		t.Fatal(err)
	}
	html := string(out)

	if n := strings.Count(html, `class="permission-document"`); n != 2 {
		t.Fatalf("permission-document blocks = %d, want 2", n)
	}
	if !strings.Contains(html, "page-break-after: always") {
		t.Fatal("print stylesheet lost its page breaks")
	}
	for _, want := range []string{"PRM-2026-001", "Alice Mbarga", "Paul Essomba", "Ben Fokou"} {
		if !strings.Contains(html, want) {
			t.Fatalf("document missing %q", want)
		}
	}
	if n := strings.Count(html, "OVERDUE"); n != 1 {
		t.Fatalf("OVERDUE badges = %d, want exactly 1", n)
	}
	if !strings.Contains(html, "<!DOCTYPE html>") {
		t.Fatal("output is not a standalone document")
	}
}

func TestRenderPrintableEmpty(t *testing.T) {
	out, err := RenderPrintable(nil, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(out), `class="permission-document"`) {
		t.Fatal("no blocks expected for an empty list")
	}
}
