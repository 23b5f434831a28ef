package cards

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/capmis/capmis-console/internal/capmis"
)

const rosterCSV = "student_id,name,class,level,residence,gender,parent_phone\n" +
	"S001,Alice Mbarga,5A,primary,Douala,F,670000001\n" +
	"S002,Ben Fokou,5A,primary,Yaounde,M,670000002\n"

func TestValidateHeaderReportsMissingColumns(t *testing.T) {
	err := ValidateHeader([]byte("student_id,name\nS001,Alice\n"), ImportColumns)
	if capmis.KindOf(err) != capmis.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, col := range []string{"class", "level", "residence", "gender", "parent_phone"} {
		if !strings.Contains(err.Error(), col) {
			t.Fatalf("error does not name missing column %q: %v", col, err)
		}
	}
	if strings.Contains(err.Error(), "student_id") {
		t.Fatalf("error names a column that is present: %v", err)
	}
}

func TestValidateHeaderAcceptsCaseAndExtras(t *testing.T) {
	csv := "Student_ID,NAME,class,level,residence,gender,parent_phone,notes\n"
	if err := ValidateHeader([]byte(csv), ImportColumns); err != nil {
		t.Fatal(err)
	}
}

func TestValidateHeaderEmptyFile(t *testing.T) {
	if err := ValidateHeader(nil, ImportColumns); capmis.KindOf(err) != capmis.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGenerationColumnsRequireAcademicYear(t *testing.T) {
	if err := ValidateHeader([]byte(rosterCSV), GenerationColumns); err == nil {
		t.Fatal("roster csv lacks academic_year, header check should fail")
	}
	withYear := strings.Replace(rosterCSV, "parent_phone", "parent_phone,academic_year", 1)
	withYear = strings.ReplaceAll(withYear, "670000001", "670000001,2025-2026")
	withYear = strings.ReplaceAll(withYear, "670000002", "670000002,2025-2026")
	if err := ValidateHeader([]byte(withYear), GenerationColumns); err != nil {
		t.Fatal(err)
	}
}

func TestGenerationHeaderDoesNotRequireParentPhone(t *testing.T) {
	csv := "student_id,name,class,level,residence,gender,academic_year\n" +
		"S001,Alice Mbarga,5A,primary,Douala,F,2025-2026\n"
	if err := ValidateHeader([]byte(csv), GenerationColumns); err != nil {
		t.Fatal(err)
	}
}

func TestCountRows(t *testing.T) {
	n, err := CountRows([]byte(rosterCSV))
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("rows = %d, want 2", n)
	}
}

func TestStudentIDs(t *testing.T) {
	ids, err := StudentIDs([]byte(rosterCSV))
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != "S001" || ids[1] != "S002" {
		t.Fatalf("ids = %v", ids)
	}
}

func TestMatchPhotos(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range []string{"S001.jpg", "photos/S002.png", "stranger.jpg"} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte("img")); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	report, err := MatchPhotos(buf.Bytes(), []string{"S001", "S002", "S003"})
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Matched) != 2 || report.Matched[0] != "S001" || report.Matched[1] != "S002" {
		t.Fatalf("matched = %v", report.Matched)
	}
	if len(report.Unmatched) != 1 || report.Unmatched[0] != "stranger.jpg" {
		t.Fatalf("unmatched = %v", report.Unmatched)
	}
	if len(report.Missing) != 1 || report.Missing[0] != "S003" {
		t.Fatalf("missing = %v", report.Missing)
	}
}

func TestMatchPhotosBadArchive(t *testing.T) {
	_, err := MatchPhotos([]byte("not a zip"), []string{"S001"})
	if capmis.KindOf(err) != capmis.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
