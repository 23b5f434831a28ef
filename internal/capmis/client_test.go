package capmis

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestErrorKindTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	cli := New(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := cli.ListStudents(ctx)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if KindOf(err) != KindTimeout {
		t.Fatalf("expected kind timeout, got %s", KindOf(err))
	}
}

func TestErrorKindNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing is listening anymore

	cli := New(srv.URL)
	_, err := cli.ListStudents(context.Background())
	if err == nil {
		t.Fatal("expected network error")
	}
	if KindOf(err) != KindNetwork {
		t.Fatalf("expected kind network, got %s", KindOf(err))
	}
}

func TestErrorKindServerStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cli := New(srv.URL)
	_, err := cli.ListStudents(context.Background())
	if KindOf(err) != KindServerStatus {
		t.Fatalf("expected kind server_status, got %s", KindOf(err))
	}
	var ce *Error
	if !errors.As(err, &ce) || ce.Status != http.StatusInternalServerError {
		t.Fatalf("expected status 500 on error, got %+v", ce)
	}
}

func TestErrorKindBusinessRule(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"code":"PHOTO_REQUIRED","message":"student has no photo"}`))
	}))
	defer srv.Close()

	cli := New(srv.URL)
	_, err := cli.GenerateSingle(context.Background(), SingleGeneration{StudentID: 7, TemplateID: "T1"})
	if !IsBusinessRule(err, CodePhotoRequired) {
		t.Fatalf("expected PHOTO_REQUIRED business rule, got %v", err)
	}
	if IsBusinessRule(err, CodeActivePermission) {
		t.Fatal("business rule matched the wrong code")
	}
}

func TestBatchGenerationMultipart(t *testing.T) {
	var gotTemplate, gotCoords string
	var gotCSV []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		gotTemplate = r.FormValue("templateId")
		gotCoords = r.FormValue("coordinates")
		f, _, err := r.FormFile("csv")
		if err != nil {
			t.Errorf("csv part: %v", err)
		} else {
			buf := make([]byte, 1024)
			n, _ := f.Read(buf)
			gotCSV = buf[:n]
		}
		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Disposition", `attachment; filename="batch-cards-1700000000.zip"`)
		_, _ = w.Write([]byte("PK\x03\x04"))
	}))
	defer srv.Close()

	cli := New(srv.URL)
	csv := []byte("student_id,name\nS001,Alice\n")
	archive, err := cli.GenerateBatch(context.Background(), BatchGeneration{
		CSVName:     "students.csv",
		CSV:         csv,
		TemplateID:  "T1",
		Coordinates: json.RawMessage(`{"name":{"x":1,"y":2}}`),
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if gotTemplate != "T1" {
		t.Fatalf("templateId field = %q", gotTemplate)
	}
	if !strings.Contains(gotCoords, `"x":1`) {
		t.Fatalf("coordinates not forwarded verbatim: %q", gotCoords)
	}
	if string(gotCSV) != string(csv) {
		t.Fatalf("csv bytes mangled: %q", gotCSV)
	}
	if archive.Filename != "batch-cards-1700000000.zip" {
		t.Fatalf("filename from Content-Disposition = %q", archive.Filename)
	}
}

func TestUploadProgressReportsRealBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseMultipartForm(1 << 20)
		_, _ = w.Write([]byte(`{"imported":1,"skipped":0}`))
	}))
	defer srv.Close()

	cli := New(srv.URL)
	var lastSent, total int64
	calls := 0
	_, err := cli.ImportCSV(context.Background(), "students.csv",
		[]byte("student_id,name,class,level,residence,gender,parent_phone\nS001,Alice,5A,primary,Douala,F,670000000\n"),
		func(sent, tot int64) {
			if sent < lastSent {
				t.Errorf("progress went backwards: %d after %d", sent, lastSent)
			}
			lastSent, total = sent, tot
			calls++
		})
	if err != nil {
		t.Fatal(err)
	}
	if calls == 0 {
		t.Fatal("progress callback never fired")
	}
	if lastSent != total {
		t.Fatalf("final progress %d != total %d", lastSent, total)
	}
}

func TestBearerTokenHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	cli := New(srv.URL, WithTokenSource(func() string { return "tok123" }))
	if _, err := cli.ListStudents(context.Background()); err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer tok123" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
}
