package capmis

import (
	"context"
	"fmt"
	"net/http"
)

func (c *Client) ListStudents(ctx context.Context) ([]Student, error) {
	var out []Student
	if err := c.doJSON(ctx, "students", http.MethodGet, "/api/students", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AddStudent(ctx context.Context, in Student) (*Student, error) {
	var out Student
	if err := c.doJSON(ctx, "students", http.MethodPost, "/api/students", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateStudent(ctx context.Context, in Student) (*Student, error) {
	var out Student
	path := fmt.Sprintf("/api/students/%d", in.ID)
	if err := c.doJSON(ctx, "students", http.MethodPut, path, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteStudent(ctx context.Context, id int64) error {
	return c.doJSON(ctx, "students", http.MethodDelete, fmt.Sprintf("/api/students/%d", id), nil, nil)
}

// ImportCSV uploads a student roster. Progress reflects bytes actually sent.
func (c *Client) ImportCSV(ctx context.Context, csvName string, csv []byte, progress ProgressFunc) (*ImportReport, error) {
	var out ImportReport
	files := []formFile{{field: "csv", name: csvName, data: csv}}
	if err := c.doMultipart(ctx, "students", "/api/students/import", nil, files, progress, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ImportCSVWithPhotos is ImportCSV plus a photo archive whose entries are
// named <student_id>.<ext>.
func (c *Client) ImportCSVWithPhotos(ctx context.Context, csvName string, csv []byte, zipName string, photoZip []byte, progress ProgressFunc) (*ImportReport, error) {
	var out ImportReport
	files := []formFile{
		{field: "csv", name: csvName, data: csv},
		{field: "photoZip", name: zipName, data: photoZip},
	}
	if err := c.doMultipart(ctx, "students", "/api/students/import-with-photos", nil, files, progress, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CleanupOrphanedStudentFiles(ctx context.Context) (*CleanupReport, error) {
	var out CleanupReport
	if err := c.doJSON(ctx, "students", http.MethodPost, "/api/students/cleanup-orphaned-files", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadStudentPhoto stores one photo and returns the authoritative student
// record; callers replace their cached copy with it rather than patching
// fields by hand.
func (c *Client) UploadStudentPhoto(ctx context.Context, studentID int64, filename string, photo []byte) (*Student, error) {
	var out Student
	path := fmt.Sprintf("/api/students/%d/photo", studentID)
	files := []formFile{{field: "photo", name: filename, data: photo}}
	if err := c.doMultipart(ctx, "students", path, nil, files, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
