package capmis

import (
	"context"
	"encoding/json"
	"net/http"
)

func (c *Client) CardStudents(ctx context.Context) ([]Student, error) {
	var out []Student
	if err := c.doJSON(ctx, "cards", http.MethodGet, "/api/cards/students", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type BatchGeneration struct {
	CSVName     string
	CSV         []byte
	ZipName     string
	PhotoZip    []byte // optional
	TemplateID  string
	Coordinates json.RawMessage
}

// GenerateBatch composes cards for every CSV row and answers with a zip.
// The call is abortable through ctx; progress reports upload bytes only,
// the render wait has no measurable progress.
func (c *Client) GenerateBatch(ctx context.Context, in BatchGeneration, progress ProgressFunc) (*Archive, error) {
	fields := map[string]string{
		"templateId":  in.TemplateID,
		"coordinates": string(in.Coordinates),
	}
	files := []formFile{{field: "csv", name: in.CSVName, data: in.CSV}}
	if len(in.PhotoZip) > 0 {
		files = append(files, formFile{field: "photoZip", name: in.ZipName, data: in.PhotoZip})
	}
	return c.doMultipartArchive(ctx, "cards", "/api/cards/generate-batch", fields, files, progress)
}

type SingleGeneration struct {
	StudentID   int64           `json:"student_id"`
	TemplateID  string          `json:"templateId"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// GenerateSingle renders one student's card. A student without a stored
// photo is rejected with the PHOTO_REQUIRED business code.
func (c *Client) GenerateSingle(ctx context.Context, in SingleGeneration) (*Archive, error) {
	return c.doJSONArchive(ctx, "cards", "/api/cards/generate-single", in)
}

func (c *Client) CardHistory(ctx context.Context) ([]CardEvent, error) {
	var out []CardEvent
	if err := c.doJSON(ctx, "cards", http.MethodGet, "/api/cards/history", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CardStatistics(ctx context.Context) (*CardStats, error) {
	var out CardStats
	if err := c.doJSON(ctx, "cards", http.MethodGet, "/api/cards/statistics", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
