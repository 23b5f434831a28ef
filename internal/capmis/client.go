// Package capmis is the typed client for the CAPMIS REST backend. All
// school data lives behind it; the console keeps nothing durable except
// the auth token.
package capmis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/capmis/capmis-console/internal/metrics"
)

// TokenSource supplies the current bearer token, empty when logged out.
type TokenSource func() string

type Client struct {
	baseURL string
	hc      *http.Client
	token   TokenSource
	log     *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.hc = hc } }
func WithTokenSource(ts TokenSource) Option { return func(c *Client) { c.token = ts } }
func WithLogger(l *zap.Logger) Option       { return func(c *Client) { c.log = l } }

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{},
		token:   func() string { return "" },
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ProgressFunc receives genuine transferred-byte counts during uploads.
type ProgressFunc func(sent, total int64)

type progressReader struct {
	r     io.Reader
	total int64
	sent  int64
	fn    ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		if p.fn != nil {
			p.fn(p.sent, p.total)
		}
	}
	return n, err
}

// Archive is a binary download from the backend, usually a zip of cards.
type Archive struct {
	Filename string
	Data     []byte
}

func (c *Client) newRequest(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if t := c.token(); t != "" {
		req.Header.Set("Authorization", "Bearer "+t)
	}
	return req, nil
}

func (c *Client) send(ctx context.Context, family string, req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		cerr := classifyTransport(ctx, err)
		metrics.ObserveBackend(family, time.Since(start), cerr)
		c.log.Warn("backend call failed",
			zap.String("family", family),
			zap.String("path", req.URL.Path),
			zap.String("kind", cerr.Kind.String()),
			zap.Error(err))
		return nil, cerr
	}
	if resp.StatusCode/100 != 2 {
		aerr := decodeAPIError(resp)
		_ = resp.Body.Close()
		metrics.ObserveBackend(family, time.Since(start), aerr)
		c.log.Warn("backend rejected call",
			zap.String("family", family),
			zap.String("path", req.URL.Path),
			zap.Int("status", aerr.Status),
			zap.String("code", aerr.Code))
		return nil, aerr
	}
	metrics.ObserveBackend(family, time.Since(start), nil)
	return resp, nil
}

// decodeAPIError turns a non-2xx response into a tagged error. A body with
// a machine code becomes a business-rule rejection, anything else a plain
// server-status error.
func decodeAPIError(resp *http.Response) *Error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	_ = json.Unmarshal(body, &payload)
	msg := payload.Message
	if msg == "" {
		msg = payload.Error
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if payload.Code != "" {
		return &Error{Kind: KindBusinessRule, Code: payload.Code, Status: resp.StatusCode, Message: msg}
	}
	return &Error{Kind: KindServerStatus, Status: resp.StatusCode, Message: msg}
}

func (c *Client) doJSON(ctx context.Context, family, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		body = bytes.NewReader(buf)
		contentType = "application/json"
	}
	req, err := c.newRequest(ctx, method, path, contentType, body)
	if err != nil {
		return err
	}
	resp, err := c.send(ctx, family, req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Kind: KindServerStatus, Status: resp.StatusCode, Message: "malformed response", cause: err}
	}
	return nil
}

// formFile is one part of a multipart upload.
type formFile struct {
	field, name string
	data        []byte
}

// doMultipart uploads fields and files, reporting real progress over the
// fully assembled body.
func (c *Client) doMultipart(ctx context.Context, family, path string, fields map[string]string, files []formFile, progress ProgressFunc, out any) error {
	resp, err := c.sendMultipart(ctx, family, path, fields, files, progress)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Kind: KindServerStatus, Status: resp.StatusCode, Message: "malformed response", cause: err}
	}
	return nil
}

// doMultipartArchive is doMultipart for endpoints answering with a binary zip.
func (c *Client) doMultipartArchive(ctx context.Context, family, path string, fields map[string]string, files []formFile, progress ProgressFunc) (*Archive, error) {
	resp, err := c.sendMultipart(ctx, family, path, fields, files, progress)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	return readArchive(resp)
}

func (c *Client) sendMultipart(ctx context.Context, family, path string, fields map[string]string, files []formFile, progress ProgressFunc) (*http.Response, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("write field %s: %w", k, err)
		}
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.name)
		if err != nil {
			return nil, fmt.Errorf("create part %s: %w", f.field, err)
		}
		if _, err := part.Write(f.data); err != nil {
			return nil, fmt.Errorf("write part %s: %w", f.field, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	total := int64(buf.Len())
	body := &progressReader{r: &buf, total: total, fn: progress}
	req, err := c.newRequest(ctx, http.MethodPost, path, w.FormDataContentType(), body)
	if err != nil {
		return nil, err
	}
	req.ContentLength = total
	return c.send(ctx, family, req)
}

// doJSONArchive posts JSON and reads back a binary zip.
func (c *Client) doJSONArchive(ctx context.Context, family, path string, in any) (*Archive, error) {
	buf, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", path, err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, "application/json", bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	resp, err := c.send(ctx, family, req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	return readArchive(resp)
}

func readArchive(resp *http.Response) (*Archive, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Message: "read archive body", cause: err}
	}
	name := ""
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			name = params["filename"]
		}
	}
	return &Archive{Filename: name, Data: data}, nil
}
