package cards

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/capmis/capmis-console/internal/capmis"
)

// fakeAPI implements API with canned responses and call accounting.
type fakeAPI struct {
	mu          sync.Mutex
	batchCalls  int
	singleCalls int
	block       chan struct{} // when set, GenerateBatch waits on it

	templates  []capmis.Template
	dims       capmis.Dimensions
	dimsErr    error
	archive    *capmis.Archive
	genErr     error
	uploaded   *capmis.Student
	lastBatch  capmis.BatchGeneration
	lastSingle capmis.SingleGeneration
}

func (f *fakeAPI) ListTemplates(ctx context.Context) ([]capmis.Template, error) {
	return f.templates, nil
}

func (f *fakeAPI) TemplateDimensions(ctx context.Context, id string) (capmis.Dimensions, error) {
	if f.dimsErr != nil {
		return capmis.Dimensions{}, f.dimsErr
	}
	return f.dims, nil
}

func (f *fakeAPI) TemplatePreviewURL(ctx context.Context, publicID string) (string, error) {
	return "https://cdn.example/" + publicID, nil
}

func (f *fakeAPI) GenerateBatch(ctx context.Context, in capmis.BatchGeneration, progress capmis.ProgressFunc) (*capmis.Archive, error) {
	f.mu.Lock()
	f.batchCalls++
	f.lastBatch = in
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, &capmis.Error{Kind: capmis.KindTimeout}
		}
	}
	if progress != nil {
		progress(50, 100)
		progress(100, 100)
	}
	if f.genErr != nil {
		return nil, f.genErr
	}
	if f.archive != nil {
		return f.archive, nil
	}
	return &capmis.Archive{Data: []byte("PK")}, nil
}

func (f *fakeAPI) GenerateSingle(ctx context.Context, in capmis.SingleGeneration) (*capmis.Archive, error) {
	f.mu.Lock()
	f.singleCalls++
	f.lastSingle = in
	f.mu.Unlock()
	if f.genErr != nil {
		return nil, f.genErr
	}
	if f.archive != nil {
		return f.archive, nil
	}
	return &capmis.Archive{Data: []byte("PK")}, nil
}

func (f *fakeAPI) UploadStudentPhoto(ctx context.Context, studentID int64, filename string, photo []byte) (*capmis.Student, error) {
	return f.uploaded, nil
}

const genCSV = "student_id,name,class,level,residence,gender,parent_phone,academic_year\n" +
	"S001,Alice,5A,primary,Douala,F,670000001,2025-2026\n" +
	"S002,Ben,5A,primary,Yaounde,M,670000002,2025-2026\n"

func batchWizard(t *testing.T, api *fakeAPI) *Wizard {
	t.Helper()
	w := newWizard("w1", ModeBatch, api, zap.NewNop())
	if err := w.AttachCSV("students.csv", []byte(genCSV)); err != nil {
		t.Fatal(err)
	}
	return w
}

func TestProcessStepRequiresTemplate(t *testing.T) {
	w := batchWizard(t, &fakeAPI{})
	err := w.SetStep(StepProcess)
	if !errors.Is(err, ErrTemplateRequired) {
		t.Fatalf("expected ErrTemplateRequired, got %v", err)
	}
	if got := w.Snapshot().Step; got != StepTemplate {
		t.Fatalf("wizard should land on the template step, got %q", got)
	}

	w.SelectTemplate("T1", capmis.Dimensions{Width: 850, Height: 478})
	if err := w.SetStep(StepProcess); err != nil {
		t.Fatal(err)
	}
	if got := w.Snapshot().Step; got != StepProcess {
		t.Fatalf("step = %q after selecting a template", got)
	}
}

func TestGenerateRequiresTemplateAndCSV(t *testing.T) {
	api := &fakeAPI{}
	w := newWizard("w1", ModeBatch, api, zap.NewNop())
	if err := w.Generate(context.Background()); !errors.Is(err, ErrTemplateRequired) {
		t.Fatalf("expected ErrTemplateRequired, got %v", err)
	}
	w.SelectTemplate("T1", capmis.Dimensions{Width: 850, Height: 478})
	if err := w.Generate(context.Background()); !errors.Is(err, ErrNoCSV) {
		t.Fatalf("expected ErrNoCSV, got %v", err)
	}
	if api.batchCalls != 0 {
		t.Fatal("backend must not be called before the wizard validates")
	}
}

func TestBatchGenerationDefaultFilename(t *testing.T) {
	api := &fakeAPI{}
	w := batchWizard(t, api)
	w.SelectTemplate("T1", capmis.Dimensions{Width: 850, Height: 478})

	if err := w.Generate(context.Background()); err != nil {
		t.Fatal(err)
	}
	snap := w.Snapshot()
	if snap.Generation.Status != StatusCompleted || snap.Generation.Progress != 100 {
		t.Fatalf("generation view = %+v", snap.Generation)
	}
	pattern := regexp.MustCompile(`^batch-cards-\d+\.zip$`)
	if !pattern.MatchString(snap.Generation.Filename) {
		t.Fatalf("default filename = %q", snap.Generation.Filename)
	}
	if snap.Generation.BatchInfo.Processed != 2 {
		t.Fatalf("processed = %d, want 2", snap.Generation.BatchInfo.Processed)
	}
	if api.lastBatch.TemplateID != "T1" {
		t.Fatalf("templateId not forwarded: %q", api.lastBatch.TemplateID)
	}
	if !strings.Contains(string(api.lastBatch.Coordinates), `"name"`) {
		t.Fatalf("coordinates not serialized: %s", api.lastBatch.Coordinates)
	}
}

func TestBatchGenerationWithoutParentPhoneColumn(t *testing.T) {
	api := &fakeAPI{}
	w := newWizard("w1", ModeBatch, api, zap.NewNop())
	csv := "student_id,name,class,level,residence,gender,academic_year\n" +
		"S001,Alice Mbarga,5A,primary,Douala,F,2025-2026\n"
	if err := w.AttachCSV("students.csv", []byte(csv)); err != nil {
		t.Fatal(err)
	}
	w.SelectTemplate("T1", capmis.Dimensions{Width: 850, Height: 478})
	if err := w.Generate(context.Background()); err != nil {
		t.Fatal(err)
	}
	if api.batchCalls != 1 {
		t.Fatalf("backend called %d times, want 1", api.batchCalls)
	}
	if string(api.lastBatch.CSV) != csv {
		t.Fatal("csv bytes not forwarded untouched")
	}
}

func TestServerFilenameWins(t *testing.T) {
	api := &fakeAPI{archive: &capmis.Archive{Filename: "cards-2026.zip", Data: []byte("PK")}}
	w := batchWizard(t, api)
	w.SelectTemplate("T1", capmis.Dimensions{Width: 850, Height: 478})
	if err := w.Generate(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := w.Archive().Filename; got != "cards-2026.zip" {
		t.Fatalf("filename = %q, want the server's", got)
	}
}

func TestDoubleSubmitRejectedSynchronously(t *testing.T) {
	api := &fakeAPI{block: make(chan struct{})}
	w := batchWizard(t, api)
	w.SelectTemplate("T1", capmis.Dimensions{Width: 850, Height: 478})

	in, err := w.beginGeneration()
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan error, 1)
	go func() { done <- w.runGeneration(context.Background(), in) }()

	if err := w.Generate(context.Background()); !errors.Is(err, ErrGenerationInFlight) {
		t.Fatalf("expected ErrGenerationInFlight, got %v", err)
	}

	close(api.block)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if api.batchCalls != 1 {
		t.Fatalf("backend called %d times, want 1", api.batchCalls)
	}
}

func TestSelectStudentGatesOnPhoto(t *testing.T) {
	api := &fakeAPI{}
	w := newWizard("w1", ModeSingle, api, zap.NewNop())
	w.SelectTemplate("T1", capmis.Dimensions{Width: 850, Height: 478})

	need, err := w.SelectStudent(capmis.Student{ID: 5, Name: "Alice", HasPhoto: false})
	if err != nil {
		t.Fatal(err)
	}
	if !need {
		t.Fatal("student without a photo should require one")
	}
	snap := w.Snapshot()
	if snap.Step == StepProcess {
		t.Fatal("wizard must not advance to process without a photo")
	}
	if !snap.PhotoRequired {
		t.Fatal("snapshot should flag the photo requirement")
	}
	if err := w.Generate(context.Background()); !errors.Is(err, ErrPhotoRequired) {
		t.Fatalf("expected ErrPhotoRequired, got %v", err)
	}

	need, err = w.SelectStudent(capmis.Student{ID: 6, Name: "Ben", HasPhoto: true})
	if err != nil {
		t.Fatal(err)
	}
	if need {
		t.Fatal("student with a photo should not require one")
	}
	if got := w.Snapshot().Step; got != StepProcess {
		t.Fatalf("step = %q, want process", got)
	}
}

func TestSelectStudentRejectsBatchMode(t *testing.T) {
	w := batchWizard(t, &fakeAPI{})
	_, err := w.SelectStudent(capmis.Student{ID: 5, Name: "Alice", HasPhoto: true})
	if !errors.Is(err, ErrWrongMode) {
		t.Fatalf("expected ErrWrongMode, got %v", err)
	}
	if snap := w.Snapshot(); snap.Student != nil || snap.PhotoRequired {
		t.Fatalf("batch wizard mutated by student selection: %+v", snap)
	}
}

func TestUploadPhotoAdoptsServerResponse(t *testing.T) {
	api := &fakeAPI{uploaded: &capmis.Student{ID: 5, Name: "Alice M.", HasPhoto: true, PhotoURL: "https://cdn/p.jpg"}}
	w := newWizard("w1", ModeSingle, api, zap.NewNop())
	w.SelectTemplate("T1", capmis.Dimensions{Width: 850, Height: 478})
	w.SelectStudent(capmis.Student{ID: 5, Name: "Alice", HasPhoto: false})

	if err := w.UploadPhoto(context.Background(), "p.jpg", []byte("img")); err != nil {
		t.Fatal(err)
	}
	snap := w.Snapshot()
	if snap.Student == nil || !snap.Student.HasPhoto || snap.Student.Name != "Alice M." {
		t.Fatalf("cached student not replaced by server response: %+v", snap.Student)
	}
	if snap.Step != StepProcess || snap.PhotoRequired {
		t.Fatalf("photo sub-flow did not advance: step=%q required=%v", snap.Step, snap.PhotoRequired)
	}
}

func TestPhotoRequiredRejectionReopensSubflow(t *testing.T) {
	api := &fakeAPI{genErr: &capmis.Error{
		Kind: capmis.KindBusinessRule, Code: capmis.CodePhotoRequired, Status: 422,
	}}
	w := newWizard("w1", ModeSingle, api, zap.NewNop())
	w.SelectTemplate("T1", capmis.Dimensions{Width: 850, Height: 478})
	w.SelectStudent(capmis.Student{ID: 5, Name: "Alice", HasPhoto: true})

	err := w.Generate(context.Background())
	if !errors.Is(err, ErrPhotoRequired) {
		t.Fatalf("expected ErrPhotoRequired, got %v", err)
	}
	snap := w.Snapshot()
	if snap.Generation.Status != StatusIdle {
		t.Fatalf("status = %q, want idle (rejection is not a failure)", snap.Generation.Status)
	}
	if !snap.PhotoRequired || snap.Student.HasPhoto {
		t.Fatalf("sub-flow not reopened: %+v", snap)
	}
}

func TestGenerationTimeoutIsReported(t *testing.T) {
	api := &fakeAPI{block: make(chan struct{})}
	w := batchWizard(t, api)
	w.SelectTemplate("T1", capmis.Dimensions{Width: 850, Height: 478})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := w.Generate(ctx)
	if capmis.KindOf(err) != capmis.KindTimeout {
		t.Fatalf("expected timeout kind, got %v", err)
	}
	snap := w.Snapshot()
	if snap.Generation.Status != StatusError || snap.Generation.ErrorKind != "timeout" {
		t.Fatalf("generation view = %+v", snap.Generation)
	}
}

func TestManagerPreselectsSoleDefaultTemplate(t *testing.T) {
	api := &fakeAPI{
		templates: []capmis.Template{
			{ID: "T1", Name: "Plain"},
			{ID: "T2", Name: "Crest", IsDefault: true},
		},
		dims: capmis.Dimensions{Width: 900, Height: 500, ScaleFactor: 0.75},
	}
	m := NewManager(api, zap.NewNop(), time.Minute)
	w, err := m.Create(context.Background(), ModeBatch)
	if err != nil {
		t.Fatal(err)
	}
	snap := w.Snapshot()
	if snap.TemplateID != "T2" {
		t.Fatalf("templateId = %q, want the sole default", snap.TemplateID)
	}
	if snap.Dimensions.Width != 900 {
		t.Fatalf("dimensions not resolved: %+v", snap.Dimensions)
	}

	if _, ok := m.Get(w.ID); !ok {
		t.Fatal("wizard not registered")
	}
	m.Remove(w.ID)
	if _, ok := m.Get(w.ID); ok {
		t.Fatal("wizard not removed")
	}
}

func TestManagerSkipsAmbiguousDefault(t *testing.T) {
	api := &fakeAPI{
		templates: []capmis.Template{
			{ID: "T1", IsDefault: true},
			{ID: "T2", IsDefault: true},
		},
	}
	m := NewManager(api, zap.NewNop(), time.Minute)
	w, err := m.Create(context.Background(), ModeSingle)
	if err != nil {
		t.Fatal(err)
	}
	if got := w.Snapshot().TemplateID; got != "" {
		t.Fatalf("templateId = %q, want none with two defaults", got)
	}
}

func TestDimensionsFallback(t *testing.T) {
	api := &fakeAPI{dimsErr: errors.New("503")}
	r := NewTemplateRegistry(api, zap.NewNop())
	d := r.DimensionsFor(context.Background(), "T1")
	if d != capmis.FallbackDimensions {
		t.Fatalf("dimensions = %+v, want fallback", d)
	}
}
