package cards

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/capmis/capmis-console/internal/capmis"
)

type Step string

const (
	StepUpload      Step = "upload"
	StepTemplate    Step = "template"
	StepCoordinates Step = "coordinates"
	StepProcess     Step = "process"
)

func validStep(s Step) bool {
	switch s {
	case StepUpload, StepTemplate, StepCoordinates, StepProcess:
		return true
	}
	return false
}

type Mode string

const (
	ModeBatch  Mode = "batch"
	ModeSingle Mode = "single"
)

type GenStatus string

const (
	StatusIdle       GenStatus = "idle"
	StatusProcessing GenStatus = "processing"
	StatusCompleted  GenStatus = "completed"
	StatusError      GenStatus = "error"
)

var (
	ErrTemplateRequired   = errors.New("a template must be selected before processing")
	ErrGenerationInFlight = errors.New("a generation is already running for this wizard")
	ErrPhotoRequired      = errors.New("the selected student has no photo on file")
	ErrNoCSV              = errors.New("no CSV has been attached")
	ErrNoStudent          = errors.New("no student has been selected")
	ErrWrongMode          = errors.New("operation does not apply to this wizard mode")
)

// GenerateAPI is the slice of the backend client the wizard drives.
type GenerateAPI interface {
	GenerateBatch(ctx context.Context, in capmis.BatchGeneration, progress capmis.ProgressFunc) (*capmis.Archive, error)
	GenerateSingle(ctx context.Context, in capmis.SingleGeneration) (*capmis.Archive, error)
	UploadStudentPhoto(ctx context.Context, studentID int64, filename string, photo []byte) (*capmis.Student, error)
}

type BatchInfo struct {
	TotalCards  int    `json:"totalCards"`
	Processed   int    `json:"processed"`
	Failed      int    `json:"failed"`
	StudentName string `json:"studentName,omitempty"`
}

// Wizard is one card-generation session: four steps, two modes, one
// generation at a time. All fields are guarded by mu; handlers only ever
// see snapshots.
type Wizard struct {
	ID string

	api GenerateAPI
	log *zap.Logger

	mu         sync.Mutex
	step       Step
	mode       Mode
	templateID string
	dims       capmis.Dimensions
	haveDims   bool
	coords     CoordinateMap

	student   *capmis.Student
	needPhoto bool

	csvName    string
	csvData    []byte
	zipName    string
	zipData    []byte
	totalCards int

	genStatus GenStatus
	progress  int
	batch     BatchInfo
	genErr    error
	archive   *capmis.Archive
}

func newWizard(id string, mode Mode, api GenerateAPI, log *zap.Logger) *Wizard {
	return &Wizard{
		ID:        id,
		api:       api,
		log:       log,
		step:      StepUpload,
		mode:      mode,
		coords:    DefaultCoordinates(),
		genStatus: StatusIdle,
	}
}

// SetStep navigates freely between steps, except that process is gated on a
// selected template: without one the wizard lands back on the template step.
func (w *Wizard) SetStep(s Step) error {
	if !validStep(s) {
		return fmt.Errorf("unknown step %q", s)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if s == StepProcess && w.templateID == "" {
		w.step = StepTemplate
		return ErrTemplateRequired
	}
	w.step = s
	return nil
}

// SelectTemplate pins the wizard to a template and its pixel space; any
// coordinates already edited are clamped into the new bounds.
func (w *Wizard) SelectTemplate(id string, dims capmis.Dimensions) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.templateID = id
	w.dims = dims
	w.haveDims = true
	w.coords.Clamp(dims)
}

func (w *Wizard) SetCoordinate(field string, axis Axis, raw string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.coords.Set(field, axis, raw); err != nil {
		return err
	}
	if w.haveDims {
		w.coords.Clamp(w.dims)
	}
	return nil
}

// AttachCSV validates the generation header before accepting the file.
func (w *Wizard) AttachCSV(name string, data []byte) error {
	if err := ValidateHeader(data, GenerationColumns); err != nil {
		return err
	}
	n, err := CountRows(data)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.mode != ModeBatch {
		return ErrWrongMode
	}
	w.csvName = name
	w.csvData = data
	w.totalCards = n
	return nil
}

// AttachPhotoZip stores the optional photo archive and reports how its
// entries match the attached roster.
func (w *Wizard) AttachPhotoZip(name string, data []byte) (*MatchReport, error) {
	w.mu.Lock()
	if w.mode != ModeBatch {
		w.mu.Unlock()
		return nil, ErrWrongMode
	}
	csvData := w.csvData
	w.zipName = name
	w.zipData = data
	w.mu.Unlock()

	if csvData == nil {
		return MatchPhotos(data, nil)
	}
	ids, err := StudentIDs(csvData)
	if err != nil {
		return nil, err
	}
	return MatchPhotos(data, ids)
}

// SelectStudent picks the subject of a single-mode wizard. A student with a
// photo goes straight to the process step; one without is held behind the
// photo sub-flow.
func (w *Wizard) SelectStudent(st capmis.Student) (photoRequired bool, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.mode != ModeSingle {
		return false, ErrWrongMode
	}
	w.student = &st
	if st.HasPhoto {
		w.needPhoto = false
		w.step = StepProcess
		return false, nil
	}
	w.needPhoto = true
	return true, nil
}

// UploadPhoto runs the photo sub-flow: the backend's response replaces the
// cached student wholesale, and the wizard advances to process.
func (w *Wizard) UploadPhoto(ctx context.Context, filename string, photo []byte) error {
	w.mu.Lock()
	st := w.student
	w.mu.Unlock()
	if st == nil {
		return ErrNoStudent
	}
	updated, err := w.api.UploadStudentPhoto(ctx, st.ID, filename, photo)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.student = updated
	w.needPhoto = false
	w.step = StepProcess
	w.mu.Unlock()
	return nil
}

// CancelPhoto abandons the sub-flow without touching the cached student.
func (w *Wizard) CancelPhoto() {
	w.mu.Lock()
	w.needPhoto = false
	w.mu.Unlock()
}

// genInputs is everything a generation run needs, captured at begin time so
// later edits to the wizard cannot leak into a running job.
type genInputs struct {
	mode   Mode
	batch  capmis.BatchGeneration
	single capmis.SingleGeneration
}

// beginGeneration validates the wizard and flips it to processing while the
// lock is held, so a double submit loses synchronously rather than racing.
func (w *Wizard) beginGeneration() (*genInputs, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.genStatus == StatusProcessing {
		return nil, ErrGenerationInFlight
	}
	if w.templateID == "" {
		w.step = StepTemplate
		return nil, ErrTemplateRequired
	}
	switch w.mode {
	case ModeBatch:
		if w.csvData == nil {
			return nil, ErrNoCSV
		}
	case ModeSingle:
		if w.student == nil {
			return nil, ErrNoStudent
		}
		if w.needPhoto {
			return nil, ErrPhotoRequired
		}
	}
	coordsJSON, err := json.Marshal(w.coords)
	if err != nil {
		return nil, err
	}
	w.genStatus = StatusProcessing
	w.progress = 0
	w.genErr = nil
	w.archive = nil
	w.batch = BatchInfo{TotalCards: w.totalCards}
	if w.mode == ModeSingle {
		w.batch = BatchInfo{TotalCards: 1, StudentName: w.student.Name}
	}
	in := &genInputs{
		mode: w.mode,
		batch: capmis.BatchGeneration{
			CSVName:     w.csvName,
			CSV:         w.csvData,
			ZipName:     w.zipName,
			PhotoZip:    w.zipData,
			TemplateID:  w.templateID,
			Coordinates: coordsJSON,
		},
	}
	if w.mode == ModeSingle {
		in.single = capmis.SingleGeneration{
			StudentID:   w.student.ID,
			TemplateID:  w.templateID,
			Coordinates: coordsJSON,
		}
	}
	return in, nil
}

// Generate runs the generation synchronously under ctx; cancelling ctx
// aborts the backend request itself, not just the wait. Exactly one
// generation may run per wizard.
func (w *Wizard) Generate(ctx context.Context) error {
	in, err := w.beginGeneration()
	if err != nil {
		return err
	}
	return w.runGeneration(ctx, in)
}

func (w *Wizard) runGeneration(ctx context.Context, in *genInputs) error {
	mode := in.mode
	var archive *capmis.Archive
	var err error
	if mode == ModeBatch {
		// upload bytes map onto 0..90, the render wait holds at 90
		archive, err = w.api.GenerateBatch(ctx, in.batch, func(sent, total int64) {
			if total <= 0 {
				return
			}
			w.setProgress(int(sent * 90 / total))
		})
	} else {
		w.setProgress(50)
		archive, err = w.api.GenerateSingle(ctx, in.single)
	}

	if err != nil {
		if mode == ModeSingle && capmis.IsBusinessRule(err, capmis.CodePhotoRequired) {
			// not a failure: reopen the photo sub-flow
			w.mu.Lock()
			w.genStatus = StatusIdle
			w.progress = 0
			w.needPhoto = true
			if w.student != nil {
				w.student.HasPhoto = false
			}
			w.mu.Unlock()
			return ErrPhotoRequired
		}
		w.mu.Lock()
		w.genStatus = StatusError
		w.genErr = err
		w.batch.Failed = w.batch.TotalCards
		w.mu.Unlock()
		return err
	}

	if archive.Filename == "" {
		if mode == ModeBatch {
			archive.Filename = fmt.Sprintf("batch-cards-%d.zip", time.Now().Unix())
		} else {
			archive.Filename = fmt.Sprintf("card-%d.zip", in.single.StudentID)
		}
	}
	w.mu.Lock()
	w.genStatus = StatusCompleted
	w.progress = 100
	w.batch.Processed = w.batch.TotalCards
	w.archive = archive
	w.mu.Unlock()
	return nil
}

func (w *Wizard) setProgress(p int) {
	w.mu.Lock()
	if w.genStatus == StatusProcessing && p > w.progress {
		w.progress = p
	}
	w.mu.Unlock()
}

func (w *Wizard) Mode() Mode {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mode
}

// Archive returns the finished download, nil until generation completes.
func (w *Wizard) Archive() *capmis.Archive {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.archive
}

type GenerationView struct {
	Status    GenStatus `json:"status"`
	Progress  int       `json:"progress"`
	BatchInfo BatchInfo `json:"batchInfo"`
	Error     string    `json:"error,omitempty"`
	ErrorKind string    `json:"errorKind,omitempty"`
	Filename  string    `json:"filename,omitempty"`
}

type View struct {
	ID               string            `json:"id"`
	Step             Step              `json:"step"`
	Mode             Mode              `json:"mode"`
	TemplateID       string            `json:"templateId,omitempty"`
	Dimensions       capmis.Dimensions `json:"dimensions"`
	Coordinates      CoordinateMap     `json:"coordinates"`
	Student          *capmis.Student   `json:"student,omitempty"`
	PhotoRequired    bool              `json:"photoRequired"`
	CSVAttached      bool              `json:"csvAttached"`
	PhotoZipAttached bool              `json:"photoZipAttached"`
	TotalCards       int               `json:"totalCards"`
	Generation       GenerationView    `json:"generation"`
}

func (w *Wizard) Snapshot() View {
	w.mu.Lock()
	defer w.mu.Unlock()

	coords := make(CoordinateMap, len(w.coords))
	for k, v := range w.coords {
		coords[k] = v
	}
	var student *capmis.Student
	if w.student != nil {
		s := *w.student
		student = &s
	}
	gen := GenerationView{
		Status:    w.genStatus,
		Progress:  w.progress,
		BatchInfo: w.batch,
	}
	if w.genErr != nil {
		gen.Error = w.genErr.Error()
		if k := capmis.KindOf(w.genErr); k != 0 {
			gen.ErrorKind = k.String()
		}
	}
	if w.archive != nil {
		gen.Filename = w.archive.Filename
	}
	dims := w.dims
	if !w.haveDims {
		dims = capmis.FallbackDimensions
	}
	return View{
		ID:               w.ID,
		Step:             w.step,
		Mode:             w.mode,
		TemplateID:       w.templateID,
		Dimensions:       dims,
		Coordinates:      coords,
		Student:          student,
		PhotoRequired:    w.needPhoto,
		CSVAttached:      w.csvData != nil,
		PhotoZipAttached: w.zipData != nil,
		TotalCards:       w.totalCards,
		Generation:       gen,
	}
}
