// Package permissions implements the leave-permission workflow: bulk
// creation with all-or-nothing validation, return marking, and printable
// documents.
package permissions

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/capmis/capmis-console/internal/capmis"
	"github.com/capmis/capmis-console/internal/metrics"
)

type API interface {
	ListPermissions(ctx context.Context) ([]capmis.Permission, error)
	CreatePermission(ctx context.Context, in capmis.PermissionInput) (*capmis.Permission, error)
	CreatePermissions(ctx context.Context, in []capmis.PermissionInput) ([]capmis.Permission, error)
	UpdatePermissionStatus(ctx context.Context, id int64, status capmis.PermissionStatus) (*capmis.Permission, error)
}

// Form is one permission request as filled in for a selected student.
type Form struct {
	StudentID            int64     `json:"student_id" validate:"required"`
	StudentName          string    `json:"studentName"`
	GuardianName         string    `json:"guardianName" validate:"required"`
	GuardianRelationship string    `json:"guardianRelationship"`
	GuardianPhone        string    `json:"guardianPhone"`
	Reason               string    `json:"reason" validate:"required"`
	Destination          string    `json:"destination" validate:"required"`
	Departure            time.Time `json:"departure"`
	ReturnDate           time.Time `json:"returnDate" validate:"required"`
}

func (f Form) input() capmis.PermissionInput {
	return capmis.PermissionInput{
		StudentID: f.StudentID,
		Guardian: capmis.Guardian{
			Name:         f.GuardianName,
			Relationship: f.GuardianRelationship,
			Phone:        f.GuardianPhone,
		},
		Reason:      f.Reason,
		Destination: f.Destination,
		Departure:   f.Departure,
		ReturnDate:  f.ReturnDate,
	}
}

// FieldErrors lists what one student's form is missing.
type FieldErrors struct {
	Student string   `json:"student"`
	Fields  []string `json:"fields"`
}

// ValidationError aborts a whole bulk submission; it enumerates every
// missing field for every student so the operator fixes them in one pass.
type ValidationError struct {
	PerStudent []FieldErrors `json:"perStudent"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.PerStudent))
	for _, fe := range e.PerStudent {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Student, strings.Join(fe.Fields, ", ")))
	}
	return "permission form incomplete: " + strings.Join(parts, "; ")
}

// Studio drives permission issuance over a locally cached permission list.
type Studio struct {
	api      API
	log      *zap.Logger
	validate *validator.Validate

	mu    sync.RWMutex
	perms []capmis.Permission
}

func NewStudio(api API, log *zap.Logger) *Studio {
	v := validator.New(validator.WithRequiredStructEnabled())
	// error messages use JSON names, not Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Studio{api: api, log: log, validate: v}
}

// Refresh replaces the cached permission list with the backend's and
// updates the overdue gauge.
func (s *Studio) Refresh(ctx context.Context) error {
	perms, err := s.api.ListPermissions(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.perms = perms
	s.mu.Unlock()

	overdue := 0
	now := time.Now()
	for _, p := range perms {
		if p.Overdue(now) {
			overdue++
		}
	}
	metrics.OverduePermissions.Set(float64(overdue))
	return nil
}

func (s *Studio) All() []capmis.Permission {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]capmis.Permission, len(s.perms))
	copy(out, s.perms)
	return out
}

// Active returns permissions still holding a student out of school.
func (s *Studio) Active() []capmis.Permission {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []capmis.Permission
	for _, p := range s.perms {
		if p.Active() {
			out = append(out, p)
		}
	}
	return out
}

func (s *Studio) Overdue(now time.Time) []capmis.Permission {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []capmis.Permission
	for _, p := range s.perms {
		if p.Overdue(now) {
			out = append(out, p)
		}
	}
	return out
}

// HasActive reports whether the cached list holds an active permission for
// the student. The server enforces the one-active invariant; this is how
// the console surfaces it before a doomed submit.
func (s *Studio) HasActive(studentID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.perms {
		if p.Student.ID == studentID && p.Active() {
			return true
		}
	}
	return false
}

// CreateBulk validates every form before submitting any. One missing field
// anywhere aborts the entire batch; nothing is partially created.
func (s *Studio) CreateBulk(ctx context.Context, forms []Form) ([]capmis.Permission, error) {
	if len(forms) == 0 {
		return nil, capmis.NewValidationError("no students selected")
	}

	var verr ValidationError
	for _, f := range forms {
		fields := s.missingFields(f)
		if s.HasActive(f.StudentID) {
			fields = append(fields, "active permission already open")
		}
		if len(fields) > 0 {
			verr.PerStudent = append(verr.PerStudent, FieldErrors{
				Student: studentLabel(f),
				Fields:  fields,
			})
		}
	}
	if len(verr.PerStudent) > 0 {
		return nil, &verr
	}

	inputs := make([]capmis.PermissionInput, len(forms))
	for i, f := range forms {
		inputs[i] = f.input()
	}

	var created []capmis.Permission
	if len(inputs) == 1 {
		p, err := s.api.CreatePermission(ctx, inputs[0])
		if err != nil {
			return nil, err
		}
		created = []capmis.Permission{*p}
	} else {
		var err error
		created, err = s.api.CreatePermissions(ctx, inputs)
		if err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	s.perms = append(s.perms, created...)
	s.mu.Unlock()
	metrics.PermissionsCreated.Add(float64(len(created)))
	return created, nil
}

func (s *Studio) missingFields(f Form) []string {
	err := s.validate.Struct(f)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	sort.Strings(fields)
	return fields
}

func studentLabel(f Form) string {
	if f.StudentName != "" {
		return f.StudentName
	}
	return fmt.Sprintf("student %d", f.StudentID)
}

// MarkReturned transitions approved → returned. The backend's response is
// merged back as the source of truth; retrying after success is a local
// no-op rather than a duplicate transition.
func (s *Studio) MarkReturned(ctx context.Context, id int64) (*capmis.Permission, error) {
	s.mu.RLock()
	for _, p := range s.perms {
		if p.ID == id && p.Status == capmis.PermissionReturned {
			cached := p
			s.mu.RUnlock()
			return &cached, nil
		}
	}
	s.mu.RUnlock()

	updated, err := s.api.UpdatePermissionStatus(ctx, id, capmis.PermissionReturned)
	if err != nil {
		return nil, err
	}
	s.merge(*updated)
	return updated, nil
}

func (s *Studio) merge(p capmis.Permission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.perms {
		if s.perms[i].ID == p.ID {
			s.perms[i] = p
			return
		}
	}
	s.perms = append(s.perms, p)
}
