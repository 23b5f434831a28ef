package capmis

import "time"

type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
	Email     string `json:"email"`
}

// Session is what login/register hand back: the profile plus a bearer token.
type Session struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

type Dimensions struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	ScaleFactor float64 `json:"scaleFactor"`
}

// FallbackDimensions is used when the dimension lookup for a template fails.
var FallbackDimensions = Dimensions{Width: 850, Height: 478, ScaleFactor: 0.7083}

type Template struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Description   string      `json:"description"`
	FrontSide     string      `json:"frontSide"` // resolved URL when the backend provides one
	BackSide      string      `json:"backSide"`
	FrontPublicID string      `json:"frontPublicId,omitempty"`
	BackPublicID  string      `json:"backPublicId,omitempty"`
	IsDefault     bool        `json:"isDefault"`
	Dimensions    *Dimensions `json:"dimensions,omitempty"`
}

type Student struct {
	ID                  int64  `json:"id"`
	StudentID           string `json:"student_id"`
	Name                string `json:"name"`
	Class               string `json:"class"`
	Level               string `json:"level"`
	Residence           string `json:"residence"`
	Gender              string `json:"gender"`
	ParentPhone         string `json:"parent_phone"`
	AcademicYear        string `json:"academic_year,omitempty"`
	HasPhoto            bool   `json:"has_photo"`
	PhotoURL            string `json:"photo_url,omitempty"`
	CardGenerated       bool   `json:"card_generated"`
	CardGenerationCount int    `json:"card_generation_count"`
}

type Guardian struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
	Phone        string `json:"phone"`
}

type PermissionStatus string

const (
	PermissionPending  PermissionStatus = "pending"
	PermissionApproved PermissionStatus = "approved"
	PermissionReturned PermissionStatus = "returned"
)

type SMSNotification struct {
	Kind   string     `json:"kind"` // created|return_reminder|returned
	Phone  string     `json:"phone"`
	Status string     `json:"status"` // queued|sent|delivered|failed
	SentAt *time.Time `json:"sentAt,omitempty"`
}

type Permission struct {
	ID               int64             `json:"id"`
	PermissionNumber string            `json:"permissionNumber"`
	Student          Student           `json:"student"`
	Guardian         Guardian          `json:"guardian"`
	Reason           string            `json:"reason"`
	Destination      string            `json:"destination"`
	Departure        time.Time         `json:"departure"`
	ReturnDate       time.Time         `json:"returnDate"`
	Status           PermissionStatus  `json:"status"`
	SMSNotifications []SMSNotification `json:"smsNotifications,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
	ReturnedAt       *time.Time        `json:"returnedAt,omitempty"`
}

// Active reports whether the permission still holds the student out of school.
func (p Permission) Active() bool {
	return p.Status == PermissionPending || p.Status == PermissionApproved
}

// Overdue is derived, never stored: the return deadline passed while the
// permission was still approved.
func (p Permission) Overdue(now time.Time) bool {
	return p.Status == PermissionApproved && p.ReturnDate.Before(now)
}

type PermissionInput struct {
	StudentID   int64     `json:"student_id"`
	Guardian    Guardian  `json:"guardian"`
	Reason      string    `json:"reason"`
	Destination string    `json:"destination"`
	Departure   time.Time `json:"departure"`
	ReturnDate  time.Time `json:"returnDate"`
}

type ImportReport struct {
	Imported      int      `json:"imported"`
	Skipped       int      `json:"skipped"`
	PhotosMatched int      `json:"photosMatched,omitempty"`
	Errors        []string `json:"errors,omitempty"`
}

type CleanupReport struct {
	Removed int `json:"removed"`
}

type CardEvent struct {
	StudentID   string    `json:"student_id"`
	StudentName string    `json:"studentName"`
	TemplateID  string    `json:"templateId"`
	GeneratedAt time.Time `json:"generatedAt"`
	Batch       bool      `json:"batch"`
}

type CardStats struct {
	TotalGenerated int `json:"totalGenerated"`
	WithPhoto      int `json:"withPhoto"`
	WithoutPhoto   int `json:"withoutPhoto"`
	BatchRuns      int `json:"batchRuns"`
}

type DashboardSummary struct {
	TotalStudents      int `json:"totalStudents"`
	ActivePermissions  int `json:"activePermissions"`
	OverduePermissions int `json:"overduePermissions"`
	CardsGenerated     int `json:"cardsGenerated"`
}

type MonthlyReportRow struct {
	Day      int `json:"day"`
	Created  int `json:"created"`
	Returned int `json:"returned"`
	Overdue  int `json:"overdue"`
}

type WeeklyCounts struct {
	Active   int `json:"active"`
	Returned int `json:"returned"`
}

type TrendPoint struct {
	Date     time.Time `json:"date"`
	Created  int       `json:"created"`
	Returned int       `json:"returned"`
}

type PunctualityStats struct {
	OnTime int     `json:"onTime"`
	Late   int     `json:"late"`
	Rate   float64 `json:"rate"`
}

type StudentPermissionStats struct {
	StudentID int64 `json:"student_id"`
	Total     int   `json:"total"`
	Returned  int   `json:"returned"`
	Overdue   int   `json:"overdue"`
}
