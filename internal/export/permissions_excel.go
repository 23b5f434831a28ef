package export

import (
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/capmis/capmis-console/internal/capmis"
)

// PermissionRegister lays the full permission list out on one sheet with a
// second sheet for the currently active subset.
func PermissionRegister(perms []capmis.Permission, now time.Time) (*excelize.File, error) {
	header := []string{
		"Permission No.", "Student", "Student ID", "Class", "Guardian",
		"Guardian phone", "Reason", "Destination", "Departure",
		"Expected return", "Status", "Overdue", "Returned at",
	}
	all := make([][]string, 0, len(perms))
	var active [][]string
	for _, p := range perms {
		row := permissionRow(p, now)
		all = append(all, row)
		if p.Active() {
			active = append(active, row)
		}
	}
	sheets := []SheetSpec{
		{Title: "Register", Header: header, Rows: all},
		{Title: "Active", Header: header, Rows: active},
	}
	return BuildWorkbook(sheets)
}

func permissionRow(p capmis.Permission, now time.Time) []string {
	overdue := ""
	if p.Overdue(now) {
		overdue = "yes"
	}
	returnedAt := ""
	if p.ReturnedAt != nil {
		returnedAt = p.ReturnedAt.Format("2006-01-02 15:04")
	}
	return []string{
		p.PermissionNumber,
		p.Student.Name,
		p.Student.StudentID,
		p.Student.Class,
		p.Guardian.Name,
		p.Guardian.Phone,
		p.Reason,
		p.Destination,
		p.Departure.Format("2006-01-02 15:04"),
		p.ReturnDate.Format("2006-01-02"),
		string(p.Status),
		overdue,
		returnedAt,
	}
}

// PermissionRegisterFilename names the download after the day it was made.
func PermissionRegisterFilename(now time.Time) string {
	return sanitizeFileName(fmt.Sprintf("permission-register-%s.xlsx", now.Format("2006-01-02")))
}

// MonthlyAnalytics renders one analytics month as a day-by-day sheet.
func MonthlyAnalytics(year, month int, rows []capmis.MonthlyReportRow) (*excelize.File, error) {
	header := []string{"Day", "Created", "Returned", "Overdue"}
	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		data = append(data, []string{
			strconv.Itoa(r.Day),
			strconv.Itoa(r.Created),
			strconv.Itoa(r.Returned),
			strconv.Itoa(r.Overdue),
		})
	}
	title := fmt.Sprintf("%04d-%02d", year, month)
	return BuildWorkbook([]SheetSpec{{Title: title, Header: header, Rows: data}})
}

func MonthlyAnalyticsFilename(year, month int) string {
	return sanitizeFileName(fmt.Sprintf("permissions-monthly-%04d-%02d.xlsx", year, month))
}
