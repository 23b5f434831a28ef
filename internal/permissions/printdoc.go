package permissions

import (
	"bytes"
	"html/template"
	"time"

	"github.com/capmis/capmis-console/internal/capmis"
)

// RenderPrintable produces a complete standalone HTML document, one
// .permission-document block per record with an explicit page break, for
// the browser's native print dialog.
func RenderPrintable(perms []capmis.Permission, now time.Time) ([]byte, error) {
	data := struct {
		Permissions []capmis.Permission
		Now         time.Time
	}{perms, now}
	var buf bytes.Buffer
	if err := printTmpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var printTmpl = template.Must(template.New("permissions").Funcs(template.FuncMap{
	"date":     func(t time.Time) string { return t.Format("02 Jan 2006") },
	"datetime": func(t time.Time) string { return t.Format("02 Jan 2006 15:04") },
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Leave Permissions</title>
<style>
  body { font-family: "Segoe UI", Arial, sans-serif; margin: 0; color: #1a1a1a; }
  .permission-document {
    padding: 40px 48px;
    page-break-after: always;
  }
  .permission-document:last-child { page-break-after: auto; }
  .doc-header { text-align: center; border-bottom: 2px solid #1a1a1a; padding-bottom: 12px; }
  .doc-header h1 { margin: 0; font-size: 20px; letter-spacing: 1px; }
  .doc-header .number { font-size: 13px; color: #555; margin-top: 4px; }
  table.details { width: 100%; margin-top: 24px; border-collapse: collapse; }
  table.details td { padding: 6px 4px; vertical-align: top; font-size: 14px; }
  table.details td.label { width: 180px; font-weight: bold; color: #333; }
  .status { display: inline-block; padding: 2px 10px; border-radius: 3px; font-size: 12px; }
  .status.approved { background: #e6f4ea; color: #137333; }
  .status.pending { background: #fef7e0; color: #b06000; }
  .status.returned { background: #e8eaed; color: #3c4043; }
  .overdue { color: #c5221f; font-weight: bold; }
  .signatures { display: flex; justify-content: space-between; margin-top: 64px; font-size: 13px; }
  .signatures .line { width: 220px; border-top: 1px solid #1a1a1a; padding-top: 6px; text-align: center; }
  .footer { margin-top: 32px; font-size: 11px; color: #777; text-align: right; }
  @media print { .permission-document { padding: 24px 32px; } }
</style>
</head>
<body>
{{range .Permissions}}
<div class="permission-document">
  <div class="doc-header">
    <h1>STUDENT LEAVE PERMISSION</h1>
    <div class="number">Permission No. {{.PermissionNumber}}</div>
  </div>
  <table class="details">
    <tr><td class="label">Student</td><td>{{.Student.Name}} ({{.Student.StudentID}})</td></tr>
    <tr><td class="label">Class / Level</td><td>{{.Student.Class}} / {{.Student.Level}}</td></tr>
    <tr><td class="label">Guardian</td><td>{{.Guardian.Name}}{{if .Guardian.Relationship}} ({{.Guardian.Relationship}}){{end}}</td></tr>
    <tr><td class="label">Guardian phone</td><td>{{.Guardian.Phone}}</td></tr>
    <tr><td class="label">Reason</td><td>{{.Reason}}</td></tr>
    <tr><td class="label">Destination</td><td>{{.Destination}}</td></tr>
    <tr><td class="label">Departure</td><td>{{datetime .Departure}}</td></tr>
    <tr><td class="label">Expected return</td><td>{{date .ReturnDate}}{{if .Overdue $.Now}} <span class="overdue">OVERDUE</span>{{end}}</td></tr>
    <tr><td class="label">Status</td><td><span class="status {{.Status}}">{{.Status}}</span></td></tr>
  </table>
  <div class="signatures">
    <div class="line">Guardian signature</div>
    <div class="line">Administrator signature</div>
  </div>
  <div class="footer">Issued {{datetime .CreatedAt}} · CAPMIS</div>
</div>
{{end}}
</body>
</html>
`))
