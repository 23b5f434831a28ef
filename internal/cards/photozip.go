package cards

import (
	"archive/zip"
	"bytes"
	"path"
	"sort"
	"strings"

	"github.com/capmis/capmis-console/internal/capmis"
)

// MatchReport pairs photo-archive entries against roster rows. Entries must
// be named <student_id>.<ext> to auto-match.
type MatchReport struct {
	Matched   []string `json:"matched"`           // student ids with a photo
	Unmatched []string `json:"unmatched"`         // archive entries no row claims
	Missing   []string `json:"missing,omitempty"` // rows without a photo
}

func MatchPhotos(zipData []byte, studentIDs []string) (*MatchReport, error) {
	zr, err := zip.NewReader(bytes.NewReader(zipData), int64(len(zipData)))
	if err != nil {
		return nil, capmis.NewValidationError("photo archive is not a valid zip file")
	}

	byID := make(map[string]bool, len(studentIDs))
	for _, id := range studentIDs {
		byID[id] = false
	}

	var report MatchReport
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		base := path.Base(f.Name)
		id := strings.TrimSuffix(base, path.Ext(base))
		if _, ok := byID[id]; ok {
			byID[id] = true
			report.Matched = append(report.Matched, id)
		} else {
			report.Unmatched = append(report.Unmatched, base)
		}
	}
	for id, matched := range byID {
		if !matched {
			report.Missing = append(report.Missing, id)
		}
	}
	sort.Strings(report.Matched)
	sort.Strings(report.Unmatched)
	sort.Strings(report.Missing)
	return &report, nil
}
