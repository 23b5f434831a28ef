package cards

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/capmis/capmis-console/internal/capmis"
)

// ImportColumns is the roster-import contract, in order.
var ImportColumns = []string{
	"student_id", "name", "class", "level", "residence", "gender", "parent_phone",
}

// GenerationColumns is the batch-generation contract: the identity columns
// plus the academic year printed on the card. parent_phone is forwarded
// when present but never required for generation.
var GenerationColumns = []string{
	"student_id", "name", "class", "level", "residence", "gender", "academic_year",
}

// ValidateHeader checks that the CSV's first row carries every required
// column. Extra trailing columns are tolerated.
func ValidateHeader(data []byte, required []string) error {
	r := csv.NewReader(bytes.NewReader(data))
	header, err := r.Read()
	if err != nil {
		return capmis.NewValidationError("CSV file is empty or unreadable")
	}
	seen := make(map[string]bool, len(header))
	for _, h := range header {
		seen[strings.TrimSpace(strings.ToLower(h))] = true
	}
	var missing []string
	for _, col := range required {
		if !seen[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return capmis.NewValidationError(
			fmt.Sprintf("CSV is missing required columns: %s", strings.Join(missing, ", ")))
	}
	return nil
}

// CountRows returns the number of data rows after the header.
func CountRows(data []byte) (int, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	if _, err := r.Read(); err != nil {
		return 0, capmis.NewValidationError("CSV file is empty or unreadable")
	}
	n := 0
	for {
		_, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, capmis.NewValidationError(fmt.Sprintf("CSV row %d is malformed", n+2))
		}
		n++
	}
	return n, nil
}

// StudentIDs extracts the student_id column of every data row.
func StudentIDs(data []byte) ([]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, capmis.NewValidationError("CSV file is empty or unreadable")
	}
	idx := -1
	for i, h := range header {
		if strings.TrimSpace(strings.ToLower(h)) == "student_id" {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, capmis.NewValidationError("CSV is missing required columns: student_id")
	}
	var ids []string
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil || idx >= len(row) {
			continue
		}
		if id := strings.TrimSpace(row[idx]); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
