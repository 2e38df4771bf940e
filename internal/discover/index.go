package discover

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// readSessionsIndex implements Indexed mode: read a CSV sessions file
// and sanitize SubjectCode/ScanID into canonical identifiers. No row
// is ever dropped — an absent dicom_path becomes the empty string,
// which later fails Rule 1 rather than being silently excluded here.
func readSessionsIndex(path string) ([]rawKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("discover: opening sessions index %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("discover: reading sessions index header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	subjectIdx, ok := col["SubjectCode"]
	if !ok {
		return nil, fmt.Errorf("discover: sessions index missing required column SubjectCode")
	}
	scanIdx, ok := col["ScanID"]
	if !ok {
		return nil, fmt.Errorf("discover: sessions index missing required column ScanID")
	}
	dicomIdx, hasDicom := col["dicom_path"]

	var keys []rawKey
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("discover: reading sessions index %s: %w", path, err)
		}
		dicomPath := ""
		if hasDicom && dicomIdx < len(record) {
			dicomPath = record[dicomIdx]
		}
		keys = append(keys, rawKey{
			Subject:   sanitizeSubjectCode(valueAt(record, subjectIdx)),
			Session:   sanitizeScanID(valueAt(record, scanIdx)),
			DicomPath: dicomPath,
		})
	}
	return keys, nil
}

func valueAt(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return record[idx]
}
