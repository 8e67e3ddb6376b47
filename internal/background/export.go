package background

import (
	"encoding/csv"
	"io"
	"time"
)

// WriteCSV serialises checks to CSV.
func WriteCSV(w io.Writer, checks []BackgroundCheck) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Subject", "Document", "Status", "Created At", "Updated At"}); err != nil {
		return err
	}
	for _, check := range checks {
		if err := writer.Write([]string{
			check.SubjectName,
			check.DocumentNo,
			string(check.Status),
			check.CreatedAt.Format(time.RFC3339),
			check.UpdatedAt.Format(time.RFC3339),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// CSVFilename names the download for the current day.
func CSVFilename(now time.Time) string {
	return "background-checks-" + now.Format("2006-01-02") + ".csv"
}
