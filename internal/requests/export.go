package requests

import (
	"encoding/csv"
	"io"
	"time"
)

// WriteCSV serialises requests to CSV, newest first as listed.
func WriteCSV(w io.Writer, requests []ServiceRequest) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Number", "Requester", "Category", "Description", "Status", "Created At"}); err != nil {
		return err
	}
	for _, req := range requests {
		if err := writer.Write([]string{
			req.Number,
			req.RequesterName,
			req.Category,
			req.Description,
			string(req.Status),
			req.CreatedAt.Format(time.RFC3339),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// CSVFilename names the download for the current day.
func CSVFilename(now time.Time) string {
	return "service-requests-" + now.Format("2006-01-02") + ".csv"
}
