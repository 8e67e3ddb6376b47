package reports

import (
	"encoding/csv"
	"html/template"
	"io"
	"strconv"
	"strings"
	"time"
)

// WriteCSV serialises the summary to CSV.
func WriteCSV(w io.Writer, summary Summary) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Metric", "Count"}); err != nil {
		return err
	}
	for _, row := range summary.Rows {
		if err := writer.Write([]string{row.Label, strconv.FormatInt(row.Count, 10)}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

var pdfTemplate = template.Must(template.New("report").Parse(`<html>
<head><title>Operations Report</title></head>
<body>
<h1>Operations Report</h1>
<p>Generated at {{.GeneratedAt}}</p>
<table border="1" cellspacing="0" cellpadding="4">
<tr><th>Metric</th><th>Count</th></tr>
{{range .Rows}}<tr><td>{{.Label}}</td><td>{{.Count}}</td></tr>
{{end}}</table>
</body>
</html>`))

// RenderHTML produces the printable document fed to Gotenberg.
func RenderHTML(summary Summary, now time.Time) (string, error) {
	var buf strings.Builder
	err := pdfTemplate.Execute(&buf, struct {
		GeneratedAt string
		Rows        []Row
	}{
		GeneratedAt: now.Format(time.RFC1123),
		Rows:        summary.Rows,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// CSVFilename names the download for the current day.
func CSVFilename(now time.Time) string {
	return "operations-report-" + now.Format("2006-01-02") + ".csv"
}
