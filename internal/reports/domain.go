// Package reports aggregates operational counts over service requests and
// background checks for the reporting page and its exports.
package reports

// Row is one metric on the summary report.
type Row struct {
	Label string
	Count int64
}

// Summary is the full report, row order is presentation order.
type Summary struct {
	Rows []Row
}
