package reports_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aegis-portal/aegis-portal/internal/reports"
	_ "github.com/aegis-portal/aegis-portal/testing"
)

type stubRepo struct {
	requestsByStatus   map[string]int64
	requestsByCategory map[string]int64
	checksByStatus     map[string]int64
	err                error
}

func (r *stubRepo) CountRequestsByStatus(ctx context.Context) (map[string]int64, error) {
	return r.requestsByStatus, r.err
}

func (r *stubRepo) CountRequestsByCategory(ctx context.Context) (map[string]int64, error) {
	return r.requestsByCategory, r.err
}

func (r *stubRepo) CountChecksByStatus(ctx context.Context) (map[string]int64, error) {
	return r.checksByStatus, r.err
}

func TestBuildSummaryFixedRowOrder(t *testing.T) {
	repo := &stubRepo{
		requestsByStatus:   map[string]int64{"open": 3, "closed": 1},
		requestsByCategory: map[string]int64{"maintenance": 4},
		checksByStatus:     map[string]int64{"pending": 2, "flagged": 1},
	}
	service := reports.NewService(repo)

	summary, err := service.BuildSummary(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Rows, 11)

	require.Equal(t, reports.Row{Label: "Requests open", Count: 3}, summary.Rows[0])
	require.Equal(t, reports.Row{Label: "Requests in_progress", Count: 0}, summary.Rows[1])
	require.Equal(t, reports.Row{Label: "Requests maintenance", Count: 4}, summary.Rows[5])
	require.Equal(t, reports.Row{Label: "Checks pending", Count: 2}, summary.Rows[7])
	require.Equal(t, reports.Row{Label: "Checks expired", Count: 0}, summary.Rows[10])
}

func TestBuildSummaryPropagatesError(t *testing.T) {
	repo := &stubRepo{err: errors.New("db down")}
	service := reports.NewService(repo)

	_, err := service.BuildSummary(context.Background())
	require.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	summary := reports.Summary{Rows: []reports.Row{{Label: "Requests open", Count: 3}}}

	var buf bytes.Buffer
	require.NoError(t, reports.WriteCSV(&buf, summary))
	require.Contains(t, buf.String(), "Metric,Count")
	require.Contains(t, buf.String(), "Requests open,3")
}

func TestRenderHTMLContainsRows(t *testing.T) {
	summary := reports.Summary{Rows: []reports.Row{{Label: "Checks pending", Count: 2}}}

	html, err := reports.RenderHTML(summary, time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Contains(t, html, "Checks pending")
	require.Contains(t, html, "<td>2</td>")
	require.Contains(t, html, "Operations Report")
}
