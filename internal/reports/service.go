package reports

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Service builds the summary report.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Row order is fixed so exports stay diffable between runs.
var (
	requestStatuses   = []string{"open", "in_progress", "closed", "rejected"}
	requestCategories = []string{"installation", "maintenance", "complaint"}
	checkStatuses     = []string{"pending", "clear", "flagged", "expired"}
)

// BuildSummary runs the three aggregates concurrently and flattens them into
// the fixed row order. Missing groups report zero.
func (s *Service) BuildSummary(ctx context.Context) (Summary, error) {
	var byStatus, byCategory, checksByStatus map[string]int64

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		byStatus, err = s.repo.CountRequestsByStatus(ctx)
		return err
	})
	group.Go(func() error {
		var err error
		byCategory, err = s.repo.CountRequestsByCategory(ctx)
		return err
	})
	group.Go(func() error {
		var err error
		checksByStatus, err = s.repo.CountChecksByStatus(ctx)
		return err
	})
	if err := group.Wait(); err != nil {
		return Summary{}, err
	}

	var rows []Row
	for _, status := range requestStatuses {
		rows = append(rows, Row{Label: "Requests " + status, Count: byStatus[status]})
	}
	for _, category := range requestCategories {
		rows = append(rows, Row{Label: "Requests " + category, Count: byCategory[category]})
	}
	for _, status := range checkStatuses {
		rows = append(rows, Row{Label: "Checks " + status, Count: checksByStatus[status]})
	}
	return Summary{Rows: rows}, nil
}
