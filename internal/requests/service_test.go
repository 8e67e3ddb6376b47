package requests_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aegis-portal/aegis-portal/internal/requests"
	"github.com/aegis-portal/aegis-portal/internal/shared"
	_ "github.com/aegis-portal/aegis-portal/testing"
)

type memoryRepo struct {
	items  map[int64]*requests.ServiceRequest
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: make(map[int64]*requests.ServiceRequest)}
}

func (r *memoryRepo) List(ctx context.Context) ([]requests.ServiceRequest, error) {
	var out []requests.ServiceRequest
	for _, req := range r.items {
		out = append(out, *req)
	}
	return out, nil
}

func (r *memoryRepo) Find(ctx context.Context, id int64) (*requests.ServiceRequest, error) {
	req, ok := r.items[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return req, nil
}

func (r *memoryRepo) Create(ctx context.Context, req requests.ServiceRequest) (int64, error) {
	r.nextID++
	req.ID = r.nextID
	r.items[req.ID] = &req
	return req.ID, nil
}

func (r *memoryRepo) UpdateStatus(ctx context.Context, id int64, status requests.RequestStatus) error {
	req, ok := r.items[id]
	if !ok {
		return shared.ErrNotFound
	}
	req.Status = status
	return nil
}

func TestCreateOpensRequestWithNumber(t *testing.T) {
	repo := newMemoryRepo()
	service := requests.NewService(repo, nil, nil)

	id, err := service.Create(context.Background(), 7, requests.CreateInput{RequesterName: "Udin Saputra", Category: "maintenance"})
	require.NoError(t, err)

	req := repo.items[id]
	require.Equal(t, requests.StatusOpen, req.Status)
	require.Equal(t, int64(7), req.CreatedBy)
	require.True(t, strings.HasPrefix(req.Number, "SR-"), "number %q", req.Number)
}

func TestCreateGeneratesDistinctNumbers(t *testing.T) {
	repo := newMemoryRepo()
	service := requests.NewService(repo, nil, nil)

	first, err := service.Create(context.Background(), 7, requests.CreateInput{RequesterName: "Udin Saputra", Category: "installation"})
	require.NoError(t, err)
	second, err := service.Create(context.Background(), 7, requests.CreateInput{RequesterName: "Siti Rahma", Category: "installation"})
	require.NoError(t, err)
	require.NotEqual(t, repo.items[first].Number, repo.items[second].Number)
}

func TestUpdateStatusMovesLifecycle(t *testing.T) {
	repo := newMemoryRepo()
	service := requests.NewService(repo, nil, nil)

	id, err := service.Create(context.Background(), 7, requests.CreateInput{RequesterName: "Udin Saputra", Category: "complaint"})
	require.NoError(t, err)

	require.NoError(t, service.UpdateStatus(context.Background(), 1, id, requests.StatusInProgress))
	require.Equal(t, requests.StatusInProgress, repo.items[id].Status)
}

func TestUpdateStatusRejectsFinalizedRequest(t *testing.T) {
	repo := newMemoryRepo()
	service := requests.NewService(repo, nil, nil)

	id, err := service.Create(context.Background(), 7, requests.CreateInput{RequesterName: "Udin Saputra", Category: "complaint"})
	require.NoError(t, err)
	require.NoError(t, service.UpdateStatus(context.Background(), 1, id, requests.StatusClosed))

	err = service.UpdateStatus(context.Background(), 1, id, requests.StatusOpen)
	require.ErrorIs(t, err, requests.ErrRequestFinalized)
	require.Equal(t, requests.StatusClosed, repo.items[id].Status)
}

func TestUpdateStatusUnknownRequest(t *testing.T) {
	service := requests.NewService(newMemoryRepo(), nil, nil)
	err := service.UpdateStatus(context.Background(), 1, 42, requests.StatusClosed)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestWriteCSVIncludesHeaderAndRows(t *testing.T) {
	repo := newMemoryRepo()
	service := requests.NewService(repo, nil, nil)
	_, err := service.Create(context.Background(), 7, requests.CreateInput{RequesterName: "Udin Saputra", Category: "maintenance", Description: "AC unit leaking"})
	require.NoError(t, err)

	items, err := service.List(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, requests.WriteCSV(&buf, items))

	out := buf.String()
	require.Contains(t, out, "Number,Requester,Category,Description,Status,Created At")
	require.Contains(t, out, "Udin Saputra")
	require.Contains(t, out, "AC unit leaking")
}
