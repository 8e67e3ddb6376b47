package shared_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aegis-portal/aegis-portal/internal/shared"
	_ "github.com/aegis-portal/aegis-portal/testing"
)

func TestNewPaginationDefaults(t *testing.T) {
	pg := shared.NewPagination(0, 0, 45)
	require.Equal(t, 1, pg.Page)
	require.Equal(t, 20, pg.PerPage)
	require.Equal(t, 3, pg.TotalPages)
}

func TestNewPaginationEmptyTotal(t *testing.T) {
	pg := shared.NewPagination(1, 20, 0)
	require.Equal(t, 0, pg.TotalPages)
}

func TestNewPaginationExactBoundary(t *testing.T) {
	pg := shared.NewPagination(2, 10, 20)
	require.Equal(t, 2, pg.Page)
	require.Equal(t, 2, pg.TotalPages)
}
