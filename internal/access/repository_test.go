package access_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aegis-portal/aegis-portal/internal/access"
	_ "github.com/aegis-portal/aegis-portal/testing"
)

func TestNewPGRepositorySatisfiesRepository(t *testing.T) {
	var repo access.Repository = access.NewPGRepository(nil)
	require.NotNil(t, repo)
}
