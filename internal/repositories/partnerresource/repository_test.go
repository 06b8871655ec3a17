package partnerresource

import (
	"context"
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsEntityID(t *testing.T) {
	assert.True(t, IsEntityID("6f1c2a4e-1b7d-4c53-9a8e-2d1f0b3c4a5e"))
	assert.False(t, IsEntityID("not-a-uuid"))
	assert.False(t, IsEntityID(""))
}

// Malformed ids are answered before any query reaches the UUID column.
func TestRepository_MalformedEntityID(t *testing.T) {
	repo := NewRepository(nil, ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
	ctx := context.Background()

	got, err := repo.Get(ctx, "not-a-uuid")
	require.NoError(t, err)
	assert.Nil(t, got)

	err = repo.Deactivate(ctx, "not-a-uuid")
	require.Error(t, err)
	assert.True(t, httperror.IsNotFound(err))
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))

	deleted, err := repo.Delete(ctx, "not-a-uuid")
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
