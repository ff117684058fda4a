package datasource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sievedata/sieve-engine/pkg/apperrors"
)

func TestOpen_UnknownTypeFails(t *testing.T) {
	_, err := Open(context.Background(), Config{Type: "oracle"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedDatabase)
}

func TestRegisterAndOpen(t *testing.T) {
	called := false
	Register(Registration{
		Type:        "fake-for-test",
		DisplayName: "Fake",
		Factory: func(ctx context.Context, cfg Config, _ *zap.Logger) (Handle, error) {
			called = true
			return nil, nil
		},
	})

	_, err := Open(context.Background(), Config{Type: "fake-for-test"}, nil)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Contains(t, SupportedTypes(), "fake-for-test")
}
