package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	runConformance(t, func(t *testing.T, opts ...Option) Store {
		return NewMemoryStore(opts...)
	})
}

func TestMemoryStore_ListAllReturnsACopy(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Append(ctx, "ana", "hola")
	req.NoError(err)

	messages, err := s.ListAll(ctx)
	req.NoError(err)
	messages[0].Body = "edited"

	again, err := s.ListAll(ctx)
	req.NoError(err)
	req.Equal("hola", again[0].Body)
}
