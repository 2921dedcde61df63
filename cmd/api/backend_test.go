package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/memory"
)

func TestMemoryBackend(t *testing.T) {
	b := memoryBackend(memory.NewStore())
	ctx := context.Background()

	require.NoError(t, b.ping(ctx))
	err := b.tx.Run(ctx, func(ctx context.Context, uow inventory.UnitOfWork) error {
		m, err := uow.Movements().GetByID(ctx, "no-existe")
		assert.Nil(t, m)
		return err
	})
	require.NoError(t, err)
}
