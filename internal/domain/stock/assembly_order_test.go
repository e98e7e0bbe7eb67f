package stock

import (
	"testing"

	"github.com/paklog/inventory-service/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAssemblyOrder(t *testing.T) *AssemblyOrder {
	t.Helper()
	ao, err := NewAssemblyOrder("KIT-1", 10, []AssemblyComponent{
		{Sku: "PART-A", RequiredQuantity: 20},
		{Sku: "PART-B", RequiredQuantity: 10},
	}, "planner")
	require.NoError(t, err)
	return ao
}

func TestNewAssemblyOrder(t *testing.T) {
	t.Run("starts created", func(t *testing.T) {
		ao := testAssemblyOrder(t)
		assert.Equal(t, AssemblyStatusCreated, ao.Status)
	})

	t.Run("requires components", func(t *testing.T) {
		_, err := NewAssemblyOrder("KIT-1", 10, nil, "planner")
		require.Error(t, err)
	})

	t.Run("rejects component without quantity", func(t *testing.T) {
		_, err := NewAssemblyOrder("KIT-1", 10, []AssemblyComponent{{Sku: "PART-A"}}, "planner")
		require.Error(t, err)
	})
}

func TestAssemblyOrder_RecordAllocations(t *testing.T) {
	t.Run("books the batch under one version bump", func(t *testing.T) {
		ao := testAssemblyOrder(t)
		before := ao.Version

		require.NoError(t, ao.RecordAllocations([]ComponentAllocation{
			{Sku: "PART-A", Quantity: 20},
			{Sku: "PART-B", Quantity: 10},
		}))

		assert.Equal(t, before+1, ao.Version)
		assert.Equal(t, int64(20), ao.Components[0].AllocatedQuantity)
		assert.Equal(t, int64(10), ao.Components[1].AllocatedQuantity)
	})

	t.Run("rejects allocation for foreign sku", func(t *testing.T) {
		ao := testAssemblyOrder(t)
		err := ao.RecordAllocations([]ComponentAllocation{
			{Sku: "PART-A", Quantity: 20},
			{Sku: "PART-Z", Quantity: 5},
		})
		require.Error(t, err)
		assert.True(t, shared.IsCode(err, shared.CodeNotFound))
		// The whole batch is rejected, PART-A included.
		assert.Equal(t, int64(0), ao.Components[0].AllocatedQuantity)
	})

	t.Run("empty batch leaves the order untouched", func(t *testing.T) {
		ao := testAssemblyOrder(t)
		before := ao.Version
		require.NoError(t, ao.RecordAllocations(nil))
		assert.Equal(t, before, ao.Version)
	})
}

func TestAssemblyOrder_Start(t *testing.T) {
	t.Run("requires every component allocated", func(t *testing.T) {
		ao := testAssemblyOrder(t)
		require.NoError(t, ao.RecordAllocations([]ComponentAllocation{{Sku: "PART-A", Quantity: 20}}))

		err := ao.Start()

		require.Error(t, err)
		assert.True(t, shared.IsCode(err, shared.CodeInsufficientStock))

		require.NoError(t, ao.RecordAllocations([]ComponentAllocation{{Sku: "PART-B", Quantity: 10}}))
		require.NoError(t, ao.Start())
		assert.Equal(t, AssemblyStatusInProgress, ao.Status)
	})
}

func TestAssemblyOrder_Complete(t *testing.T) {
	startedOrder := func(t *testing.T) *AssemblyOrder {
		ao := testAssemblyOrder(t)
		require.NoError(t, ao.RecordAllocations([]ComponentAllocation{
			{Sku: "PART-A", Quantity: 20},
			{Sku: "PART-B", Quantity: 10},
		}))
		require.NoError(t, ao.Start())
		return ao
	}

	t.Run("records actual built quantity", func(t *testing.T) {
		ao := startedOrder(t)

		require.NoError(t, ao.Complete(9))

		assert.Equal(t, AssemblyStatusCompleted, ao.Status)
		assert.Equal(t, int64(9), ao.ActualQuantity)
	})

	t.Run("actual cannot exceed planned", func(t *testing.T) {
		ao := startedOrder(t)
		err := ao.Complete(11)
		require.Error(t, err)
		assert.True(t, shared.IsCode(err, shared.CodeInvalidQuantity))
	})

	t.Run("cannot complete before start", func(t *testing.T) {
		ao := testAssemblyOrder(t)
		require.Error(t, ao.Complete(10))
	})
}

func TestAssemblyOrder_Cancel(t *testing.T) {
	t.Run("allowed from created and in progress", func(t *testing.T) {
		ao := testAssemblyOrder(t)
		require.NoError(t, ao.Cancel())
		assert.Equal(t, AssemblyStatusCancelled, ao.Status)
	})

	t.Run("rejected after completion", func(t *testing.T) {
		ao := testAssemblyOrder(t)
		require.NoError(t, ao.RecordAllocations([]ComponentAllocation{
			{Sku: "PART-A", Quantity: 20},
			{Sku: "PART-B", Quantity: 10},
		}))
		require.NoError(t, ao.Start())
		require.NoError(t, ao.Complete(10))

		require.Error(t, ao.Cancel())
	})
}
