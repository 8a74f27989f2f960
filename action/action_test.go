package action

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/dialmesh/core"
	"github.com/hupe1980/dialmesh/intent"
)

func itemAction(kind, name string, qty float64, unit string) core.Action {
	return core.Action{Kind: kind, Item: &core.OrderItem{Name: name, Quantity: qty, Unit: unit}}
}

func TestExecutor_SlotFillingToConfirm(t *testing.T) {
	exec := NewExecutor()
	conv := core.NewConversationState("s1")

	res, err := exec.Execute(context.Background(), itemAction(intent.AddItem, "rice", 0, ""), conv)
	require.NoError(t, err)
	assert.Contains(t, res.Response, "How much rice")

	res, err = exec.Execute(context.Background(), itemAction(intent.SlotResponse, "", 2, "kg"), conv)
	require.NoError(t, err)
	assert.Contains(t, res.Response, "2 kg rice")
	assert.Contains(t, res.Response, "is that right")

	res, err = exec.Execute(context.Background(), core.Action{Kind: intent.Confirmed}, conv)
	require.NoError(t, err)
	assert.Contains(t, res.Response, "Added 2 kg rice")
	require.Len(t, conv.Items, 1)
	assert.True(t, conv.Slots.NextMissing() == "name", "slots cleared after commit")
}

func TestExecutor_SlotsNeverOverwritten(t *testing.T) {
	exec := NewExecutor()
	conv := core.NewConversationState("s1")

	_, err := exec.Execute(context.Background(), itemAction(intent.AddItem, "rice", 2, "kg"), conv)
	require.NoError(t, err)

	// A second parse for the still-pending item must not clobber slots.
	_, err = exec.Execute(context.Background(), itemAction(intent.SlotResponse, "oil", 5, "litre"), conv)
	require.NoError(t, err)
	assert.Equal(t, "rice", conv.Slots.Name)
	assert.Equal(t, 2.0, *conv.Slots.Quantity)
	assert.Equal(t, "kg", conv.Slots.Unit)
}

func TestExecutor_AccumulateAndUpdate(t *testing.T) {
	exec := NewExecutor()
	conv := core.NewConversationState("s1")
	conv.Items = []core.OrderItem{{Name: "rice", Quantity: 2, Unit: "kg"}}

	_, err := exec.Execute(context.Background(), itemAction(intent.AddItem, "rice", 3, "kg"), conv)
	require.NoError(t, err)
	_, err = exec.Execute(context.Background(), core.Action{Kind: intent.Confirmed}, conv)
	require.NoError(t, err)
	require.Len(t, conv.Items, 1)
	assert.Equal(t, 5.0, conv.Items[0].Quantity, "same line accumulates")

	_, err = exec.Execute(context.Background(), itemAction(intent.UpdateItem, "rice", 1, "kg"), conv)
	require.NoError(t, err)
	_, err = exec.Execute(context.Background(), core.Action{Kind: intent.Confirmed}, conv)
	require.NoError(t, err)
	require.Len(t, conv.Items, 1)
	assert.Equal(t, 1.0, conv.Items[0].Quantity, "update replaces the quantity")
}

func TestExecutor_RemoveItem(t *testing.T) {
	exec := NewExecutor()
	conv := core.NewConversationState("s1")
	conv.Items = []core.OrderItem{
		{Name: "rice", Quantity: 2, Unit: "kg"},
		{Name: "oil", Quantity: 1, Unit: "litre"},
	}

	res, err := exec.Execute(context.Background(), itemAction(intent.RemoveItem, "rice", 0, ""), conv)
	require.NoError(t, err)
	assert.Contains(t, res.Response, "Removed rice")
	require.Len(t, conv.Items, 1)
	assert.Equal(t, "oil", conv.Items[0].Name)

	res, err = exec.Execute(context.Background(), itemAction(intent.RemoveItem, "sugar", 0, ""), conv)
	require.NoError(t, err)
	assert.Contains(t, res.Response, "don't have sugar")
	assert.Len(t, conv.Items, 1)
}

func TestExecutor_OrderConfirmFlow(t *testing.T) {
	orders := NewInMemoryOrderService()
	exec := NewExecutor(func(o *Options) { o.Orders = orders })
	conv := core.NewConversationState("s1")
	conv.Items = []core.OrderItem{{Name: "rice", Quantity: 2, Unit: "kg"}}

	res, err := exec.Execute(context.Background(), core.Action{Kind: intent.ConfirmOrder}, conv)
	require.NoError(t, err)
	assert.Contains(t, res.Response, "2 kg rice")
	assert.True(t, conv.Slots.IsOrderConfirm())

	res, err = exec.Execute(context.Background(), core.Action{Kind: intent.Confirmed}, conv)
	require.NoError(t, err)
	assert.True(t, res.Done)
	assert.Equal(t, core.OutcomeCompleted, res.Terminal)

	placed, ok := orders.Order("s1")
	require.True(t, ok)
	assert.Len(t, placed, 1)
}

func TestExecutor_DenyPaths(t *testing.T) {
	exec := NewExecutor()

	// Denying the whole-order question reopens editing.
	conv := core.NewConversationState("s1")
	conv.Items = []core.OrderItem{{Name: "rice", Quantity: 2, Unit: "kg"}}
	conv.Slots.Name = core.OrderConfirmMarker
	res, err := exec.Execute(context.Background(), core.Action{Kind: intent.Denied}, conv)
	require.NoError(t, err)
	assert.False(t, res.Done)
	assert.False(t, conv.Slots.IsOrderConfirm())

	// Denying with nothing pending and a non-empty cart starts confirmation.
	res, err = exec.Execute(context.Background(), core.Action{Kind: intent.Denied}, conv)
	require.NoError(t, err)
	assert.True(t, conv.Slots.IsOrderConfirm())

	// Denying with nothing pending and an empty cart ends the call.
	empty := core.NewConversationState("s2")
	res, err = exec.Execute(context.Background(), core.Action{Kind: intent.Denied}, empty)
	require.NoError(t, err)
	assert.True(t, res.Done)
	assert.Equal(t, core.OutcomeDeclined, res.Terminal)
}

func TestExecutor_Exit(t *testing.T) {
	exec := NewExecutor()

	// Empty cart: the call ends as declined.
	conv := core.NewConversationState("s1")
	res, err := exec.Execute(context.Background(), core.Action{Kind: intent.Exit}, conv)
	require.NoError(t, err)
	assert.True(t, res.Done)
	assert.Equal(t, core.OutcomeDeclined, res.Terminal)

	// Non-empty cart: "done" routes into order confirmation.
	conv = core.NewConversationState("s2")
	conv.Items = []core.OrderItem{{Name: "rice", Quantity: 2, Unit: "kg"}}
	res, err = exec.Execute(context.Background(), core.Action{Kind: intent.Exit}, conv)
	require.NoError(t, err)
	assert.False(t, res.Done)
	assert.True(t, conv.Slots.IsOrderConfirm())
}

func TestExecutor_ItemDuringOrderConfirmDropsMarker(t *testing.T) {
	exec := NewExecutor()
	conv := core.NewConversationState("s1")
	conv.Items = []core.OrderItem{{Name: "rice", Quantity: 2, Unit: "kg"}}
	conv.Slots.Name = core.OrderConfirmMarker

	_, err := exec.Execute(context.Background(), itemAction(intent.AddItem, "oil", 1, "litre"), conv)
	require.NoError(t, err)
	assert.False(t, conv.Slots.IsOrderConfirm())
	assert.Equal(t, "oil", conv.Slots.Name)
}
