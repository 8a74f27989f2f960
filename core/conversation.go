package core

import "fmt"

// OrderItem is one line of the order cart accumulated during a call.
type OrderItem struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
}

// String renders the item the way it is spoken back to the caller.
func (i OrderItem) String() string {
	return fmt.Sprintf("%g %s %s", i.Quantity, i.Unit, i.Name)
}

// OrderConfirmMarker is the slot-buffer name signalling that the pending
// yes/no question confirms the whole order, not a single item.
const OrderConfirmMarker = "__ORDER_CONFIRM__"

// SlotBuffer holds partial item data while slots are being filled. It is
// cleared immediately after confirmation or cancellation. Merge only fills
// slots that are currently empty; it never overwrites.
type SlotBuffer struct {
	Name       string   `json:"name,omitempty"`
	Quantity   *float64 `json:"quantity,omitempty"`
	Unit       string   `json:"unit,omitempty"`
	Accumulate bool     `json:"accumulate,omitempty"`
	Update     bool     `json:"update,omitempty"`
}

// Complete reports whether all three slots are filled.
func (b *SlotBuffer) Complete() bool {
	return b.Name != "" && b.Quantity != nil && b.Unit != ""
}

// Missing returns the names of unfilled slots in fixed order.
func (b *SlotBuffer) Missing() []string {
	var missing []string
	if b.Name == "" {
		missing = append(missing, "name")
	}
	if b.Quantity == nil {
		missing = append(missing, "quantity")
	}
	if b.Unit == "" {
		missing = append(missing, "unit")
	}
	return missing
}

// NextMissing returns the first unfilled slot name, or "".
func (b *SlotBuffer) NextMissing() string {
	m := b.Missing()
	if len(m) == 0 {
		return ""
	}
	return m[0]
}

// IsOrderConfirm reports whether the buffer awaits a whole-order yes/no.
func (b *SlotBuffer) IsOrderConfirm() bool { return b.Name == OrderConfirmMarker }

// Merge fills empty slots from a parse result. Filled slots are never
// overwritten; the accumulate/update flags are sticky.
func (b *SlotBuffer) Merge(name string, quantity *float64, unit string, accumulate, update bool) {
	if name != "" && b.Name == "" {
		b.Name = name
	}
	if quantity != nil && b.Quantity == nil {
		q := *quantity
		b.Quantity = &q
	}
	if unit != "" && b.Unit == "" {
		b.Unit = unit
	}
	b.Accumulate = b.Accumulate || accumulate
	b.Update = b.Update || update
}

// Item materializes the buffer as an order item. Only valid when Complete.
func (b *SlotBuffer) Item() OrderItem {
	var q float64
	if b.Quantity != nil {
		q = *b.Quantity
	}
	return OrderItem{Name: b.Name, Quantity: q, Unit: b.Unit}
}

// Clear resets all slots and flags.
func (b *SlotBuffer) Clear() { *b = SlotBuffer{} }

// ConversationState is the accumulated dialogue data for one call session.
// It is owned exclusively by that session's conversation machine and never
// shared across sessions. Slot state is only mutated by the currently
// active turn, so no locking is required.
type ConversationState struct {
	SessionID string     `json:"session_id"`
	Node      string     `json:"node"`
	Slots     SlotBuffer `json:"slots"`
	Items     []OrderItem `json:"items"`

	// TurnCount counts caller/agent exchanges toward the per-call cap.
	TurnCount int `json:"turn_count"`

	// ModelCalls counts decision-backend invocations toward the per-call cap.
	ModelCalls int `json:"model_calls"`
}

// NewConversationState creates an empty conversation for a session.
func NewConversationState(sessionID string) *ConversationState {
	return &ConversationState{SessionID: sessionID}
}

// SlotView exposes the conversation to decision backends as a flat map, the
// shape provider prompts are built from.
func (c *ConversationState) SlotView() map[string]any {
	items := make([]string, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, it.String())
	}
	view := map[string]any{
		"node":       c.Node,
		"items":      items,
		"turn_count": c.TurnCount,
	}
	if c.Slots.Name != "" {
		view["pending_item"] = c.Slots.Name
	}
	if c.Slots.Quantity != nil {
		view["pending_quantity"] = *c.Slots.Quantity
	}
	if c.Slots.Unit != "" {
		view["pending_unit"] = c.Slots.Unit
	}
	return view
}

// CartSummary renders the cart for prompts ("2 kg rice, 1 litre oil") or
// "empty".
func (c *ConversationState) CartSummary() string {
	if len(c.Items) == 0 {
		return "empty"
	}
	out := ""
	for i, it := range c.Items {
		if i > 0 {
			out += ", "
		}
		out += it.String()
	}
	return out
}
