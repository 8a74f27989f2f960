package core

// Action is a candidate effect decided from an utterance: a cart mutation,
// an order submission or a dialogue control move. Actions pass through
// guardrail validation before the executor may run them.
type Action struct {
	// Kind names the action using the intent vocabulary (add_item,
	// update_item, remove_item, show_cart, confirm_order, exit, ...).
	Kind string `json:"kind"`

	// Item carries the cart line for item-level actions.
	Item *OrderItem `json:"item,omitempty"`

	// Utterance is the raw caller text the action was decided from.
	Utterance string `json:"utterance,omitempty"`
}
