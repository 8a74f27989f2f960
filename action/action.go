// Package action executes approved conversation actions against the order
// cart. The executor is the only component that mutates cart contents; the
// conversation machine owns phase transitions and only consumes the
// executor's spoken response and completion signal.
package action

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/dialmesh/core"
	"github.com/hupe1980/dialmesh/intent"
	"github.com/hupe1980/dialmesh/logging"
)

// Result is the outcome of executing one action.
type Result struct {
	// Response is the agent's next utterance.
	Response string
	// Done signals the conversation should close after the response.
	Done bool
	// Terminal is the call outcome when Done is set.
	Terminal core.Outcome
}

// OrderService places a confirmed order with the fulfilment backend.
type OrderService interface {
	PlaceOrder(ctx context.Context, sessionID string, items []core.OrderItem) (string, error)
}

// InMemoryOrderService records placed orders in memory. Used by simulations
// and tests.
type InMemoryOrderService struct {
	mu     sync.Mutex
	orders map[string][]core.OrderItem
	seq    int
}

// NewInMemoryOrderService creates an empty in-memory order service.
func NewInMemoryOrderService() *InMemoryOrderService {
	return &InMemoryOrderService{orders: make(map[string][]core.OrderItem)}
}

// PlaceOrder implements OrderService.
func (s *InMemoryOrderService) PlaceOrder(_ context.Context, sessionID string, items []core.OrderItem) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	ref := fmt.Sprintf("ORD-%04d", s.seq)
	s.orders[sessionID] = append([]core.OrderItem(nil), items...)
	return ref, nil
}

// Order returns the items placed for a session, if any.
func (s *InMemoryOrderService) Order(sessionID string) ([]core.OrderItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, ok := s.orders[sessionID]
	return items, ok
}

// Options configure the executor.
type Options struct {
	Logger logging.Logger
	Orders OrderService
}

// Executor applies actions to conversation state and produces the agent's
// next utterance. It is stateless across sessions; all per-call data lives
// in the conversation state passed to Execute.
type Executor struct {
	opts Options
}

// NewExecutor creates an executor.
func NewExecutor(optFns ...func(o *Options)) *Executor {
	opts := Options{
		Logger: logging.NoOpLogger{},
		Orders: NewInMemoryOrderService(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Executor{opts: opts}
}

// Execute applies one approved action to the conversation. The returned
// result carries the utterance to speak next and whether the call is over.
func (e *Executor) Execute(ctx context.Context, act core.Action, conv *core.ConversationState) (Result, error) {
	switch act.Kind {
	case intent.Greeting:
		return Result{Response: "Hello! I'm calling to take your ration order. What would you like?"}, nil

	case intent.Acknowledgement:
		return Result{Response: e.promptNext(conv)}, nil

	case intent.Confirmed:
		return e.confirm(ctx, conv)

	case intent.Denied:
		return e.deny(conv)

	case intent.ConfirmationUnclear:
		return Result{Response: "Sorry, was that a yes or a no? " + e.pendingQuestion(conv)}, nil

	case intent.SlotResponse, intent.AddItem:
		return e.fillSlots(act, conv, false)

	case intent.UpdateItem:
		return e.fillSlots(act, conv, true)

	case intent.RemoveItem:
		return e.remove(act, conv)

	case intent.ShowCart:
		return Result{Response: "Your cart has: " + conv.CartSummary() + ". " + e.promptNext(conv)}, nil

	case intent.ConfirmOrder:
		return e.beginOrderConfirm(conv)

	case intent.Exit:
		// A caller who is done adding items still has to confirm the
		// order; only an empty cart ends the call outright.
		if len(conv.Items) > 0 {
			return e.beginOrderConfirm(conv)
		}
		return Result{
			Response: "Alright, thank you for your time. Goodbye!",
			Done:     true,
			Terminal: core.OutcomeDeclined,
		}, nil

	default:
		return Result{Response: "Sorry, I didn't catch that. " + e.pendingQuestion(conv)}, nil
	}
}

// confirm resolves a yes answer against whatever question is pending.
func (e *Executor) confirm(ctx context.Context, conv *core.ConversationState) (Result, error) {
	switch {
	case conv.Slots.IsOrderConfirm():
		ref, err := e.opts.Orders.PlaceOrder(ctx, conv.SessionID, conv.Items)
		if err != nil {
			return Result{}, fmt.Errorf("place order: %w", err)
		}
		e.opts.Logger.Info("order placed", "session_id", conv.SessionID, "order_ref", ref, "items", len(conv.Items))
		conv.Slots.Clear()
		return Result{
			Response: fmt.Sprintf("Your order of %s is confirmed, reference %s. Goodbye!", conv.CartSummary(), ref),
			Done:     true,
			Terminal: core.OutcomeCompleted,
		}, nil

	case conv.Slots.Complete():
		item := e.commitPending(conv)
		return Result{Response: fmt.Sprintf("Added %s. Anything else?", item)}, nil

	default:
		return Result{Response: "Great. " + e.promptNext(conv)}, nil
	}
}

// deny resolves a no answer. Denying the whole order reopens editing;
// denying a pending item discards it; denying with nothing pending means
// the caller is finished adding items.
func (e *Executor) deny(conv *core.ConversationState) (Result, error) {
	switch {
	case conv.Slots.IsOrderConfirm():
		conv.Slots.Clear()
		return Result{Response: "Okay. What would you like to change?"}, nil

	case conv.Slots.Name != "" || conv.Slots.Quantity != nil || conv.Slots.Unit != "":
		conv.Slots.Clear()
		return Result{Response: "Okay, cancelled that. Anything else?"}, nil

	default:
		if len(conv.Items) == 0 {
			return Result{
				Response: "No problem, thank you for your time. Goodbye!",
				Done:     true,
				Terminal: core.OutcomeDeclined,
			}, nil
		}
		return e.beginOrderConfirm(conv)
	}
}

// fillSlots merges parsed item fields into the pending slot buffer and asks
// the next question: the first missing slot, or the item confirmation once
// everything is filled.
func (e *Executor) fillSlots(act core.Action, conv *core.ConversationState, update bool) (Result, error) {
	if conv.Slots.IsOrderConfirm() {
		// The caller added an item instead of answering the order
		// question; drop the marker and take the item.
		conv.Slots.Clear()
	}
	if act.Item != nil {
		var qty *float64
		if act.Item.Quantity > 0 {
			q := act.Item.Quantity
			qty = &q
		}
		conv.Slots.Merge(act.Item.Name, qty, act.Item.Unit, false, update)
	} else if update {
		conv.Slots.Update = true
	}

	if conv.Slots.Complete() {
		return Result{Response: fmt.Sprintf("%s, is that right?", conv.Slots.Item())}, nil
	}
	return Result{Response: e.askFor(conv.Slots.NextMissing(), conv)}, nil
}

// remove deletes a cart line by name.
func (e *Executor) remove(act core.Action, conv *core.ConversationState) (Result, error) {
	name := ""
	if act.Item != nil {
		name = act.Item.Name
	}
	if name == "" {
		return Result{Response: "Which item should I remove?"}, nil
	}
	for i, it := range conv.Items {
		if it.Name == name {
			conv.Items = append(conv.Items[:i], conv.Items[i+1:]...)
			return Result{Response: fmt.Sprintf("Removed %s from your cart. %s", name, e.promptNext(conv))}, nil
		}
	}
	return Result{Response: fmt.Sprintf("You don't have %s in your cart. %s", name, e.promptNext(conv))}, nil
}

// beginOrderConfirm reads the cart back and arms the whole-order yes/no.
func (e *Executor) beginOrderConfirm(conv *core.ConversationState) (Result, error) {
	if len(conv.Items) == 0 {
		return Result{Response: "Your cart is empty. What would you like to order?"}, nil
	}
	conv.Slots.Clear()
	conv.Slots.Name = core.OrderConfirmMarker
	return Result{Response: fmt.Sprintf("So that's %s. Shall I place the order?", conv.CartSummary())}, nil
}

// commitPending moves the completed slot buffer into the cart. A line with
// the same name and unit is merged: updates replace the quantity, plain
// additions accumulate it. Returns the spoken form of the committed line.
func (e *Executor) commitPending(conv *core.ConversationState) string {
	item := conv.Slots.Item()
	update := conv.Slots.Update
	conv.Slots.Clear()

	for i, existing := range conv.Items {
		if existing.Name == item.Name && existing.Unit == item.Unit {
			if update {
				conv.Items[i].Quantity = item.Quantity
			} else {
				conv.Items[i].Quantity += item.Quantity
			}
			return conv.Items[i].String()
		}
	}
	conv.Items = append(conv.Items, item)
	return item.String()
}

// pendingQuestion re-states the question the conversation is waiting on.
func (e *Executor) pendingQuestion(conv *core.ConversationState) string {
	switch {
	case conv.Slots.IsOrderConfirm():
		return fmt.Sprintf("So that's %s. Shall I place the order?", conv.CartSummary())
	case conv.Slots.Complete():
		return fmt.Sprintf("%s, is that right?", conv.Slots.Item())
	case conv.Slots.NextMissing() != "":
		return e.askFor(conv.Slots.NextMissing(), conv)
	default:
		return "What would you like to order?"
	}
}

// promptNext asks the question that moves the conversation forward.
func (e *Executor) promptNext(conv *core.ConversationState) string {
	if q := conv.Slots.NextMissing(); q != "" && !conv.Slots.IsOrderConfirm() {
		if conv.Slots.Name != "" || conv.Slots.Quantity != nil || conv.Slots.Unit != "" {
			return e.askFor(q, conv)
		}
	}
	if len(conv.Items) > 0 {
		return "Anything else?"
	}
	return "What would you like to order?"
}

// askFor phrases the question for one missing slot.
func (e *Executor) askFor(slot string, conv *core.ConversationState) string {
	switch slot {
	case "name":
		return "Which item would you like?"
	case "quantity":
		if conv.Slots.Name != "" {
			return fmt.Sprintf("How much %s would you like?", conv.Slots.Name)
		}
		return "How much would you like?"
	case "unit":
		subject := strings.TrimSpace(conv.Slots.Name)
		if subject == "" {
			subject = "that"
		}
		return fmt.Sprintf("In what unit, for example kg or litre of %s?", subject)
	default:
		return "What would you like to order?"
	}
}
