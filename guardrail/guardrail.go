// Package guardrail applies validation and safety checks to candidate
// actions before the executor may run them. A rejection never executes; the
// conversation machine routes it to a scripted clarification turn, and
// repeated rejections force an escalation to a human.
package guardrail

import (
	"fmt"

	"github.com/hupe1980/dialmesh/core"
	"github.com/hupe1980/dialmesh/intent"
)

// Verdict is the result of validating one candidate action.
type Verdict struct {
	Approved bool
	Reason   string
}

// Approve is the passing verdict.
func Approve() Verdict { return Verdict{Approved: true} }

// Reject constructs a failing verdict with a caller-speakable reason.
func Reject(format string, args ...any) Verdict {
	return Verdict{Reason: fmt.Sprintf(format, args...)}
}

// Context carries the conversation snapshot a validator may inspect.
type Context struct {
	Conversation *core.ConversationState
}

// Validator checks a candidate action against campaign policy.
type Validator interface {
	Validate(action core.Action, ctx Context) Verdict
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(action core.Action, ctx Context) Verdict

// Validate implements Validator.
func (f ValidatorFunc) Validate(action core.Action, ctx Context) Verdict { return f(action, ctx) }

// AllowAll approves every action. Useful for tests and permissive campaigns.
var AllowAll = ValidatorFunc(func(core.Action, Context) Verdict { return Approve() })

// CatalogOptions configure the catalog validator.
type CatalogOptions struct {
	// MaxCartItems bounds distinct cart lines per call.
	MaxCartItems int
	// MaxItemQuantity bounds a single line's quantity.
	MaxItemQuantity float64
	// AllowOffCatalog admits item names outside the known catalog.
	AllowOffCatalog bool
}

// CatalogValidator enforces cart size, quantity bounds and catalog
// membership for item-level actions. Control actions (show cart, confirm,
// exit) always pass.
type CatalogValidator struct {
	opts CatalogOptions
}

// NewCatalogValidator constructs the validator with production caps.
func NewCatalogValidator(optFns ...func(o *CatalogOptions)) *CatalogValidator {
	opts := CatalogOptions{
		MaxCartItems:    intent.MaxCartItems,
		MaxItemQuantity: intent.MaxItemQuantity,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &CatalogValidator{opts: opts}
}

// Validate implements Validator.
func (v *CatalogValidator) Validate(action core.Action, ctx Context) Verdict {
	switch action.Kind {
	case intent.AddItem, intent.UpdateItem:
	default:
		return Approve()
	}

	item := action.Item
	if item == nil {
		return Approve() // nothing concrete to check yet; slots still filling
	}

	if item.Quantity < 0 || item.Quantity > v.opts.MaxItemQuantity {
		return Reject("I can't order %g %s of %s, that quantity is out of range", item.Quantity, item.Unit, item.Name)
	}
	if item.Name != "" && !v.opts.AllowOffCatalog && !intent.KnownItems.Has(item.Name) {
		return Reject("I don't have %s in the catalog", item.Name)
	}
	if action.Kind == intent.AddItem && ctx.Conversation != nil && len(ctx.Conversation.Items) >= v.opts.MaxCartItems {
		return Reject("the cart is full, please confirm the order first")
	}
	return Approve()
}
