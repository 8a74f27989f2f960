package guardrail

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/dialmesh/core"
	"github.com/hupe1980/dialmesh/intent"
)

// Interface compliance (compile-time assertion)
var (
	_ Validator = (*CatalogValidator)(nil)
	_ Validator = ValidatorFunc(nil)
)

func addAction(name string, qty float64, unit string) core.Action {
	return core.Action{
		Kind: intent.AddItem,
		Item: &core.OrderItem{Name: name, Quantity: qty, Unit: unit},
	}
}

func TestCatalogValidator_Approvals(t *testing.T) {
	v := NewCatalogValidator()
	conv := core.NewConversationState("s1")

	assert.True(t, v.Validate(addAction("rice", 5, "kg"), Context{Conversation: conv}).Approved)
	assert.True(t, v.Validate(core.Action{Kind: intent.ShowCart}, Context{}).Approved, "control actions always pass")
	assert.True(t, v.Validate(core.Action{Kind: intent.AddItem}, Context{}).Approved, "incomplete slots pass through")
}

func TestCatalogValidator_Rejections(t *testing.T) {
	v := NewCatalogValidator()
	conv := core.NewConversationState("s1")

	verdict := v.Validate(addAction("rice", 50000, "kg"), Context{Conversation: conv})
	assert.False(t, verdict.Approved)
	assert.Contains(t, verdict.Reason, "out of range")

	verdict = v.Validate(addAction("plutonium", 1, "kg"), Context{Conversation: conv})
	assert.False(t, verdict.Approved)
	assert.Contains(t, verdict.Reason, "catalog")

	full := core.NewConversationState("s2")
	for i := 0; i < intent.MaxCartItems; i++ {
		full.Items = append(full.Items, core.OrderItem{Name: "rice", Quantity: 1, Unit: "kg"})
	}
	verdict = v.Validate(addAction("dal", 1, "kg"), Context{Conversation: full})
	assert.False(t, verdict.Approved)
}

func TestCatalogValidator_AllowOffCatalog(t *testing.T) {
	v := NewCatalogValidator(func(o *CatalogOptions) { o.AllowOffCatalog = true })
	assert.True(t, v.Validate(addAction("quinoa", 2, "kg"), Context{}).Approved)
}
