package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_AwaitingConfirm(t *testing.T) {
	c := Context{AwaitingConfirm: true}
	assert.Equal(t, Confirmed, Classify("yes please", c).Intent)
	assert.Equal(t, Confirmed, Classify("haan bilkul", c).Intent)
	assert.Equal(t, Denied, Classify("no wait", c).Intent)
	assert.Equal(t, ConfirmationUnclear, Classify("the weather is nice", c).Intent)
}

func TestClassify_SlotFilling(t *testing.T) {
	c := Context{SlotFilling: true}
	assert.Equal(t, SlotResponse, Classify("2 kilos", c).Intent)
	assert.Equal(t, Denied, Classify("no cancel that", c).Intent)
	assert.Equal(t, Exit, Classify("bye", c).Intent)
	assert.Equal(t, Exit, Classify("thats all thanks", c).Intent)
}

func TestClassify_Idle(t *testing.T) {
	var c Context
	tests := []struct {
		in   string
		want string
	}{
		{"bye now", Exit},
		{"show my cart", ShowCart},
		{"please place the order", ConfirmOrder},
		{"hello there", Greeting},
		{"okay thanks", Acknowledgement},
		{"no thanks", Denied},
		{"remove the rice", RemoveItem},
		{"change sugar to 2 kg", UpdateItem},
		{"5 kg rice", AddItem},
		{"some rice", AddItem},
		{"two packets", AddItem},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.in, c).Intent, "input %q", tt.in)
	}
}

func TestClassify_AmbiguousFlagsModelFallback(t *testing.T) {
	res := Classify("my cousin visited yesterday", Context{})
	assert.Equal(t, Clarify, res.Intent)
	assert.True(t, res.Ambiguous, "no rule matched, backend may be consulted")

	// Acknowledgements never reach the model.
	res = Classify("okay great", Context{})
	assert.Equal(t, Acknowledgement, res.Intent)
	assert.False(t, res.Ambiguous)
}
