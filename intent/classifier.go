package intent

import "strings"

// Intent names produced by the classifier and consumed by the action
// executor and the dialogue graph edges.
const (
	Confirmed          = "user_confirmed"
	Denied             = "user_denied"
	ConfirmationUnclear = "confirmation_unclear"
	SlotResponse       = "slot_response"
	AddItem            = "add_item"
	UpdateItem         = "update_item"
	RemoveItem         = "remove_item"
	ShowCart           = "show_cart"
	ConfirmOrder       = "confirm_order"
	Greeting           = "greeting"
	Acknowledgement    = "acknowledgement"
	Exit               = "exit"
	Clarify            = "clarify"
	Unknown            = "unknown"
)

// Context tells the classifier which dialogue situation the utterance
// answers. The same words mean different things while awaiting a yes/no than
// while collecting item slots.
type Context struct {
	// AwaitingConfirm is set while a yes/no question is pending.
	AwaitingConfirm bool
	// SlotFilling is set while item slots are being collected.
	SlotFilling bool
}

// Result is a classified utterance.
type Result struct {
	Intent string
	Text   string

	// Ambiguous marks utterances no deterministic rule matched; the caller
	// may escalate these to the decision backend.
	Ambiguous bool
}

// Classify maps an utterance to an intent using deterministic keyword rules.
// It is phase-aware and never calls a model; genuinely ambiguous idle-phase
// utterances come back with Ambiguous set so the dialog machine can consult
// the decision backend within its model-call budget.
func Classify(utterance string, c Context) Result {
	text := strings.ToLower(strings.TrimSpace(utterance))
	tokens := strings.Fields(normalize(text))

	if c.AwaitingConfirm {
		switch {
		case affirmWords.intersects(tokens):
			return Result{Intent: Confirmed, Text: text}
		case denyWords.intersects(tokens):
			return Result{Intent: Denied, Text: text}
		default:
			return Result{Intent: ConfirmationUnclear, Text: text}
		}
	}

	if c.SlotFilling {
		switch {
		case exitWords.intersects(tokens) || containsPhrase(text, "thats all", "that's all", "nothing else"):
			return Result{Intent: Exit, Text: text}
		case denyWords.intersects(tokens):
			return Result{Intent: Denied, Text: text}
		default:
			return Result{Intent: SlotResponse, Text: text}
		}
	}

	// Idle phase.
	switch {
	case exitWords.intersects(tokens) || containsPhrase(text, "thats all", "that's all", "nothing else"):
		return Result{Intent: Exit, Text: text}
	case showCartWords.intersects(tokens):
		return Result{Intent: ShowCart, Text: text}
	case confirmOrderWords.intersects(tokens):
		return Result{Intent: ConfirmOrder, Text: text}
	case greetingWords.intersects(tokens) && len(tokens) <= 3:
		return Result{Intent: Greeting, Text: text}
	}

	hasDigit := digitRe.MatchString(text)
	mentionsItem := KnownItems.intersects(tokens)

	// A bare "no" with nothing pending means the caller is done adding
	// items; the executor routes it to order confirmation.
	if denyWords.intersects(tokens) && !mentionsItem && !hasDigit {
		return Result{Intent: Denied, Text: text}
	}

	// Acknowledgements and dead-ends never warrant a model call.
	if (acknowledgements.intersects(tokens) || idleDeadEnds.intersects(tokens)) && !mentionsItem && !hasDigit {
		return Result{Intent: Acknowledgement, Text: text}
	}

	switch {
	case removeWords.intersects(tokens):
		return Result{Intent: RemoveItem, Text: text}
	case updateWords.intersects(tokens):
		return Result{Intent: UpdateItem, Text: text}
	case hasDigit, hasKnownUnit(tokens), mentionsItem:
		return Result{Intent: AddItem, Text: text}
	}

	return Result{Intent: Clarify, Text: text, Ambiguous: true}
}

func hasKnownUnit(tokens []string) bool {
	for _, t := range tokens {
		if _, ok := UnitCanonical[t]; ok {
			return true
		}
	}
	return false
}

func containsPhrase(text string, phrases ...string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
