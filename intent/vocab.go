package intent

// Vocabulary tables driving the deterministic classifier and the item
// parser. These mirror the production calling script for grocery re-order
// campaigns; campaigns with different domains swap the catalog through
// guardrail configuration, not here.

// KnownItems is the grocery catalog recognized without a model call.
var KnownItems = newSet(
	"rice", "wheat", "sugar", "oil", "dal", "flour",
	"salt", "atta", "maida", "sooji", "poha", "tea",
	"coffee", "milk", "ghee", "butter", "bread", "ragi",
	"bajra", "jowar", "besan", "semolina", "suji",
	"mustard", "cumin", "turmeric", "chilli", "pepper",
	"onion", "potato", "tomato", "garlic", "ginger",
	"carrot", "cabbage", "brinjal", "spinach", "peas",
	"lemon", "coconut", "groundnut", "soya", "corn",
)

// UnitCanonical maps spoken unit variants to their canonical form.
var UnitCanonical = map[string]string{
	"kg": "kg", "kilo": "kg", "kilos": "kg",
	"kilogram": "kg", "kilograms": "kg",
	"g": "g", "gram": "g", "grams": "g",
	"litre": "litre", "litres": "litre",
	"liter": "litre", "liters": "litre",
	"l": "litre", "ltr": "litre", "ltrs": "litre",
	"ml": "ml", "millilitre": "ml", "milliliter": "ml",
	"packet": "packet", "packets": "packet",
	"pack": "packet", "pkt": "packet", "pkts": "packet",
	"piece": "piece", "pieces": "piece",
	"pcs": "piece", "pc": "piece",
	"barrel": "barrel", "barrels": "barrel",
	"dozen": "dozen", "box": "box", "boxes": "box",
	"bottle": "bottle", "bottles": "bottle",
	"tin": "tin", "tins": "tin",
	"bag": "bag", "bags": "bag",
	"sack": "bag", "sacks": "bag",
}

var stopWords = newSet(
	"add", "put", "want", "i", "need", "of", "the", "a", "an",
	"please", "some", "more", "to", "and", "give", "me", "get",
	"would", "like", "could", "can", "also", "another", "few",
	"much", "many", "my", "your", "our", "this", "that", "it",
	"for", "with", "from", "in", "on", "at", "by", "about",
	"order", "buy", "purchase", "take", "bring", "send",
	"require", "have", "got", "man", "bro", "sir", "madam",
	"hey", "sup", "yo", "aight", "nah", "yep", "hmm", "okay",
	"ok", "oh", "ah", "uh", "um", "right", "sure", "well",
	"just", "now", "then", "here", "there", "let", "say",
	"tell", "know", "think", "said", "nothing", "something",
	"everything", "anything", "wrong", "reply", "properly",
	"what", "how", "when", "where", "why", "who", "which",
	"up", "down", "out", "off", "over", "under", "back",
)

var affirmWords = newSet(
	"yes", "yeah", "yep", "yup", "correct", "right",
	"ok", "okay", "sure", "confirm", "absolutely", "definitely",
	"fine", "agreed", "proceed", "haan", "bilkul",
)

var denyWords = newSet(
	"no", "nope", "nah", "cancel", "wrong", "incorrect",
	"dont", "not", "stop", "wait", "hold",
	"different", "mistake", "error", "nahi",
)

var accumulateWords = newSet(
	"more", "extra", "additional", "another", "again",
)

var exitWords = newSet(
	"bye", "goodbye", "exit", "quit",
	"finish", "done",
)

var showCartWords = newSet(
	"show", "cart", "list", "display",
	"review", "summary",
)

var confirmOrderWords = newSet(
	"confirm", "place", "finalize", "submit", "complete",
)

var updateWords = newSet(
	"change", "update", "modify", "replace", "correct",
	"edit", "fix", "set",
)

var removeWords = newSet(
	"remove", "delete", "drop",
)

var greetingWords = newSet("hello", "hi", "hey", "heya", "hiya")

var acknowledgements = newSet(
	"okay", "ok", "alright", "great", "fine", "cool", "sure",
	"thanks", "thank", "nice", "good", "perfect", "wonderful",
	"aight", "gotcha", "noted", "understood",
)

var idleDeadEnds = newSet(
	"no", "nope", "nah", "nothing", "nevermind", "never", "mind",
	"forget", "leave", "drop", "skip", "ignore",
)

// numberWords spells digits the transcriber may emit as words.
var numberWords = map[string]string{
	"one": "1", "two": "2", "three": "3", "four": "4", "five": "5",
	"six": "6", "seven": "7", "eight": "8", "nine": "9", "ten": "10",
	"half": "0.5", "quarter": "0.25",
}

// Caps carried over from the production agent.
const (
	// MaxCartItems bounds the number of distinct cart lines per call.
	MaxCartItems = 20
	// MaxItemQuantity bounds a single line's quantity.
	MaxItemQuantity = 9999
)

type wordSet map[string]struct{}

func newSet(words ...string) wordSet {
	s := make(wordSet, len(words))
	for _, w := range words {
		s[w] = struct{}{}
	}
	return s
}

func (s wordSet) Has(w string) bool {
	_, ok := s[w]
	return ok
}

func (s wordSet) intersects(tokens []string) bool {
	for _, t := range tokens {
		if s.Has(t) {
			return true
		}
	}
	return false
}
