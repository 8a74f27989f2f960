package dialog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGraph(t *testing.T) {
	data := []byte(`
start: greet
nodes:
  - id: greet
    kind: greeting
    prompt: "Hello!"
    default: ask
  - id: ask
    kind: question
    reprompt: "Still there?"
    edges:
      exit: bye
    default: ask
  - id: bye
    kind: closing
`)
	g, err := ParseGraph(data)
	require.NoError(t, err)

	n, ok := g.Node("greet")
	require.True(t, ok)
	assert.Equal(t, NodeGreeting, n.Kind)

	next, ok := g.Next("ask", "exit")
	require.True(t, ok)
	assert.Equal(t, "bye", next.ID)

	next, ok = g.Next("ask", "add_item")
	require.True(t, ok, "falls back to default edge")
	assert.Equal(t, "ask", next.ID)

	_, ok = g.Next("bye", "add_item")
	assert.False(t, ok, "closing node has no routes")
}

func TestParseGraph_Invalid(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"missing start", "nodes:\n  - {id: a, kind: question}\n"},
		{"unknown start", "start: b\nnodes:\n  - {id: a, kind: question}\n"},
		{"duplicate id", "start: a\nnodes:\n  - {id: a, kind: question}\n  - {id: a, kind: closing}\n"},
		{"bad kind", "start: a\nnodes:\n  - {id: a, kind: wibble}\n"},
		{"dangling edge", "start: a\nnodes:\n  - id: a\n    kind: question\n    edges: {exit: nope}\n"},
		{"dangling default", "start: a\nnodes:\n  - {id: a, kind: question, default: nope}\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseGraph([]byte(tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestDefaultGraph(t *testing.T) {
	g := DefaultGraph()
	require.NoError(t, g.Validate())

	n, ok := g.Node(g.Start)
	require.True(t, ok)
	assert.Equal(t, NodeGreeting, n.Kind)
	assert.NotEmpty(t, n.Prompt)

	next, ok := g.Next("collect", "confirm_order")
	require.True(t, ok)
	assert.Equal(t, NodeConfirm, next.Kind)
}
