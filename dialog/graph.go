// Package dialog drives the conversational flow of a connected call. A
// Graph declares the scripted shape of the dialogue, and a Machine walks it
// turn by turn: listen, interpret, validate, execute, respond.
package dialog

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// NodeKind tags the role of a graph node.
type NodeKind string

const (
	// NodeGreeting opens the call.
	NodeGreeting NodeKind = "greeting"
	// NodeQuestion collects caller input.
	NodeQuestion NodeKind = "question"
	// NodeConfirm poses a yes/no question.
	NodeConfirm NodeKind = "confirm"
	// NodeClosing ends the call.
	NodeClosing NodeKind = "closing"
)

// Node is one scripted step of the dialogue.
type Node struct {
	ID   string   `yaml:"id"`
	Kind NodeKind `yaml:"kind"`

	// Prompt is spoken on entering the node. Question prompts may be
	// overridden by dynamically generated slot questions.
	Prompt string `yaml:"prompt,omitempty"`

	// Reprompt is spoken when the caller stays silent past the turn
	// timeout.
	Reprompt string `yaml:"reprompt,omitempty"`

	// Edges route by recognized intent to the next node.
	Edges map[string]string `yaml:"edges,omitempty"`

	// Default is the next node when no edge matches.
	Default string `yaml:"default,omitempty"`
}

// Graph is the scripted dialogue structure for a campaign.
type Graph struct {
	Start string `yaml:"start"`
	Nodes []Node `yaml:"nodes"`

	index map[string]*Node
}

// ParseGraph unmarshals and validates a YAML dialogue graph.
func ParseGraph(data []byte) (*Graph, error) {
	g := &Graph{}
	if err := yaml.Unmarshal(data, g); err != nil {
		return nil, fmt.Errorf("parse dialog graph: %w", err)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// Validate checks the graph is well formed: unique node IDs, a resolvable
// start node, and every edge pointing at an existing node.
func (g *Graph) Validate() error {
	g.index = make(map[string]*Node, len(g.Nodes))
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.ID == "" {
			return fmt.Errorf("dialog graph: node %d has no id", i)
		}
		if _, dup := g.index[n.ID]; dup {
			return fmt.Errorf("dialog graph: duplicate node id %q", n.ID)
		}
		switch n.Kind {
		case NodeGreeting, NodeQuestion, NodeConfirm, NodeClosing:
		default:
			return fmt.Errorf("dialog graph: node %q has unknown kind %q", n.ID, n.Kind)
		}
		g.index[n.ID] = n
	}
	if g.Start == "" {
		return fmt.Errorf("dialog graph: no start node")
	}
	if _, ok := g.index[g.Start]; !ok {
		return fmt.Errorf("dialog graph: start node %q not defined", g.Start)
	}
	for _, n := range g.Nodes {
		for in, to := range n.Edges {
			if _, ok := g.index[to]; !ok {
				return fmt.Errorf("dialog graph: node %q edge %q points at unknown node %q", n.ID, in, to)
			}
		}
		if n.Default != "" {
			if _, ok := g.index[n.Default]; !ok {
				return fmt.Errorf("dialog graph: node %q default points at unknown node %q", n.ID, n.Default)
			}
		}
	}
	return nil
}

// Node returns a node by ID.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.index[id]
	return n, ok
}

// Next resolves the successor of a node for a recognized intent, falling
// back to the node's default edge. The second return is false when the node
// has no route for the intent.
func (g *Graph) Next(nodeID, intentName string) (*Node, bool) {
	n, ok := g.index[nodeID]
	if !ok {
		return nil, false
	}
	if to, ok := n.Edges[intentName]; ok {
		return g.index[to], true
	}
	if n.Default != "" {
		return g.index[n.Default], true
	}
	return nil, false
}

// DefaultGraph is the built-in ration-order dialogue: greet, collect items,
// confirm the order, close.
func DefaultGraph() *Graph {
	g := &Graph{
		Start: "greet",
		Nodes: []Node{
			{
				ID:     "greet",
				Kind:   NodeGreeting,
				Prompt: "Hello! I'm calling to take your ration order. What would you like?",
				Edges: map[string]string{
					"exit": "close",
				},
				Default: "collect",
			},
			{
				ID:       "collect",
				Kind:     NodeQuestion,
				Reprompt: "Are you still there? You can tell me an item, or say done to finish.",
				Edges: map[string]string{
					"confirm_order": "confirm",
					"exit":          "close",
				},
				Default: "collect",
			},
			{
				ID:       "confirm",
				Kind:     NodeConfirm,
				Reprompt: "Shall I place the order? Please say yes or no.",
				Edges: map[string]string{
					"user_confirmed": "close",
					"user_denied":    "collect",
					"exit":           "close",
				},
				Default: "confirm",
			},
			{
				ID:   "close",
				Kind: NodeClosing,
			},
		},
	}
	if err := g.Validate(); err != nil {
		panic(err)
	}
	return g
}
