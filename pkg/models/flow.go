// Package models defines the core domain models for flow definitions and flow runs.
package models

import (
	"strings"
)

// Built-in node categories.
const (
	CategoryTrigger = "trigger"
	CategoryLogic   = "logic"
	CategoryData    = "data"
	CategoryUtility = "utility"
	CategoryHTTP    = "http"
)

// Flow is a user-authored graph of nodes connected by edges. It is read-only during a run.
type Flow struct {
	ID        string         `json:"id"                  validate:"required"`
	Name      string         `json:"name,omitempty"`
	Nodes     []*Node        `json:"nodes"               validate:"required,min=1,dive"`
	Edges     []*Edge        `json:"edges"               validate:"dive"`
	Variables map[string]any `json:"variables,omitempty"`
}

// Node is a single step of a flow. Type is namespaced as "category:name".
type Node struct {
	ID       string         `json:"id"                 validate:"required"`
	Type     string         `json:"type"               validate:"required"`
	Data     map[string]any `json:"data,omitempty"`
	Disabled bool           `json:"disabled,omitempty"`
}

// Edge connects two nodes. SourceHandle restricts the edge to results that
// declare the handle in their next nodes.
type Edge struct {
	ID           string `json:"id,omitempty"`
	Source       string `json:"source"                 validate:"required"`
	Target       string `json:"target"                 validate:"required"`
	SourceHandle string `json:"sourceHandle,omitempty"`
}

// Category returns the category part of the node type.
func (n *Node) Category() string {
	category, _ := SplitNodeType(n.Type)

	return category
}

// SplitNodeType splits "category:name" into its parts. A type without a
// namespace has an empty category.
func SplitNodeType(nodeType string) (string, string) {
	category, name, found := strings.Cut(nodeType, ":")
	if !found {
		return "", nodeType
	}

	return category, name
}

// NodeByID returns the node with the given id, or nil.
func (f *Flow) NodeByID(id string) *Node {
	for _, node := range f.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}

// OutgoingEdges returns the edges leaving the given node, in declaration order.
func (f *Flow) OutgoingEdges(nodeID string) []*Edge {
	edges := make([]*Edge, 0)

	for _, edge := range f.Edges {
		if edge.Source == nodeID {
			edges = append(edges, edge)
		}
	}

	return edges
}

// IncomingEdges returns the edges entering the given node, in declaration order.
func (f *Flow) IncomingEdges(nodeID string) []*Edge {
	edges := make([]*Edge, 0)

	for _, edge := range f.Edges {
		if edge.Target == nodeID {
			edges = append(edges, edge)
		}
	}

	return edges
}

// TriggerNodes returns every node in the trigger category.
func (f *Flow) TriggerNodes() []*Node {
	nodes := make([]*Node, 0)

	for _, node := range f.Nodes {
		if node.Category() == CategoryTrigger {
			nodes = append(nodes, node)
		}
	}

	return nodes
}
