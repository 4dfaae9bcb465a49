package server

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Zeppelin-and-Pails/Victualiser/errors"
)

// Tree is the aggregation trie: an ordered field-value path per record,
// with occurrence counts at the leaves. Branch keys keep first-insertion
// order and counts only increase.
type Tree struct {
	children map[string]*Tree
	order    []string
	count    int
}

// NewTree creates an empty aggregation tree
func NewTree() *Tree {
	return &Tree{}
}

// Insert walks one value path through the tree, creating levels on
// demand, and increments the leaf counter for the final value by 1.
func (t *Tree) Insert(values []string) error {
	if len(values) == 0 {
		return errors.WrapInvalid(
			fmt.Errorf("empty value path"),
			"Tree", "Insert", "path validation")
	}

	node := t
	for _, value := range values {
		if node.children == nil {
			node.children = make(map[string]*Tree)
		}
		child, exists := node.children[value]
		if !exists {
			child = &Tree{}
			node.children[value] = child
			node.order = append(node.order, value)
		}
		node = child
	}
	node.count++

	return nil
}

// Count returns the leaf count at the given value path, 0 when absent
func (t *Tree) Count(values ...string) int {
	node := t
	for _, value := range values {
		child, exists := node.children[value]
		if !exists {
			return 0
		}
		node = child
	}
	return node.count
}

// Branches returns the child keys at the root level, in insertion order
func (t *Tree) Branches() []string {
	return append([]string(nil), t.order...)
}

// Branch returns the subtree under one root key, nil when absent
func (t *Tree) Branch(value string) *Tree {
	return t.children[value]
}

// Total returns the sum of all leaf counts in the tree. For any pass
// where every record inserted one path, Total equals the record count.
func (t *Tree) Total() int {
	total := t.count
	for _, child := range t.children {
		total += child.Total()
	}
	return total
}

// MarshalJSON renders the tree as nested objects with leaf counts,
// branch keys in first-insertion order.
func (t *Tree) MarshalJSON() ([]byte, error) {
	if len(t.order) == 0 {
		return json.Marshal(t.count)
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range t.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, err := json.Marshal(key)
		if err != nil {
			return nil, errors.Wrap(err, "Tree", "MarshalJSON", "key marshal")
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')

		childJSON, err := t.children[key].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(childJSON)
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}
