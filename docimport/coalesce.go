// CLAUDE:SUMMARY Merges runs of adjacent same-kind list nodes into single multi-item lists.
package docimport

// mergeAdjacentLists collapses consecutive bulletList or orderedList nodes of
// the same kind into one node holding the concatenated items, preserving
// item order. Any other node, or a list of the other kind, closes the current
// run. Single linear pass over the top-level sequence.
func mergeAdjacentLists(nodes []Node) []Node {
	merged := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		if isListNode(n.Type) && len(merged) > 0 {
			last := &merged[len(merged)-1]
			if last.Type == n.Type {
				last.Content = append(last.Content, n.Content...)
				continue
			}
		}
		merged = append(merged, n)
	}
	return merged
}

func isListNode(t NodeType) bool {
	return t == NodeBulletList || t == NodeOrderedList
}
