package completion

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vault-md/textrepo/internal/index"
)

// TreeNode is one entry of a condensed completion tree.
type TreeNode struct {
	Name     string      `json:"name"`
	Type     string      `json:"type"`
	Path     string      `json:"path,omitempty"`
	Counts               // totals for directories after Aggregate
	Children []*TreeNode `json:"children,omitempty"`
}

// Tree returns the condensed completion tree below path, aggregated.
func (c *Cache) Tree(ctx context.Context, path ...string) (*TreeNode, error) {
	snap, err := c.idx.Current(ctx)
	if err != nil {
		return nil, err
	}
	start, err := snap.Subtree(path...)
	if err != nil {
		return nil, err
	}

	var records []*index.Record
	collect(start, &records)

	counts := make(map[string]Counts, len(records))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for _, rec := range records {
		rec := rec
		g.Go(func() error {
			got, err := c.CompletionFor(gctx, rec)
			if err != nil {
				return err
			}
			mu.Lock()
			counts[rec.Path] = got
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	name := ""
	if len(path) > 0 {
		name = path[len(path)-1]
	}
	tree := condense(name, start, counts)
	Aggregate(tree)
	return tree, nil
}

func collect(n *index.Node, out *[]*index.Record) {
	if n.IsDocument() {
		*out = append(*out, n.Record)
		return
	}
	for _, name := range n.Order {
		if strings.HasPrefix(name, "_") {
			continue
		}
		collect(n.Children[name], out)
	}
}

func condense(name string, n *index.Node, counts map[string]Counts) *TreeNode {
	if n.IsDocument() {
		return &TreeNode{
			Name:   name,
			Type:   TypeDocument,
			Path:   n.Record.Path,
			Counts: counts[n.Record.Path],
		}
	}
	node := &TreeNode{Name: name, Type: TypeNode}
	for _, childName := range n.Order {
		if strings.HasPrefix(childName, "_") {
			continue
		}
		node.Children = append(node.Children, condense(childName, n.Children[childName], counts))
	}
	return node
}

// Aggregate sets every directory's counts to the sum over its document
// leaves and returns the counts of n.
func Aggregate(n *TreeNode) Counts {
	if n.Type == TypeDocument {
		return n.Counts
	}
	var total Counts
	for _, child := range n.Children {
		total = total.add(Aggregate(child))
	}
	n.Counts = total
	return total
}
