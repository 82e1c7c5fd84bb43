package backend

import (
	"context"
	"fmt"

	"github.com/roach88/onepass/internal/engine"
	"github.com/roach88/onepass/internal/op"
	"github.com/roach88/onepass/internal/selection"
)

// BuildGraph books the products of outputs, or of every registered
// output when none are given. Nodes are realised top-down, each node's
// products before its children, so that columns defined for a node's
// products are visible to its children.
//
// It can be called once.
func (b *Backend) BuildGraph(outputs ...selection.Output) error {
	if b.built {
		return newError(ErrCodeGraphBuilt, "", "the graph was already built")
	}
	if b.eager {
		b.built = true
		b.logStats()
		return nil
	}
	names := b.order
	if len(outputs) > 0 {
		names = make([]string, 0, len(outputs))
		for _, o := range outputs {
			if _, ok := b.products[o.Name()]; !ok {
				return newError(ErrCodeUnknownOutput, o.Name(), "output was not added to this backend")
			}
			names = append(names, o.Name())
		}
	}

	byNode := make(map[*FilterNode][]Product)
	needed := make(map[*FilterNode]bool)
	for _, name := range names {
		for _, p := range b.products[name] {
			nd := p.Node()
			byNode[nd] = append(byNode[nd], p)
			for x := nd; x != nil && !needed[x]; x = x.parent {
				needed[x] = true
			}
		}
	}
	if err := b.buildNode(b.root, byNode, needed); err != nil {
		return err
	}
	b.built = true
	b.logStats()
	return nil
}

func (b *Backend) buildNode(f *FilterNode, byNode map[*FilterNode][]Product, needed map[*FilterNode]bool) error {
	if len(byNode[f]) > 0 {
		if err := f.realise(); err != nil {
			return err
		}
	}
	for _, p := range byNode[f] {
		if err := p.make(); err != nil {
			return err
		}
	}
	for _, c := range f.childOrder {
		if needed[c] {
			if err := b.buildNode(c, byNode, needed); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *Backend) logStats() {
	attrs := []any{"filters", b.stats["Filter"], "defines", b.stats["Define"]}
	for _, k := range sortedKeys(b.stats) {
		if k != "Filter" && k != "Define" {
			attrs = append(attrs, k, b.stats[k])
		}
	}
	b.logger.Info("graph built", attrs...)
}

// Stats returns the number of engine calls by kind: Filter, Define,
// Declare, Snapshot and Histo<N>D.
func (b *Backend) Stats() map[string]int {
	out := make(map[string]int, len(b.stats))
	for k, v := range b.stats {
		out[k] = v
	}
	return out
}

// Built reports whether BuildGraph succeeded.
func (b *Backend) Built() bool { return b.built }

// RunGraph runs the single event loop filling every booked result.
func (b *Backend) RunGraph(ctx context.Context) error {
	if !b.built {
		return newError(ErrCodeGraphNotBuilt, "", "build the graph before running it")
	}
	if b.ran {
		return newError(ErrCodeGraphRun, "", "the graph was already run")
	}
	var results []engine.Result
	for _, name := range b.order {
		for _, p := range b.products[name] {
			if r := p.Result(); r != nil {
				results = append(results, r)
			}
		}
	}
	b.ran = true
	b.logger.Info("running event loop", "results", len(results))
	if err := b.eng.Run(ctx, results); err != nil {
		return fmt.Errorf("run graph: %w", err)
	}
	b.root.walk(func(f *FilterNode) {
		if f.df != nil {
			f.state = StateDone
		}
	})
	return nil
}

// NodeSummary describes one realised filter node.
type NodeSummary struct {
	Digest  string   `json:"digest"`
	Parent  string   `json:"parent,omitempty"`
	Cut     string   `json:"cut,omitempty"`
	State   string   `json:"state"`
	Columns []string `json:"columns,omitempty"`
}

// ProductSummary describes one booked product.
type ProductSummary struct {
	Name   string `json:"name"`
	Output string `json:"output"`
	Kind   string `json:"kind"`
	Node   string `json:"node"`
	Digest string `json:"digest"`
}

// Summary is a serialisable view of the built graph.
type Summary struct {
	Nodes    []NodeSummary    `json:"nodes"`
	Products []ProductSummary `json:"products"`
	Stats    map[string]int   `json:"stats"`
}

// Summary describes the realised nodes and the booked products.
func (b *Backend) Summary() Summary {
	s := Summary{Stats: b.Stats()}
	b.root.walk(func(f *FilterNode) {
		if f.df == nil {
			return
		}
		ns := NodeSummary{Digest: f.digest.String(), State: f.state.String(), Columns: f.Columns()}
		if f.parent != nil {
			ns.Parent = f.parent.digest.String()
			code, err := f.cut.Code(op.NoRedir)
			if err != nil {
				code = f.cut.String()
			}
			ns.Cut = code
		}
		s.Nodes = append(s.Nodes, ns)
	})
	for _, name := range b.order {
		for _, p := range b.products[name] {
			if p.Result() == nil {
				continue
			}
			s.Products = append(s.Products, ProductSummary{
				Name:   p.Name(),
				Output: name,
				Kind:   p.Kind(),
				Node:   p.Node().Digest().String(),
				Digest: p.Digest().String(),
			})
		}
	}
	return s
}
