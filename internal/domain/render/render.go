// Package render assembles mapped records into the tree a view layer can
// serialize directly: one node per item with labelled cells in declaration
// order, item buttons, and computed row flags.
package render

import (
	"fmt"
	"time"

	"publica/internal/core/apperror"
	"publica/internal/domain/cursor"
	"publica/internal/domain/mapping"
	"publica/internal/infrastructure/storage"
	"publica/internal/metadata"
)

// Cell is one field of a rendered item.
type Cell struct {
	Field    string `json:"field"`
	Label    string `json:"label"`
	Value    any    `json:"value"`
	Control  string `json:"control"`
	FormType string `json:"formtype"`
	Hidden   bool   `json:"hidden,omitempty"`
}

// Button is a navigation action attached to a node or to the tree.
type Button struct {
	Name   string `json:"name"`
	Label  string `json:"label"`
	Href   string `json:"href"`
	Method string `json:"method"`
}

// Node is one rendered item. A node with Error set is a placeholder for an
// item that could not be mapped; its cells are empty.
type Node struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Keys    []string `json:"keys"`
	Cells   []Cell   `json:"cells"`
	Buttons []Button `json:"buttons,omitempty"`
	Active  bool     `json:"active"`
	Recent  bool     `json:"recent"`
	Error   string   `json:"error,omitempty"`
}

// Paging carries the pagination state of a rendered page.
type Paging struct {
	Skip        int  `json:"skip"`
	Count       int  `json:"count"`
	Limit       int  `json:"limit"`
	HasPrevious bool `json:"hasPrevious"`
	HasNext     bool `json:"hasNext"`
}

// Tree is one rendered page.
type Tree struct {
	Model   string   `json:"model"`
	Label   string   `json:"label"`
	Nodes   []Node   `json:"nodes"`
	Paging  Paging   `json:"paging"`
	Buttons []Button `json:"buttons,omitempty"`
}

// Aggregator builds trees for one model.
type Aggregator struct {
	table        *mapping.Table
	recentWindow time.Duration
}

// DefaultRecentWindow marks items modified within the last day.
const DefaultRecentWindow = 24 * time.Hour

// NewAggregator creates an aggregator over a mapping table. A zero
// recentWindow falls back to DefaultRecentWindow.
func NewAggregator(table *mapping.Table, recentWindow time.Duration) *Aggregator {
	if recentWindow <= 0 {
		recentWindow = DefaultRecentWindow
	}
	return &Aggregator{table: table, recentWindow: recentWindow}
}

// RecentFlags computes the per-item recent flag from the modification time.
func (a *Aggregator) RecentFlags(recs []storage.RawRecord, now time.Time) []bool {
	threshold := now.Add(-a.recentWindow)
	flags := make([]bool, len(recs))
	for i, rec := range recs {
		if mtime, ok := rec[metadata.FieldMtime].(time.Time); ok {
			flags[i] = mtime.After(threshold)
		}
	}
	return flags
}

// Aggregate assembles records and their flag vector into a tree. The flag
// vector must be exactly as long as the record list; a mismatch means the
// pipeline lost or duplicated an item and aborts the page. A single record
// that fails mapping becomes a placeholder node instead.
func (a *Aggregator) Aggregate(recs []storage.RawRecord, recent []bool, cur cursor.Cursor) (*Tree, error) {
	if len(recent) != len(recs) {
		return nil, apperror.NewInternal(
			fmt.Errorf("flag vector length %d does not match %d records", len(recent), len(recs)))
	}
	def := a.table.Model()
	tree := &Tree{
		Model: def.Name,
		Label: def.Label,
		Nodes: make([]Node, 0, len(recs)),
		Paging: Paging{
			Skip:        cur.Skip,
			Count:       cur.Count,
			Limit:       cur.Limit,
			HasPrevious: cur.HasPrevious(),
			HasNext:     cur.HasNext(),
		},
		Buttons: []Button{
			{Name: "new", Label: "New", Href: "/" + def.Name, Method: "POST"},
		},
	}
	for i, rec := range recs {
		tree.Nodes = append(tree.Nodes, a.node(rec, recent[i]))
	}
	return tree, nil
}

// Item renders a single record as a one-node tree (the show page).
func (a *Aggregator) Item(rec storage.RawRecord, now time.Time) *Tree {
	def := a.table.Model()
	recent := a.RecentFlags([]storage.RawRecord{rec}, now)
	return &Tree{
		Model: def.Name,
		Label: def.Label,
		Nodes: []Node{a.node(rec, recent[0])},
	}
}

func (a *Aggregator) node(rec storage.RawRecord, recent bool) Node {
	def := a.table.Model()
	id, _ := rec[metadata.FieldID].(string)
	active, _ := rec[metadata.FieldActive].(bool)

	mapped, err := a.table.Map(rec)
	if err != nil {
		return Node{
			ID:     id,
			Model:  def.Name,
			Active: active,
			Recent: recent,
			Error:  "item could not be rendered",
		}
	}

	node := Node{
		ID:      id,
		Model:   def.Name,
		Keys:    def.FieldNames(),
		Cells:   make([]Cell, 0, len(def.Fields)),
		Active:  active,
		Recent:  recent,
		Buttons: itemButtons(def.Name, id),
	}
	for _, f := range def.Fields {
		value, ok := mapped[f.Name]
		if !ok {
			continue
		}
		node.Cells = append(node.Cells, Cell{
			Field:    f.Name,
			Label:    f.Label,
			Value:    value,
			Control:  f.Control,
			FormType: f.FormType,
			Hidden:   f.Hidden,
		})
	}
	return node
}

func itemButtons(model, id string) []Button {
	base := "/" + model + "/" + id
	return []Button{
		{Name: "show", Label: "Show", Href: base, Method: "GET"},
		{Name: "modify", Label: "Modify", Href: base, Method: "PUT"},
		{Name: "delete", Label: "Delete", Href: base, Method: "DELETE"},
	}
}
