package composition

import (
	"fmt"
	"sort"
)

// ColumnKind enumerates the portable column types schema fragments may use.
// Concrete TableBuilder implementations map them onto backend DDL types.
type ColumnKind string

// Portable column kinds understood by every table builder.
const (
	KindString   ColumnKind = "string"
	KindText     ColumnKind = "text"
	KindInteger  ColumnKind = "integer"
	KindDecimal  ColumnKind = "decimal"
	KindDatetime ColumnKind = "datetime"
	KindBoolean  ColumnKind = "boolean"
)

// Column describes one physical column contributed by a fragment.
type Column struct {
	Name    string
	Kind    ColumnKind
	NotNull bool
	Default string // literal DDL default, optional
}

// Fragment is a value object describing part of a table's layout: the columns
// and indexes one contributor adds under a label. Capture is explicit (field
// lists, not closures) so fragments can be inspected and deduplicated.
type Fragment struct {
	Name    string // dedup key within a label
	Columns []Column
	Indexes [][]string // each entry is the column list of one index
}

// Timestamps returns the standard created_at/updated_at column pair.
func Timestamps() []Column {
	return []Column{
		{Name: "created_at", Kind: KindDatetime},
		{Name: "updated_at", Kind: KindDatetime},
	}
}

// Reference returns the column pair backing a polymorphic reference:
// <name>_type and <name>_id.
func Reference(name string) []Column {
	return []Column{
		{Name: name + "_type", Kind: KindString},
		{Name: name + "_id", Kind: KindString},
	}
}

// BelongsTo returns the foreign key column for a direct association.
func BelongsTo(name string) Column {
	return Column{Name: name + "_id", Kind: KindString}
}

// TableBuilder consumes replayed fragments to produce a concrete table
// definition. Implementations live next to their storage backend.
type TableBuilder interface {
	AddColumn(Column)
	AddIndex(columns ...string)
}

// SchemaRegistry accumulates named DDL fragment lists. Components append
// fragments under a label at composition time; a migration step later replays
// every fragment for a label against a table builder.
//
// Registration happens during single-threaded startup composition, so the
// registry carries no locking.
type SchemaRegistry struct {
	fragments map[string][]Fragment
}

// NewSchemaRegistry constructs an empty schema registry.
func NewSchemaRegistry() *SchemaRegistry {
	return &SchemaRegistry{fragments: make(map[string][]Fragment)}
}

// Register appends a fragment under a label, preserving registration order.
// A fragment whose name is already present under the label is ignored, so
// repeated registration of the same contribution stays idempotent. Empty
// labels and unnamed fragments are ignored.
func (r *SchemaRegistry) Register(label string, frag Fragment) {
	if label == "" || frag.Name == "" {
		return
	}
	for _, existing := range r.fragments[label] {
		if existing.Name == frag.Name {
			return
		}
	}
	r.fragments[label] = append(r.fragments[label], frag)
}

// Fragments returns a copy of the fragments registered under a label, in
// registration order.
func (r *SchemaRegistry) Fragments(label string) []Fragment {
	out := make([]Fragment, len(r.fragments[label]))
	copy(out, r.fragments[label])
	return out
}

// Labels returns every registered label, sorted.
func (r *SchemaRegistry) Labels() []string {
	out := make([]string, 0, len(r.fragments))
	for label := range r.fragments {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

// Replay invokes every fragment registered under label against the builder,
// in registration order. A label with zero fragments is a configuration
// error: it means an expected schema contributor never ran.
func (r *SchemaRegistry) Replay(label string, tb TableBuilder) error {
	frags := r.fragments[label]
	if len(frags) == 0 {
		return fmt.Errorf("schema registry: no fragments registered for %q", label)
	}
	for _, frag := range frags {
		for _, col := range frag.Columns {
			tb.AddColumn(col)
		}
		for _, idx := range frag.Indexes {
			tb.AddIndex(idx...)
		}
	}
	return nil
}
