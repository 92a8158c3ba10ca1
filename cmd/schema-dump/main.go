// Command schema-dump prints the SQL DDL for a composed shop context. Feature
// packs contribute table fragments during composition, so the emitted schema
// depends on which features are selected. With -apply the statements are also
// executed against a SQLite database.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"cartcore/internal/checkout"
	"cartcore/internal/checkout/features/inventory"
	"cartcore/internal/checkout/features/offer"
	"cartcore/internal/checkout/features/refund"
	"cartcore/internal/checkout/features/shipping"
	"cartcore/internal/checkout/features/taxation"
	"cartcore/internal/infra/persistence/sqlite"
	"cartcore/pkg/composition"
	"cartcore/pkg/domain"
)

var exitFunc = os.Exit

func main() {
	var (
		featureList = flag.String("features", strings.Join(allFeatureNames(), ","), "comma-separated feature packs to compose")
		apply       = flag.Bool("apply", false, "execute the statements against the SQLite database")
		dbPath      = flag.String("db", "./data/cartcore.db", "SQLite database path used with -apply")
	)
	flag.Parse()

	statements, err := buildStatements(selectedFeatures(*featureList))
	if err != nil {
		fmt.Fprintf(os.Stderr, "schema-dump: %v\n", err)
		exitFunc(1)
		return
	}
	for _, stmt := range statements {
		fmt.Println(stmt + ";")
	}

	if *apply {
		store, err := sqlite.NewStore(*dbPath, domain.NewRulesEngine())
		if err != nil {
			fmt.Fprintf(os.Stderr, "schema-dump: open %s: %v\n", *dbPath, err)
			exitFunc(1)
			return
		}
		if err := store.ApplyDDL(context.Background(), statements); err != nil {
			fmt.Fprintf(os.Stderr, "schema-dump: apply: %v\n", err)
			exitFunc(1)
			return
		}
		fmt.Fprintf(os.Stderr, "applied %d statements to %s\n", len(statements), *dbPath)
	}
}

func allFeatureNames() []string {
	return []string{taxation.Name, shipping.Name, inventory.Name, offer.Name, refund.Name}
}

func selectedFeatures(list string) []string {
	var out []string
	for _, name := range strings.Split(list, ",") {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func newRegistry() *composition.Registry {
	reg := composition.NewRegistry()
	checkout.RegisterModels(reg)
	taxation.Register(reg)
	shipping.Register(reg)
	inventory.Register(reg)
	offer.Register(reg)
	refund.Register(reg)
	return reg
}

// buildStatements composes a context with the selected features and renders
// one CREATE TABLE per bound model, plus its indexes. Models without schema
// fragments (features not selected) are skipped.
func buildStatements(features []string) ([]string, error) {
	bindings, err := checkout.NewDefaultContext(newRegistry(), features...)
	if err != nil {
		return nil, fmt.Errorf("compose context: %w", err)
	}
	ctx := bindings.Context

	var statements []string
	for _, model := range ctx.Models() {
		frags := ctx.Schema().Fragments(model)
		if len(frags) == 0 {
			continue
		}
		table := &sqlTable{name: frags[0].Name}
		if err := ctx.ReplayTable(model, table); err != nil {
			return nil, fmt.Errorf("replay %s: %w", model, err)
		}
		statements = append(statements, table.render()...)
	}
	return statements, nil
}

// sqlTable accumulates replayed fragments into a single table definition.
type sqlTable struct {
	name    string
	columns []composition.Column
	seen    map[string]bool
	indexes [][]string
}

func (t *sqlTable) AddColumn(col composition.Column) {
	if t.seen == nil {
		t.seen = map[string]bool{}
	}
	if t.seen[col.Name] {
		return
	}
	t.seen[col.Name] = true
	t.columns = append(t.columns, col)
}

func (t *sqlTable) AddIndex(columns ...string) {
	t.indexes = append(t.indexes, columns)
}

func columnType(kind composition.ColumnKind) string {
	switch kind {
	case composition.KindInteger:
		return "INTEGER"
	case composition.KindDecimal:
		return "NUMERIC"
	case composition.KindDatetime:
		return "DATETIME"
	case composition.KindBoolean:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

func (t *sqlTable) render() []string {
	lines := []string{"\tid TEXT PRIMARY KEY"}
	for _, col := range t.columns {
		line := fmt.Sprintf("\t%s %s", col.Name, columnType(col.Kind))
		if col.NotNull {
			line += " NOT NULL"
		}
		if col.Default != "" {
			line += " DEFAULT " + col.Default
		}
		lines = append(lines, line)
	}
	statements := []string{fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n)", t.name, strings.Join(lines, ",\n"))}

	indexNames := make([]string, 0, len(t.indexes))
	byName := map[string][]string{}
	for _, idx := range t.indexes {
		name := fmt.Sprintf("idx_%s_%s", t.name, strings.Join(idx, "_"))
		if _, dup := byName[name]; dup {
			continue
		}
		byName[name] = idx
		indexNames = append(indexNames, name)
	}
	sort.Strings(indexNames)
	for _, name := range indexNames {
		statements = append(statements, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
			name, t.name, strings.Join(byName[name], ", ")))
	}
	return statements
}
