package main

import (
	"strings"
	"testing"

	"cartcore/pkg/composition"
)

func TestBuildStatementsIncludesFeatureColumns(t *testing.T) {
	statements, err := buildStatements(allFeatureNames())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	ddl := strings.Join(statements, "\n")
	for _, want := range []string{
		"CREATE TABLE IF NOT EXISTS orders",
		"CREATE TABLE IF NOT EXISTS products",
		"CREATE TABLE IF NOT EXISTS promotions",
		"stock_levels INTEGER",
		"tracking_code TEXT",
		"tax_rate NUMERIC",
		"CREATE INDEX IF NOT EXISTS idx_orders_status ON orders (status)",
	} {
		if !strings.Contains(ddl, want) {
			t.Fatalf("ddl missing %q:\n%s", want, ddl)
		}
	}
}

func TestBuildStatementsWithoutFeatures(t *testing.T) {
	statements, err := buildStatements(nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	ddl := strings.Join(statements, "\n")
	if strings.Contains(ddl, "stock_levels") {
		t.Fatalf("inventory columns leaked into the bare schema:\n%s", ddl)
	}
	if !strings.Contains(ddl, "CREATE TABLE IF NOT EXISTS orders") {
		t.Fatalf("base orders table missing:\n%s", ddl)
	}
}

func TestSqlTableDeduplicatesColumns(t *testing.T) {
	table := &sqlTable{name: "things"}
	table.AddColumn(composition.Column{Name: "label", Kind: composition.KindString})
	table.AddColumn(composition.Column{Name: "label", Kind: composition.KindString})
	if len(table.columns) != 1 {
		t.Fatalf("columns = %d, want 1", len(table.columns))
	}
}
