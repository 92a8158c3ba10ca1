package checkout_test

import (
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// TestPublicPackagesStayFreeOfInternal ensures pkg/... remains usable on its
// own: the composition kernel, domain entities, and money types must never
// reach into internal packages.
func TestPublicPackagesStayFreeOfInternal(t *testing.T) {
	pkgs := loadModulePackages(t)
	var violations []string
	for _, pkg := range pkgs {
		if !strings.HasPrefix(pkg.PkgPath, "cartcore/pkg/") {
			continue
		}
		for importPath := range pkg.Imports {
			if strings.HasPrefix(importPath, "cartcore/internal/") {
				violations = append(violations, pkg.PkgPath+": "+importPath)
			}
		}
	}
	reportImportViolations(t, "pkg package imports internal", violations)
}

// TestFeaturePacksStayOptional ensures the checkout service never imports a
// feature pack. Packs register against the composition registry and are
// selected by callers; an import in the other direction would hard-wire a
// pack into every deployment and close the cycle.
func TestFeaturePacksStayOptional(t *testing.T) {
	pkgs := loadModulePackages(t)
	var violations []string
	for _, pkg := range pkgs {
		if pkg.PkgPath != "cartcore/internal/checkout" {
			continue
		}
		for importPath := range pkg.Imports {
			if strings.HasPrefix(importPath, "cartcore/internal/checkout/features/") {
				violations = append(violations, pkg.PkgPath+": "+importPath)
			}
		}
	}
	reportImportViolations(t, "checkout imports feature pack", violations)
}

// TestStorageDriversStayBelowCheckout ensures persistence and blob drivers
// depend only on the domain contracts, never on the service layer above
// them.
func TestStorageDriversStayBelowCheckout(t *testing.T) {
	pkgs := loadModulePackages(t)
	var violations []string
	for _, pkg := range pkgs {
		if !strings.HasPrefix(pkg.PkgPath, "cartcore/internal/infra/") {
			continue
		}
		for importPath := range pkg.Imports {
			if strings.HasPrefix(importPath, "cartcore/internal/checkout") {
				violations = append(violations, pkg.PkgPath+": "+importPath)
			}
		}
	}
	reportImportViolations(t, "infra imports checkout", violations)
}

func loadModulePackages(t *testing.T) []*packages.Package {
	t.Helper()
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports}
	pkgs, err := packages.Load(cfg, "cartcore/...")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}
	return pkgs
}

func reportImportViolations(t *testing.T, kind string, violations []string) {
	t.Helper()
	if len(violations) == 0 {
		return
	}
	sort.Strings(violations)
	for _, v := range violations {
		t.Errorf("%s: %s", kind, v)
	}
	t.Fatalf("found %d forbidden imports", len(violations))
}
