package i18n

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"testing"

	"gopkg.in/yaml.v2"

	"github.com/guardbot/guardbot/resources"
)

func TestTranslationsKeysAreUsedAndComplete(t *testing.T) {
	t.Parallel()

	used, err := collectUsedI18nKeys()
	if err != nil {
		t.Fatalf("collect used i18n keys: %v", err)
	}
	if len(used) == 0 {
		t.Fatal("no i18n keys found in the codebase")
	}

	locales, err := loadLocales()
	if err != nil {
		t.Fatalf("load locales: %v", err)
	}
	if len(locales) == 0 {
		t.Fatal("no locale files embedded")
	}

	for locale, translations := range locales {
		defined := make([]string, 0, len(translations))
		for key, value := range translations {
			defined = append(defined, key)
			if strings.TrimSpace(value) == "" {
				t.Fatalf("empty translation for key %q in %s", key, locale)
			}
		}
		sort.Strings(defined)

		missing := difference(used, defined)
		if len(missing) > 0 {
			t.Fatalf("missing keys in %s:\n%s", locale, strings.Join(missing, "\n"))
		}
		unused := difference(defined, used)
		if len(unused) > 0 {
			t.Fatalf("unused keys in %s:\n%s", locale, strings.Join(unused, "\n"))
		}
	}
}

func TestLanguagesListMatchesEmbeddedLocales(t *testing.T) {
	t.Parallel()

	locales, err := loadLocales()
	if err != nil {
		t.Fatalf("load locales: %v", err)
	}

	want := []string{"en"}
	for locale := range locales {
		want = append(want, locale)
	}
	sort.Strings(want)

	got := GetLanguagesList()
	if len(got) != len(want) {
		t.Fatalf("unexpected languages list: got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected languages list: got %v want %v", got, want)
		}
	}
}

func collectUsedI18nKeys() ([]string, error) {
	root, err := repoRoot()
	if err != nil {
		return nil, err
	}

	internalDir := filepath.Join(root, "internal")
	fileSet := token.NewFileSet()
	keys := make(map[string]struct{})

	err = filepath.WalkDir(internalDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}

		node, err := parser.ParseFile(fileSet, path, nil, parser.SkipObjectResolution)
		if err != nil {
			return err
		}

		ast.Inspect(node, func(n ast.Node) bool {
			call, ok := n.(*ast.CallExpr)
			if !ok {
				return true
			}
			selector, ok := call.Fun.(*ast.SelectorExpr)
			if !ok || selector.Sel == nil || selector.Sel.Name != "Get" {
				return true
			}
			pkgIdent, ok := selector.X.(*ast.Ident)
			if !ok || pkgIdent.Name != "i18n" {
				return true
			}
			if len(call.Args) < 1 {
				return true
			}
			value, ok := stringLiteralValue(call.Args[0])
			if !ok || value == "" {
				return true
			}
			keys[value] = struct{}{}
			return true
		})

		// Spam reasons travel through Offense.Reason, not a literal call.
		if strings.HasSuffix(filepath.ToSlash(path), "internal/handlers/moderation/rules.go") {
			extractStringConstLiterals(node, "Reason", keys)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := make([]string, 0, len(keys))
	for key := range keys {
		result = append(result, key)
	}
	sort.Strings(result)
	return result, nil
}

func loadLocales() (map[string]map[string]string, error) {
	entries, err := resources.FS.ReadDir("i18n")
	if err != nil {
		return nil, err
	}

	locales := make(map[string]map[string]string, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".yml") {
			continue
		}
		content, err := resources.FS.ReadFile("i18n/" + name)
		if err != nil {
			return nil, err
		}
		translations := map[string]string{}
		if err := yaml.Unmarshal(content, &translations); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", name, err)
		}
		locales[strings.TrimSuffix(name, ".yml")] = translations
	}
	return locales, nil
}

func difference(left, right []string) []string {
	rightSet := make(map[string]struct{}, len(right))
	for _, item := range right {
		rightSet[item] = struct{}{}
	}
	diff := make([]string, 0)
	for _, item := range left {
		if _, ok := rightSet[item]; !ok {
			diff = append(diff, item)
		}
	}
	return diff
}

func stringLiteralValue(expr ast.Expr) (string, bool) {
	basic, ok := expr.(*ast.BasicLit)
	if !ok || basic.Kind != token.STRING {
		return "", false
	}
	value, err := strconv.Unquote(basic.Value)
	if err != nil {
		return "", false
	}
	return value, true
}

func extractStringConstLiterals(file *ast.File, namePrefix string, out map[string]struct{}) {
	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.CONST {
			continue
		}
		for _, spec := range gen.Specs {
			valueSpec, ok := spec.(*ast.ValueSpec)
			if !ok {
				continue
			}
			for i, name := range valueSpec.Names {
				if !strings.HasPrefix(name.Name, namePrefix) || i >= len(valueSpec.Values) {
					continue
				}
				value, ok := stringLiteralValue(valueSpec.Values[i])
				if !ok || value == "" {
					continue
				}
				out[value] = struct{}{}
			}
		}
	}
}

func repoRoot() (string, error) {
	_, currentFile, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("runtime caller is unavailable")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(currentFile), "..", "..")), nil
}
