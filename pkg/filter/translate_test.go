package filter

import (
	"strings"
	"testing"

	"github.com/sql2ldap/sql2ldap/pkg/mapping"
)

func mustTable(t *testing.T, m map[string]string) *mapping.Table {
	t.Helper()
	tbl, err := mapping.Build(m)
	if err != nil {
		t.Fatalf("mapping.Build: %v", err)
	}
	return tbl
}

func TestTranslateEquality(t *testing.T) {
	tbl := mustTable(t, map[string]string{
		"cn":          "CAST(id AS TEXT)",
		"objectClass": "'inetOrgPerson'",
		"sn":          "surname",
	})

	sql, params, err := Translate(Equality("sn", "Smith"), tbl)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if sql != "(surname) = $1" {
		t.Errorf("sql = %q", sql)
	}
	if len(params) != 1 || params[0] != "Smith" {
		t.Errorf("params = %v", params)
	}
}

func TestTranslateUnknownAttributeIsConstantFalse(t *testing.T) {
	tbl := mustTable(t, map[string]string{"cn": "id::text", "objectClass": "'x'"})

	sql, params, err := Translate(Present("department"), tbl)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if sql != "FALSE" {
		t.Errorf("sql = %q, want FALSE", sql)
	}
	if len(params) != 0 {
		t.Errorf("expected no params, got %v", params)
	}
}

func TestTranslateAndOrEmptiness(t *testing.T) {
	tbl := mustTable(t, map[string]string{"cn": "id::text", "objectClass": "'x'"})

	sql, _, err := Translate(And(), tbl)
	if err != nil || sql != "TRUE" {
		t.Errorf("empty And: sql=%q err=%v", sql, err)
	}

	sql, _, err = Translate(Or(), tbl)
	if err != nil || sql != "FALSE" {
		t.Errorf("empty Or: sql=%q err=%v", sql, err)
	}
}

func TestTranslateCompoundFilter(t *testing.T) {
	tbl := mustTable(t, map[string]string{
		"cn":          "id::text",
		"objectClass": "'x'",
		"o":           "org",
		"sn":          "surname",
	})

	f := And(
		Equality("o", "Company Co."),
		Substring("sn", &SubstringParts{Initial: "Kar", HasInitial: true}),
	)

	sql, params, err := Translate(f, tbl)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if !strings.Contains(sql, "(org) = $1") || !strings.Contains(sql, "(surname) LIKE $2") {
		t.Errorf("sql = %q", sql)
	}
	if len(params) != 2 || params[0] != "Company Co." || params[1] != "Kar%" {
		t.Errorf("params = %v", params)
	}
}

func TestTranslateSubstringEscaping(t *testing.T) {
	tbl := mustTable(t, map[string]string{"cn": "id::text", "objectClass": "'x'", "a": "a"})

	f := Substring("a", &SubstringParts{Any: []string{"100%_done\\now"}})
	_, params, err := Translate(f, tbl)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	want := `%100\%\_done\\now%`
	if params[0] != want {
		t.Errorf("params[0] = %q, want %q", params[0], want)
	}
}

func TestTranslateZeroPartSubstringIsPresent(t *testing.T) {
	tbl := mustTable(t, map[string]string{"cn": "id::text", "objectClass": "'x'", "a": "col_a"})

	sql, params, err := Translate(Substring("a", &SubstringParts{}), tbl)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if sql != "(col_a) IS NOT NULL" {
		t.Errorf("sql = %q", sql)
	}
	if len(params) != 0 {
		t.Errorf("expected no params, got %v", params)
	}
}

func TestTranslateExtensibleMatchRejected(t *testing.T) {
	tbl := mustTable(t, map[string]string{"cn": "id::text", "objectClass": "'x'"})

	if _, _, err := Translate(ExtensibleMatch(), tbl); err != ErrExtensibleMatch {
		t.Errorf("expected ErrExtensibleMatch, got %v", err)
	}
}

func TestTranslateNot(t *testing.T) {
	tbl := mustTable(t, map[string]string{"cn": "id::text", "objectClass": "'x'", "a": "a"})

	sql, _, err := Translate(Not(Present("a")), tbl)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if sql != "NOT ((a) IS NOT NULL)" {
		t.Errorf("sql = %q", sql)
	}
}

func TestTranslatePlaceholderOrderMatchesParamCount(t *testing.T) {
	tbl := mustTable(t, map[string]string{
		"cn": "id::text", "objectClass": "'x'", "a": "a", "b": "b", "c": "c",
	})

	f := And(
		Equality("a", "1"),
		Or(GreaterOrEqual("b", "2"), LessOrEqual("c", "3")),
	)
	sql, params, err := Translate(f, tbl)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if len(params) != 3 {
		t.Fatalf("expected 3 params, got %d", len(params))
	}
	for i := 1; i <= 3; i++ {
		placeholder := "$" + string(rune('0'+i))
		if !strings.Contains(sql, placeholder) {
			t.Errorf("sql missing placeholder %s: %q", placeholder, sql)
		}
	}
}
