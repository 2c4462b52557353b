package fsutil

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestScanDirOrdersAndFilters(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"20231220223517_add_column_whatsapp_id_to_contacts.go",
		"20210109192515_add_column_company_id_to_settings.go",
		"20210109192515_add_column_company_id_to_settings_test.go",
		"migrations.go",
		"README.md",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("package migrations\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := ScanDir(dir)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 sources, got %#v", got)
	}
	if got[0].Version != "20210109192515" || got[0].Name != "add_column_company_id_to_settings" {
		t.Fatalf("unexpected first source: %#v", got[0])
	}
	if got[1].Path != filepath.Join(dir, "20231220223517_add_column_whatsapp_id_to_contacts.go") {
		t.Fatalf("unexpected path: %s", got[1].Path)
	}
}

func TestScanDirRejectsDuplicateVersions(t *testing.T) {
	dir := t.TempDir()
	_ = os.WriteFile(filepath.Join(dir, "20210109192515_a.go"), nil, 0o644)
	_ = os.WriteFile(filepath.Join(dir, "20210109192515_b.go"), nil, 0o644)
	if _, err := ScanDir(dir); err == nil {
		t.Fatal("expected duplicate version error")
	}
}

func TestScaffold(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "migrations")
	now := time.Date(2024, 3, 1, 10, 20, 30, 0, time.UTC)

	src, err := Scaffold(dir, "add-column-ticketId-to Messages", now)
	if err != nil {
		t.Fatalf("scaffold: %v", err)
	}
	if src.Version != "20240301102030" || src.Name != "add_column_ticket_id_to_messages" {
		t.Fatalf("unexpected source: %#v", src)
	}
	body, err := os.ReadFile(src.Path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"package migrations",
		`ID:   "20240301102030-add-column-ticketId-to-Messages"`,
		"Registry.Register(AddColumnTicketIdToMessages)",
		"func Down_20240301102030(",
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("generated file missing %q:\n%s", want, body)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "20240301102030_add_column_ticket_id_to_messages_test.go")); err != nil {
		t.Fatalf("test file: %v", err)
	}

	if _, err := Scaffold(dir, "again", now); !errors.Is(err, ErrVersionExists) {
		t.Fatalf("expected ErrVersionExists, got %v", err)
	}
	if _, err := Scaffold(dir, "  !!  ", now.Add(time.Second)); err == nil {
		t.Fatal("expected invalid name error")
	}
}

func TestSnake(t *testing.T) {
	cases := map[string]string{
		"add-column-companyId-to-Settings-table": "add_column_company_id_to_settings_table",
		"AddUsers":                               "add_users",
		"already_snake":                          "already_snake",
		"  spaced  out ":                         "spaced_out",
	}
	for in, want := range cases {
		if got := Snake(in); got != want {
			t.Errorf("Snake(%q) = %q, want %q", in, got, want)
		}
	}
}
