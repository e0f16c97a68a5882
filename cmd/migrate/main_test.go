package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestVersionFromFile(t *testing.T) {
	tests := []struct {
		name    string
		want    int64
		wantErr bool
	}{
		{"001_init.up.sql", 1, false},
		{"012_add_index.down.sql", 12, false},
		{"init.sql", 0, true},
		{"abc_init.up.sql", 0, true},
	}
	for _, tc := range tests {
		got, err := versionFromFile(tc.name)
		if (err != nil) != tc.wantErr || got != tc.want {
			t.Errorf("versionFromFile(%q) = %d, %v", tc.name, got, err)
		}
	}
}

func TestCollect_pairsAndOrders(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002_b.up.sql", "001_a.down.sql", "001_a.up.sql", "README.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	got, err := collect(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 migrations, got %+v", got)
	}
	if got[0].version != 1 || got[0].up != "001_a.up.sql" || got[0].down != "001_a.down.sql" {
		t.Errorf("first migration: %+v", got[0])
	}
	if got[1].version != 2 || got[1].down != "" {
		t.Errorf("second migration: %+v", got[1])
	}
}
