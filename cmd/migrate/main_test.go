package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNextMigrationVersion(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		want     int
	}{
		{
			name: "empty directory",
			want: 1,
		},
		{
			name:     "one migration",
			existing: []string{"000001_init.up.sql", "000001_init.down.sql"},
			want:     2,
		},
		{
			name: "two migrations",
			existing: []string{
				"000001_init.up.sql", "000001_init.down.sql",
				"000002_add_index.up.sql", "000002_add_index.down.sql",
			},
			want: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, f := range tt.existing {
				if err := os.WriteFile(filepath.Join(dir, f), []byte("-- sql\n"), 0644); err != nil {
					t.Fatalf("write %s: %v", f, err)
				}
			}

			got, err := nextMigrationVersion(dir)
			if err != nil {
				t.Fatalf("nextMigrationVersion() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("nextMigrationVersion() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNextMigrationVersion_MissingDir(t *testing.T) {
	if _, err := nextMigrationVersion(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected an error for a missing directory")
	}
}

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()

	createMigration(dir, "add_rounds")

	for _, f := range []string{"000001_add_rounds.up.sql", "000001_add_rounds.down.sql"} {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			t.Errorf("expected %s to exist: %v", f, err)
		}
	}
}
