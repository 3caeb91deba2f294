package postgres

import (
	"errors"
	"strings"
	"testing"
	"testing/fstest"
)

func migrationFS(files map[string]string) fstest.MapFS {
	fsys := fstest.MapFS{}
	for name, body := range files {
		fsys[migrationsDir+"/"+name] = &fstest.MapFile{Data: []byte(body)}
	}
	return fsys
}

func versions(plan []migration) []int64 {
	out := make([]int64, 0, len(plan))
	for _, m := range plan {
		out = append(out, m.Version)
	}
	return out
}

func equalVersions(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestParseMigrations(t *testing.T) {
	t.Parallel()

	all, err := parseMigrations(migrationFS(map[string]string{
		"0002_stock.up.sql":    "ALTER TABLE products ADD COLUMN stock INT;",
		"0002_stock.down.sql":  "ALTER TABLE products DROP COLUMN stock;",
		"0001_orders.up.sql":   "CREATE TABLE orders (id TEXT);",
		"0001_orders.down.sql": "DROP TABLE orders;",
	}))
	if err != nil {
		t.Fatalf("parseMigrations: %v", err)
	}
	if !equalVersions(versions(all), []int64{1, 2}) {
		t.Fatalf("migrations must be sorted by version: %v", versions(all))
	}
	if all[0].Name != "orders" || all[1].Name != "stock" {
		t.Fatalf("unexpected names: %q, %q", all[0].Name, all[1].Name)
	}
	if len(all[0].Checksum) != 64 || all[0].Checksum == all[1].Checksum {
		t.Fatalf("each migration needs its own sha256 checksum: %q %q", all[0].Checksum, all[1].Checksum)
	}
}

func TestParseMigrations_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		files   map[string]string
		wantErr string
	}{
		{
			name:    "missing down",
			files:   map[string]string{"0001_orders.up.sql": "SELECT 1;"},
			wantErr: "both up and down",
		},
		{
			name:    "bad file name",
			files:   map[string]string{"orders.sql": "SELECT 1;"},
			wantErr: "invalid migration file name",
		},
		{
			name: "blank body",
			files: map[string]string{
				"0001_orders.up.sql":   " \n\t",
				"0001_orders.down.sql": "SELECT 1;",
			},
			wantErr: "empty",
		},
		{
			name: "conflicting names",
			files: map[string]string{
				"0001_orders.up.sql":     "SELECT 1;",
				"0001_products.down.sql": "SELECT 1;",
			},
			wantErr: "conflicting names",
		},
		{
			name:    "no files",
			files:   map[string]string{},
			wantErr: "migrations dir",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseMigrations(migrationFS(tt.files))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestPlanUp(t *testing.T) {
	t.Parallel()

	all := []migration{
		{Version: 1, Name: "orders", Checksum: "a"},
		{Version: 2, Name: "products", Checksum: "b"},
		{Version: 3, Name: "outbox", Checksum: "c"},
	}
	applied := map[int64]appliedMigration{1: {Version: 1, Checksum: "a"}}

	plan, err := planUp(all, applied, 0)
	if err != nil || !equalVersions(versions(plan), []int64{2, 3}) {
		t.Fatalf("up all: got %v, %v", versions(plan), err)
	}

	plan, err = planUp(all, applied, 1)
	if err != nil || !equalVersions(versions(plan), []int64{2}) {
		t.Fatalf("up one step: got %v, %v", versions(plan), err)
	}

	// Записи без checksum остались от старого формата таблицы.
	plan, err = planUp(all, map[int64]appliedMigration{1: {Version: 1}}, 0)
	if err != nil || len(plan) != 2 {
		t.Fatalf("legacy rows must not be treated as drift: %v, %v", versions(plan), err)
	}

	_, err = planUp(all, map[int64]appliedMigration{2: {Version: 2, Checksum: "edited"}}, 0)
	if !errors.Is(err, ErrMigrationDrift) {
		t.Fatalf("expected drift error, got %v", err)
	}
}

func TestPlanDown(t *testing.T) {
	t.Parallel()

	all := []migration{{Version: 1}, {Version: 2}, {Version: 3}}
	applied := map[int64]appliedMigration{1: {Version: 1}, 2: {Version: 2}, 3: {Version: 3}}

	plan, err := planDown(all, applied, 2)
	if err != nil || !equalVersions(versions(plan), []int64{3, 2}) {
		t.Fatalf("down two: got %v, %v", versions(plan), err)
	}

	plan, err = planDown(all, applied, 0)
	if err != nil || !equalVersions(versions(plan), []int64{3}) {
		t.Fatalf("down default must roll back one: got %v, %v", versions(plan), err)
	}

	plan, err = planDown(all, nil, 5)
	if err != nil || len(plan) != 0 {
		t.Fatalf("down on empty state must be a no-op: got %v, %v", versions(plan), err)
	}

	if _, err := planDown(all[:1], map[int64]appliedMigration{7: {Version: 7}}, 1); err == nil {
		t.Fatal("expected error for unknown applied version")
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	t.Parallel()

	all, err := parseMigrations(migrationsFS)
	if err != nil {
		t.Fatalf("embedded migrations must load: %v", err)
	}
	if len(all) != 3 || all[0].Name != "orders" || all[1].Name != "products" || all[2].Name != "outbox_delivery" {
		t.Fatalf("unexpected embedded migrations: %+v", versions(all))
	}
	if !strings.Contains(all[1].Up, "products_stock_check") {
		t.Fatal("products migration must enforce non-negative stock")
	}
}
