package dialect

import (
	"strings"
	"testing"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		resolve func() (Dialect, error)
		wantErr bool
	}{
		{"type sqlite", func() (Dialect, error) { return New(SQLite) }, false},
		{"type postgres", func() (Dialect, error) { return New("postgres") }, true},
		{"driver sqlite3", func() (Dialect, error) { return FromDriverName("sqlite3") }, false},
		{"driver mixed case", func() (Dialect, error) { return FromDriverName("SQLite") }, false},
		{"driver mysql", func() (Dialect, error) { return FromDriverName("mysql") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := tt.resolve()
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && (d.Name() != "sqlite" || d.DriverName() != "sqlite") {
				t.Errorf("got %s/%s, want sqlite/sqlite", d.Name(), d.DriverName())
			}
		})
	}
}

func TestSQLite_Statements(t *testing.T) {
	d, _ := New(SQLite)

	q := "SELECT COALESCE(SUM(units), 0) FROM user_usage WHERE user_id = ? AND created_at >= ?"
	if got := d.Rebind(q); got != q {
		t.Errorf("Rebind() = %q", got)
	}
	for _, p := range d.PragmaStatements() {
		if !strings.HasPrefix(p, "PRAGMA ") {
			t.Errorf("statement %q is not a pragma", p)
		}
	}
	if !strings.Contains(d.ColumnExistsQuery(), "pragma_table_info") {
		t.Errorf("ColumnExistsQuery() = %q", d.ColumnExistsQuery())
	}
}
