package locations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestDefault(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if got := c.Len(); got != 22 {
		t.Errorf("Len() = %d, want 22 departments", got)
	}
	if !c.Contains("Guatemala", "Mixco") {
		t.Error("Contains(Guatemala, Mixco) = false")
	}
	if c.Contains("Guatemala", "Antigua Guatemala") {
		t.Error("Antigua Guatemala belongs to Sacatepéquez, not Guatemala")
	}
	// A municipality may share its name with another department.
	if !c.Contains("Jutiapa", "El Progreso") || !c.HasDepartment("El Progreso") {
		t.Error("El Progreso should be both a Jutiapa municipality and a department")
	}
}

func TestLoadYAML(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name: "valid",
			doc: `departamentos:
  - nombre: " Zacapa "
    municipios: [Zacapa, Gualán]
  - nombre: Izabal
    municipios: [Puerto Barrios]`,
		},
		{name: "empty document", doc: "", wantErr: "empty"},
		{name: "unknown field", doc: "paises: []", wantErr: "paises"},
		{
			name: "duplicate department",
			doc: `departamentos:
  - {nombre: Izabal, municipios: [Morales]}
  - {nombre: Izabal, municipios: [Livingston]}`,
			wantErr: "duplicate",
		},
		{
			name:    "department without municipalities",
			doc:     `departamentos: [{nombre: Petén, municipios: []}]`,
			wantErr: "no municipalities",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := LoadYAML(strings.NewReader(tt.doc))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("LoadYAML() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadYAML() error = %v", err)
			}
			if diff := cmp.Diff([]string{"Zacapa", "Izabal"}, c.Departments()); diff != "" {
				t.Errorf("Departments() mismatch (-want +got):\n%s", diff)
			}
			muns, ok := c.Municipalities("Zacapa")
			if !ok || !cmp.Equal(muns, []string{"Zacapa", "Gualán"}) {
				t.Errorf("Municipalities(Zacapa) = %v, %v", muns, ok)
			}
		})
	}
}

func TestMunicipalities_ReturnsCopy(t *testing.T) {
	c, err := NewCatalog([]Department{{Name: "Jalapa", Municipalities: []string{"Jalapa", "Monjas"}}})
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}

	muns, _ := c.Municipalities("Jalapa")
	muns[0] = "Otro"

	if again, _ := c.Municipalities("Jalapa"); again[0] != "Jalapa" {
		t.Error("Municipalities() exposed internal slice")
	}
	if _, ok := c.Municipalities("Nowhere"); ok {
		t.Error("Municipalities(unknown) ok = true")
	}
}

// fakeRows implements pgx.Rows over in-memory pairs.
type fakeRows struct {
	data   [][2]string
	pos    int
	err    error
	closed bool
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	if len(dest) != 2 {
		return fmt.Errorf("want 2 destinations, got %d", len(dest))
	}
	row := r.data[r.pos-1]
	*dest[0].(*string) = row[0]
	*dest[1].(*string) = row[1]
	return nil
}

func (r *fakeRows) Values() ([]any, error) {
	row := r.data[r.pos-1]
	return []any{row[0], row[1]}, nil
}

type fakeQuerier struct {
	rows *fakeRows
	err  error
	sql  string
}

func (q *fakeQuerier) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	q.sql = sql
	if q.err != nil {
		return nil, q.err
	}
	return q.rows, nil
}

func TestLoadPostgres(t *testing.T) {
	rows := &fakeRows{data: [][2]string{
		{"Sololá", "Sololá"},
		{"Sololá", "Panajachel"},
		{"Jalapa", "Jalapa"},
		{"Sololá", "Santiago Atitlán"},
	}}
	q := &fakeQuerier{rows: rows}

	c, err := LoadPostgres(context.Background(), q)
	if err != nil {
		t.Fatalf("LoadPostgres() error = %v", err)
	}
	if !rows.closed {
		t.Error("rows were not closed")
	}
	if !strings.Contains(q.sql, "FROM municipios") {
		t.Errorf("unexpected query: %s", q.sql)
	}

	want := []Department{
		{Name: "Sololá", Municipalities: []string{"Sololá", "Panajachel", "Santiago Atitlán"}},
		{Name: "Jalapa", Municipalities: []string{"Jalapa"}},
	}
	if diff := cmp.Diff(want, c.All()); diff != "" {
		t.Errorf("All() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadPostgres_Errors(t *testing.T) {
	boom := errors.New("connection reset")

	if _, err := LoadPostgres(context.Background(), &fakeQuerier{err: boom}); !errors.Is(err, boom) {
		t.Errorf("query failure: error = %v, want wrapped %v", err, boom)
	}

	rows := &fakeRows{data: [][2]string{{"Jalapa", "Jalapa"}}, err: boom}
	if _, err := LoadPostgres(context.Background(), &fakeQuerier{rows: rows}); !errors.Is(err, boom) {
		t.Errorf("rows failure: error = %v, want wrapped %v", err, boom)
	}

	if _, err := LoadPostgres(context.Background(), &fakeQuerier{rows: &fakeRows{}}); !errors.Is(err, ErrEmptyCatalog) {
		t.Errorf("empty table: error = %v, want ErrEmptyCatalog", err)
	}
}
