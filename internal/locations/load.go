package locations

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"

	"github.com/jackc/pgx/v5"
	"gopkg.in/yaml.v3"
)

//go:embed locations.yaml
var defaultYAML []byte

type catalogFile struct {
	Departamentos []Department `yaml:"departamentos"`
}

// LoadYAML parses a catalog document with a top-level "departamentos" list.
func LoadYAML(r io.Reader) (*Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f catalogFile
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, ErrEmptyCatalog
		}
		return nil, fmt.Errorf("decode locations: %w", err)
	}
	return NewCatalog(f.Departamentos)
}

// LoadFile reads the catalog at path, or the embedded default when path is empty.
func LoadFile(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open locations file: %w", err)
	}
	defer f.Close()

	c, err := LoadYAML(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return LoadYAML(bytes.NewReader(defaultYAML))
}

// Querier is the subset of *pgxpool.Pool and pgx.Tx used to read locations.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// municipalitiesQuery reads one row per municipality, grouped by department.
const municipalitiesQuery = `
SELECT departamento, municipio
FROM municipios
ORDER BY departamento_orden, departamento, municipio_orden, municipio`

// LoadPostgres reads the catalog from the municipios table.
func LoadPostgres(ctx context.Context, q Querier) (*Catalog, error) {
	rows, err := q.Query(ctx, municipalitiesQuery)
	if err != nil {
		return nil, fmt.Errorf("query municipios: %w", err)
	}
	defer rows.Close()

	var deps []Department
	pos := make(map[string]int)
	for rows.Next() {
		var dep, mun string
		if err := rows.Scan(&dep, &mun); err != nil {
			return nil, fmt.Errorf("scan municipio: %w", err)
		}
		i, ok := pos[dep]
		if !ok {
			i = len(deps)
			pos[dep] = i
			deps = append(deps, Department{Name: dep})
		}
		deps[i].Municipalities = append(deps[i].Municipalities, mun)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read municipios: %w", err)
	}

	return NewCatalog(deps)
}
