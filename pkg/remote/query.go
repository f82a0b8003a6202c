package remote

import (
	"fmt"
	"regexp"
	"strings"
	"text/template"
)

var (
	latestTmpl = template.Must(template.New("SelectLatest").Parse(`
		SELECT max(timestamp) FROM {{.Table}}
	`))
	existsTmpl = template.Must(template.New("SelectExists").Parse(`
		SELECT EXISTS (
			SELECT 1 FROM {{.Table}} WHERE timestamp = $1 AND sensor = $2
		)
	`))
	insertTmpl = template.Must(template.New("InsertReading").Parse(`
		INSERT INTO {{.Table}} (timestamp, sensor, value, unit, meta)
		VALUES ($1, $2, $3, $4, $5)
	`))
	schemaTmpl = template.Must(template.New("CreateSchema").Parse(`
		CREATE TABLE IF NOT EXISTS {{.Table}} (
			id BIGSERIAL PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL DEFAULT now(),
			sensor TEXT NOT NULL,
			value DOUBLE PRECISION,
			unit TEXT,
			meta JSONB,
			UNIQUE (timestamp, sensor)
		);
		CREATE INDEX IF NOT EXISTS {{.Table}}_timestamp_idx ON {{.Table}} (timestamp)
	`))
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type tmplValues struct {
	Table string
}

// Queries holds the SQL statements for one readings table.
type Queries struct {
	Latest string
	Exists string
	Insert string
	Schema string
}

// BuildQueries renders the statements for table.
func BuildQueries(table string) (Queries, error) {
	if !identifier.MatchString(table) {
		return Queries{}, fmt.Errorf("invalid table name: %q", table)
	}
	v := tmplValues{Table: table}
	var (
		q   Queries
		err error
	)
	if q.Latest, err = render(latestTmpl, v); err != nil {
		return Queries{}, err
	}
	if q.Exists, err = render(existsTmpl, v); err != nil {
		return Queries{}, err
	}
	if q.Insert, err = render(insertTmpl, v); err != nil {
		return Queries{}, err
	}
	if q.Schema, err = render(schemaTmpl, v); err != nil {
		return Queries{}, err
	}
	return q, nil
}

func render(tmpl *template.Template, v tmplValues) (string, error) {
	b := new(strings.Builder)
	if err := tmpl.Execute(b, v); err != nil {
		return "", err
	}
	return b.String(), nil
}

func CleanForLogging(query string) string {
	r := regexp.MustCompile(`\s+`)
	return strings.TrimSpace(r.ReplaceAllString(query, " "))
}
