package db

import (
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
)

// Dialect builds prepared Postgres statements ($n placeholders).
var Dialect = goqu.Dialect("postgres")

// Select starts a prepared query on table.
func Select(table string) *goqu.SelectDataset {
	return Dialect.From(table).Prepared(true)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ContainsPattern turns free text into an ILIKE pattern matching it
// anywhere. Wildcards typed by the user are matched literally.
func ContainsPattern(s string) string {
	return "%" + likeEscaper.Replace(strings.TrimSpace(s)) + "%"
}
