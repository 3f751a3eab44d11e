// Package migrations carries the goose SQL migrations embedded into
// the binary so a fresh deployment bootstraps its own schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
