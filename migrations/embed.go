// Package migrations embeds the run journal schema into the binary.
package migrations

import "embed"

// FS holds the NNNN_name.(up|down).sql files, at its root.
//
//go:embed *.sql
var FS embed.FS
