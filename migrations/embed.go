package migrations

import "embed"

// Files holds the SQL migrations so binaries can migrate without a checkout.
//
//go:embed *.sql
var Files embed.FS
