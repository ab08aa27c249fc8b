package agentchat

import "embed"

// MigrationsFS holds the schema migrations for every supported store,
// one directory per dialect.
//
//go:embed migrations
var MigrationsFS embed.FS
