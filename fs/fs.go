// Package appfs exposes embedded project assets (DB migrations).
package appfs

import "embed"

//go:embed migrations
var FS embed.FS
