// Package appfs embeds the files shipped with the binaries: SQL migrations and assets (email templates, password lists).
package appfs

import "embed"

//go:embed migrations all:assets
var FS embed.FS
