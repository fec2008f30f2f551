// Package scripts embeds the Risor scripts shipped with vsense.
package scripts

import "embed"

// FS holds the bundled scripts, addressed by file name.
//
//go:embed *.risor
var FS embed.FS
