// assets/embed.go
//
// Embedded default data for the Simon server.
//   - classic.palette: the four signals of the classic game with their
//     idle/active colors and tone frequencies.

package assets

import (
	"embed"
	"io"
)

//go:embed classic.palette
var FS embed.FS

// ClassicPalette opens the embedded classic palette.
func ClassicPalette() (io.ReadCloser, error) {
	return FS.Open("classic.palette")
}
