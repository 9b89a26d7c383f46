// internal/palette/palette.go
//
// Signal set definition for the game board.
//
// Responsibilities:
//   - Load signal specs from a file (SIMON_SIGNALS_FILE) or the embedded
//     classic palette.
//   - Validate names, colors and tone frequencies.
//   - Supply lookups used by the HTTP layer to validate player input.
//
// File format, one signal per line, blank lines and `#` comments ignored:
//
//	name  color  active_color  tone_hz
//
// Constraints:
//   • Names are lowercase letters, digits, '-' or '_' and must be unique.
//   • Colors must start with '#'.
//   • Tone frequency must be a positive number.

package palette

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/itxchy/simon/assets"
	"github.com/itxchy/simon/internal/simon"
)

// ErrEmpty is returned when a palette defines no signals.
var ErrEmpty = errors.New("palette: no signals")

// Spec describes how one signal looks and sounds.
type Spec struct {
	Name        simon.Signal `json:"name"`
	Color       string       `json:"color"`
	ActiveColor string       `json:"activeColor"`
	ToneHz      float64      `json:"toneHz"`
}

// Palette is an ordered, validated set of signal specs.
type Palette struct {
	specs  []Spec
	byName map[simon.Signal]Spec
}

// Default returns the embedded classic palette.
func Default() (*Palette, error) {
	f, err := assets.ClassicPalette()
	if err != nil {
		return nil, fmt.Errorf("open embedded palette: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Load reads the palette at path, or the embedded default when path is empty.
func Load(path string) (*Palette, error) {
	if path == "" {
		return Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open palette %s: %w", path, err)
	}
	defer f.Close()
	p, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("palette %s: %w", path, err)
	}
	return p, nil
}

// Parse reads a palette in the line format described above.
func Parse(r io.Reader) (*Palette, error) {
	p := &Palette{byName: map[simon.Signal]Spec{}}
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		spec, err := parseLine(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if _, dup := p.byName[spec.Name]; dup {
			return nil, fmt.Errorf("line %d: duplicate signal %q", line, spec.Name)
		}
		p.specs = append(p.specs, spec)
		p.byName[spec.Name] = spec
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(p.specs) == 0 {
		return nil, ErrEmpty
	}
	return p, nil
}

func parseLine(text string) (Spec, error) {
	f := strings.Fields(text)
	if len(f) != 4 {
		return Spec{}, fmt.Errorf("want 4 fields, got %d", len(f))
	}
	name := strings.ToLower(f[0])
	if !validName(name) {
		return Spec{}, fmt.Errorf("invalid signal name %q", f[0])
	}
	for _, c := range f[1:3] {
		if !strings.HasPrefix(c, "#") || len(c) < 2 {
			return Spec{}, fmt.Errorf("invalid color %q", c)
		}
	}
	hz, err := strconv.ParseFloat(f[3], 64)
	if err != nil || hz <= 0 {
		return Spec{}, fmt.Errorf("invalid tone frequency %q", f[3])
	}
	return Spec{Name: simon.Signal(name), Color: f[1], ActiveColor: f[2], ToneHz: hz}, nil
}

// validName reports whether s is a non-empty [a-z0-9_-] identifier.
func validName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' || r == '-') {
			return false
		}
	}
	return true
}

// Specs returns the specs in file order.
func (p *Palette) Specs() []Spec { return append([]Spec(nil), p.specs...) }

// Signals returns the signal names in file order.
func (p *Palette) Signals() []simon.Signal {
	out := make([]simon.Signal, len(p.specs))
	for i, s := range p.specs {
		out[i] = s.Name
	}
	return out
}

// Lookup finds a spec by name (case-insensitive).
func (p *Palette) Lookup(name string) (Spec, bool) {
	s, ok := p.byName[simon.Signal(strings.ToLower(strings.TrimSpace(name)))]
	return s, ok
}
