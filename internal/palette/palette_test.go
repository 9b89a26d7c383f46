package palette

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/itxchy/simon/internal/simon"
)

func TestDefaultIsClassic(t *testing.T) {
	p, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	want := []simon.Signal{"nw", "ne", "sw", "se"}
	if got := p.Signals(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Signals() = %v, want %v", got, want)
	}
	se, ok := p.Lookup(" SE ")
	if !ok {
		t.Fatal("Lookup(SE) failed")
	}
	if se.ToneHz != 783.99 || se.Color != "#00F" || se.ActiveColor != "#99F" {
		t.Fatalf("se spec = %+v", se)
	}
	if _, ok := p.Lookup("center"); ok {
		t.Fatal("Lookup(center) should fail")
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"fields", "nw #080 440\n", "want 4 fields"},
		{"name", "n w! #080 #8B8 440\n", "want 4 fields"},
		{"bad name", "n@w #080 #8B8 440\n", "invalid signal name"},
		{"color", "nw 080 #8B8 440\n", "invalid color"},
		{"hz", "nw #080 #8B8 -1\n", "invalid tone frequency"},
		{"dup", "nw #080 #8B8 440\nNW #080 #8B8 440\n", "duplicate signal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tc.input))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Parse error = %v, want containing %q", err, tc.want)
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	_, err := Parse(strings.NewReader("# only a comment\n\n"))
	if !errors.Is(err, ErrEmpty) {
		t.Fatalf("got %v, want ErrEmpty", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "five.palette")
	body := "red #F00 #FAA 300\ngreen #0F0 #AFA 400\nblue #00F #AAF 500\nyellow #FF0 #FFA 600\nwhite #FFF #EEE 700\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n := len(p.Specs()); n != 5 {
		t.Fatalf("loaded %d specs, want 5", n)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("Load of missing file should fail")
	}
	if p, err := Load(""); err != nil || len(p.Signals()) != 4 {
		t.Fatalf("Load(\"\") = %v, %v; want classic palette", p, err)
	}
}
