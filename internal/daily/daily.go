// internal/daily/daily.go
//
// Daily challenge sequences.
// Every session started on the same UTC date with the same salt draws the
// same target sequence, so players can compare runs on "today's" game.
//
// Derivation:
//   key    = HMAC-SHA256(salt, "YYYY-MM-DD")
//   stream = HKDF-SHA256(key, info="simon-daily/<block>"), block 0, 1, ...
//   pick   = uniform index from 8-byte draws with rejection sampling

package daily

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"io"
	"math"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/hkdf"
)

// DateKey returns YYYY-MM-DD in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Key returns HMAC(salt, DateKey(date)).
func Key(date time.Time, salt string) []byte {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(DateKey(date)))
	return h.Sum(nil)
}

// Picker draws a deterministic index stream for one date.
// It satisfies simon.Picker.
type Picker struct {
	mu    sync.Mutex
	key   []byte
	block int
	r     io.Reader
}

// NewPicker returns the picker for date and salt.
func NewPicker(date time.Time, salt string) *Picker {
	p := &Picker{key: Key(date, salt)}
	p.r = p.stream(0)
	return p
}

func (p *Picker) stream(block int) io.Reader {
	return hkdf.Expand(sha256.New, p.key, []byte("simon-daily/"+strconv.Itoa(block)))
}

// Pick returns an index in [0, n). n must be positive.
func (p *Picker) Pick(n int) int {
	if n <= 1 {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	bound := math.MaxUint64 - math.MaxUint64%uint64(n)
	for {
		v := p.next()
		if v < bound {
			return int(v % uint64(n))
		}
	}
}

// next reads 8 bytes, moving to the next HKDF block when one runs out.
func (p *Picker) next() uint64 {
	var b [8]byte
	for {
		if _, err := io.ReadFull(p.r, b[:]); err == nil {
			return binary.BigEndian.Uint64(b[:])
		}
		p.block++
		p.r = p.stream(p.block)
	}
}
