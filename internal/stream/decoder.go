// Package stream turns a chunked response body into cumulative text snapshots.
package stream

import (
	"bytes"
	"errors"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var replacementChar = []byte(string(utf8.RuneError))

// Decoder converts raw byte chunks into UTF-8 text. A multi-byte character cut
// by a chunk boundary is held back until the rest of it arrives. Malformed
// input is replaced with U+FFFD, never reported as an error.
//
// A Decoder serves a single stream and is not safe for concurrent use.
type Decoder struct {
	t            transform.Transformer
	pending      []byte
	replacements int
}

func NewDecoder() *Decoder {
	return &Decoder{t: unicode.UTF8.NewDecoder()}
}

// Feed decodes chunk, prefixed by any bytes held back from the previous call.
// The result may be empty when chunk only extends an incomplete character.
func (d *Decoder) Feed(chunk []byte) string {
	if len(chunk) == 0 {
		return ""
	}
	src := make([]byte, 0, len(d.pending)+len(chunk))
	src = append(src, d.pending...)
	src = append(src, chunk...)
	return d.decode(src, false)
}

// Finish flushes held-back bytes at end of stream. Anything still pending is
// an incomplete character and decodes to U+FFFD.
func (d *Decoder) Finish() string {
	src := d.pending
	d.pending = nil
	defer d.t.Reset()
	if len(src) == 0 {
		return ""
	}
	return d.decode(src, true)
}

// Replacements is the number of U+FFFD characters the decoder substituted so far.
func (d *Decoder) Replacements() int {
	return d.replacements
}

// Pending is the number of bytes held back waiting for the rest of a character.
func (d *Decoder) Pending() int {
	return len(d.pending)
}

func (d *Decoder) decode(src []byte, atEOF bool) string {
	// Each invalid byte becomes at most one 3-byte replacement.
	dst := make([]byte, len(src)*len(replacementChar)+utf8.UTFMax)
	nDst, nSrc, err := d.t.Transform(dst, src, atEOF)
	if err != nil && !errors.Is(err, transform.ErrShortSrc) {
		// Only reachable if dst sizing is wrong; keep the input rather than drop it.
		nDst = copy(dst, src)
		nSrc = len(src)
	}
	d.pending = append(d.pending[:0], src[nSrc:]...)

	out := dst[:nDst]
	d.replacements += bytes.Count(out, replacementChar) - bytes.Count(src[:nSrc], replacementChar)
	return string(out)
}
