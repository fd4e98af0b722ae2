package stream

import (
	"context"
	"errors"
	"io"
	"strings"
)

// Assembler folds the chunks of one Source into a growing message. Every
// call to Next pulls from the source until the decoded text grows, then
// returns the full content so far. Snapshots therefore strictly increase in
// length and follow source order.
//
// An Assembler is single-use: once it has returned io.EOF or an error, every
// later call returns the same error.
type Assembler struct {
	src     Source
	decoder *Decoder
	// strings.Builder avoids quadratic copies as the message grows
	content strings.Builder
	chunks  int
	err     error
}

func NewAssembler(src Source) *Assembler {
	return &Assembler{
		src:     src,
		decoder: NewDecoder(),
	}
}

// Next returns the next cumulative snapshot, io.EOF when the source is
// exhausted, or the source's read error.
func (a *Assembler) Next(ctx context.Context) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	for {
		chunk, err := a.src.Next(ctx)
		if errors.Is(err, io.EOF) {
			a.err = io.EOF
			// Trailing incomplete bytes still count as content.
			if tail := a.decoder.Finish(); tail != "" {
				a.content.WriteString(tail)
				return a.content.String(), nil
			}
			return "", io.EOF
		}
		if err != nil {
			a.err = err
			a.decoder.Finish()
			return "", err
		}
		a.chunks++
		if fragment := a.decoder.Feed(chunk); fragment != "" {
			a.content.WriteString(fragment)
			return a.content.String(), nil
		}
	}
}

// Content is the message assembled so far.
func (a *Assembler) Content() string {
	return a.content.String()
}

// Chunks is the number of chunks pulled from the source.
func (a *Assembler) Chunks() int {
	return a.chunks
}

// Replacements reports how many malformed sequences were substituted.
func (a *Assembler) Replacements() int {
	return a.decoder.Replacements()
}
