// Package chunker splits long text into pieces small enough for one model request
// or one memory.
package chunker

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxSize is the chunk size in bytes when none is given.
const DefaultMaxSize = 6000

// Chunk is a piece of the input with its 1-based inclusive line range.
type Chunk struct {
	Text      string `json:"text" yaml:"text"`
	StartLine int    `json:"start_line" yaml:"start_line"`
	EndLine   int    `json:"end_line" yaml:"end_line"`
}

// Lines packs whole lines into chunks of at most maxSize bytes, joined by newlines.
// A single line longer than maxSize is cut on rune boundaries and spans several chunks.
func Lines(lines []string, maxSize int) []Chunk {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	var (
		out     []Chunk
		current []string
		size    int
		start   = 1
	)
	flush := func(end int) {
		if len(current) == 0 {
			return
		}
		out = append(out, Chunk{Text: strings.Join(current, "\n"), StartLine: start, EndLine: end})
		current, size = nil, 0
	}

	for i, line := range lines {
		n := i + 1
		if len(line) > maxSize {
			flush(n - 1)
			for _, piece := range cut(line, maxSize) {
				out = append(out, Chunk{Text: piece, StartLine: n, EndLine: n})
			}
			start = n + 1
			continue
		}
		extra := len(line)
		if len(current) > 0 {
			extra++
		}
		if size+extra > maxSize {
			flush(n - 1)
			start = n
			extra = len(line)
		}
		if len(current) == 0 {
			start = n
		}
		current = append(current, line)
		size += extra
	}
	flush(len(lines))
	return out
}

// Markdown splits text on headings and blank-line runs, then packs the blocks
// into chunks of at most maxSize bytes. Short text is returned as one chunk.
func Markdown(text string, maxSize int) []Chunk {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= maxSize {
		return []Chunk{{Text: text, StartLine: 1, EndLine: strings.Count(text, "\n") + 1}}
	}

	var out []Chunk
	var acc *Chunk
	for _, b := range blocks(text) {
		if len(b.Text) > maxSize {
			if acc != nil {
				out = append(out, *acc)
				acc = nil
			}
			for _, c := range Lines(strings.Split(b.Text, "\n"), maxSize) {
				c.StartLine += b.StartLine - 1
				c.EndLine += b.StartLine - 1
				out = append(out, c)
			}
			continue
		}
		if acc != nil && len(acc.Text)+2+len(b.Text) <= maxSize {
			acc.Text += "\n\n" + b.Text
			acc.EndLine = b.EndLine
			continue
		}
		if acc != nil {
			out = append(out, *acc)
		}
		blk := b
		acc = &blk
	}
	if acc != nil {
		out = append(out, *acc)
	}
	return out
}

// blocks splits on heading lines and on blank lines following a blank line.
// Line ranges cover the first through last non-blank line of each block.
func blocks(text string) []Chunk {
	var (
		out         []Chunk
		current     []string
		first, last int
		prevEmpty   bool
	)
	flush := func() {
		if first > 0 {
			out = append(out, Chunk{Text: strings.TrimSpace(strings.Join(current, "\n")), StartLine: first, EndLine: last})
		}
		current, first, last = nil, 0, 0
	}

	for i, line := range strings.Split(text, "\n") {
		n := i + 1
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") || (trimmed == "" && prevEmpty) {
			flush()
		}
		prevEmpty = trimmed == ""
		if trimmed == "" {
			if first > 0 {
				current = append(current, line)
			}
			continue
		}
		if first == 0 {
			first = n
		}
		last = n
		current = append(current, line)
	}
	flush()
	return out
}

func cut(s string, maxSize int) []string {
	var out []string
	for len(s) > maxSize {
		n := maxSize
		for n > 0 && !utf8.RuneStart(s[n]) {
			n--
		}
		if n == 0 {
			n = maxSize
		}
		out = append(out, s[:n])
		s = s[n:]
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}
