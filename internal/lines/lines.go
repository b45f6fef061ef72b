// Package lines implements the input validator (spec §4.1): it verifies
// that grammar bytes lie in the allowed character set and builds a line
// index mapping byte offsets to (line, column) for diagnostics.
package lines

import (
	"github.com/ldthomas/apg-go/internal/errs"
)

// Ending identifies which line-terminator style ended a line.
type Ending int

const (
	// NoEnding marks the final line of input when it has no terminator —
	// always an error (spec §4.1, decided in SPEC_FULL.md §D.2).
	NoEnding Ending = iota
	CRLF
	LF
	CR
)

func (e Ending) String() string {
	switch e {
	case CRLF:
		return "CRLF"
	case LF:
		return "LF"
	case CR:
		return "CR"
	default:
		return "none"
	}
}

// Line records one physical line of the grammar: its byte range in the
// original input and which terminator ended it.
type Line struct {
	Offset int // byte offset of the first character of the line
	Length int // number of content bytes, excluding the terminator
	Ending Ending
}

// Index maps byte offsets in validated grammar bytes to (line, column) and
// back. Every byte position in the input maps to exactly one line (spec §3.1
// invariant).
type Index struct {
	src   []byte
	lines []Line
}

// LineCount returns the number of lines in the index.
func (idx *Index) LineCount() int {
	return len(idx.lines)
}

// Line returns the 1-based line's record.
func (idx *Index) Line(lineNo int) Line {
	return idx.lines[lineNo-1]
}

// Text returns the content of the given 1-based line, without its
// terminator.
func (idx *Index) Text(lineNo int) string {
	l := idx.lines[lineNo-1]
	return string(idx.src[l.Offset : l.Offset+l.Length])
}

// Locate converts a byte offset into a (line, column) pair, both 1-based.
func (idx *Index) Locate(offset int) errs.Location {
	for i, l := range idx.lines {
		end := l.Offset + l.Length
		if offset >= l.Offset && offset <= end {
			return errs.Location{Line: i + 1, Column: offset - l.Offset + 1}
		}
	}
	if len(idx.lines) == 0 {
		return errs.Location{Line: 1, Column: 1}
	}
	last := idx.lines[len(idx.lines)-1]
	return errs.Location{Line: len(idx.lines), Column: last.Length + 1}
}

// RenderedLine returns the source text of the line containing offset, for
// use in FullMessage-style diagnostics.
func (idx *Index) RenderedLine(offset int) string {
	loc := idx.Locate(offset)
	if loc.Line < 1 || loc.Line > len(idx.lines) {
		return ""
	}
	return idx.Text(loc.Line)
}

// isAllowedByte reports whether b may appear in validated grammar bytes:
// TAB, LF, CR, or printable ASCII 0x20..0x7E.
func isAllowedByte(b byte) bool {
	if b == 0x09 || b == 0x0A || b == 0x0D {
		return true
	}
	return b >= 0x20 && b <= 0x7E
}

// Validate scans src once, verifying every byte is in the allowed set and
// building a line Index. When strict is set, only CRLF line endings are
// accepted and any other ending is an error. A final line with no
// terminator at all is an error in either mode. All violations are collected before the stage is judged to have
// failed, so a caller sees every problem in one pass (spec §4.1).
func Validate(src []byte, strict bool, log *errs.Log) (*Index, bool) {
	mark := log.Len()
	idx := &Index{src: src}

	lineStart := 0
	i := 0
	for i < len(src) {
		b := src[i]
		if !isAllowedByte(b) {
			loc := errs.Location{Line: len(idx.lines) + 1, Column: i - lineStart + 1}
			log.Add(errs.NewAt(errs.InputCharacterError, loc, renderRaw(src, lineStart),
				"offending byte 0x%02X at offset %d is outside {TAB, LF, CR, 0x20..0x7E}", b, i))
			i++
			continue
		}

		switch b {
		case '\r':
			var ending Ending
			var contentEnd, next int
			if i+1 < len(src) && src[i+1] == '\n' {
				ending = CRLF
				contentEnd = i
				next = i + 2
			} else {
				ending = CR
				contentEnd = i
				next = i + 1
			}
			if strict && ending != CRLF {
				loc := errs.Location{Line: len(idx.lines) + 1, Column: contentEnd - lineStart + 1}
				log.Add(errs.NewAt(errs.InputCharacterError, loc, string(src[lineStart:contentEnd]),
					"strict mode requires CRLF line endings, found %s", ending))
			}
			idx.lines = append(idx.lines, Line{Offset: lineStart, Length: contentEnd - lineStart, Ending: ending})
			lineStart = next
			i = next
		case '\n':
			ending := LF
			if strict {
				loc := errs.Location{Line: len(idx.lines) + 1, Column: i - lineStart + 1}
				log.Add(errs.NewAt(errs.InputCharacterError, loc, string(src[lineStart:i]),
					"strict mode requires CRLF line endings, found %s", ending))
			}
			idx.lines = append(idx.lines, Line{Offset: lineStart, Length: i - lineStart, Ending: ending})
			lineStart = i + 1
			i = lineStart
		default:
			i++
		}
	}

	if lineStart < len(src) {
		// a final line with content but no terminator
		loc := errs.Location{Line: len(idx.lines) + 1, Column: len(src) - lineStart + 1}
		log.Add(errs.NewAt(errs.InputCharacterError, loc, string(src[lineStart:]),
			"final line has no line terminator"))
		idx.lines = append(idx.lines, Line{Offset: lineStart, Length: len(src) - lineStart, Ending: NoEnding})
	} else if len(src) == 0 {
		log.Add(errs.New(errs.InputCharacterError, "grammar input is empty"))
	}

	return idx, log.Since(mark) == nil
}

func renderRaw(src []byte, lineStart int) string {
	end := lineStart
	for end < len(src) && src[end] != '\n' && src[end] != '\r' {
		end++
	}
	return string(src[lineStart:end])
}
