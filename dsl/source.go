// Package dsl handles the line-oriented surface of RISE model files:
// reading source lines with positions, stripping comments, and splitting
// the file into named blocks. The macro layer is an external collaborator;
// this package accepts already-expanded lines tagged with file and line.
package dsl

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Extensions recognized for model files.
var Extensions = map[string]bool{".rs": true, ".rz": true, ".dsge": true}

// SourceLine is one non-empty, comment-stripped line of model text with
// its originating position for diagnostics.
type SourceLine struct {
	File string
	Line int
	Text string
}

// ParseError is a structural parse error; it always carries the file and
// line of the offending text.
type ParseError struct {
	File string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

func Errorf(file string, line int, format string, args ...any) *ParseError {
	return &ParseError{File: file, Line: line, Msg: fmt.Sprintf(format, args...)}
}

// ReadFile loads a model file into source lines. Comments start with '%'
// or '//'; a trailing "..." continues the statement on the next line.
func ReadFile(path string) ([]SourceLine, error) {
	ext := filepath.Ext(path)
	if !Extensions[ext] {
		return nil, fmt.Errorf("unrecognized model file extension %q (want .rs, .rz or .dsge)", ext)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []SourceLine
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	pending := ""
	pendingLine := 0
	for scanner.Scan() {
		lineNo++
		text := stripComment(scanner.Text())
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if pending != "" {
			text = pending + " " + text
		} else {
			pendingLine = lineNo
		}
		if strings.HasSuffix(text, "...") {
			pending = strings.TrimSpace(strings.TrimSuffix(text, "..."))
			continue
		}
		lines = append(lines, SourceLine{File: path, Line: pendingLine, Text: text})
		pending = ""
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if pending != "" {
		lines = append(lines, SourceLine{File: path, Line: pendingLine, Text: pending})
	}
	return lines, nil
}

// Lines wraps raw text as source lines for callers that bypass file I/O
// (tests, the macro collaborator). Comments and blanks are dropped.
func Lines(name, text string) []SourceLine {
	var out []SourceLine
	for i, raw := range strings.Split(text, "\n") {
		t := strings.TrimSpace(stripComment(raw))
		if t == "" {
			continue
		}
		out = append(out, SourceLine{File: name, Line: i + 1, Text: t})
	}
	return out
}

func stripComment(s string) string {
	if i := strings.Index(s, "%"); i >= 0 {
		s = s[:i]
	}
	if i := strings.Index(s, "//"); i >= 0 {
		s = s[:i]
	}
	return s
}
