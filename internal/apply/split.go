package apply

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedScript is returned when a script cannot be split into statements
var ErrMalformedScript = errors.New("malformed migration script")

const defaultDelimiter = ";"

// Statement is one executable statement of a script, without its delimiter
type Statement struct {
	SQL  string
	Line int // 1-based line the statement starts on
}

// Split breaks a script into statements the way the mysql client does.
//
// DELIMITER lines switch the statement terminator; quoted strings and
// identifiers, "-- " and "#" line comments and /* */ block comments never end a
// statement. Line comments are dropped. Chunks holding nothing but comments and
// whitespace are skipped. Text after the last delimiter is a final statement.
func Split(script string) ([]Statement, error) {
	s := &splitter{src: script, line: 1, delimiter: defaultDelimiter}
	if err := s.run(); err != nil {
		return nil, err
	}
	return s.out, nil
}

type splitter struct {
	src       string
	pos       int
	line      int
	delimiter string

	buf       strings.Builder
	hasCode   bool
	startLine int
	out       []Statement
}

func (s *splitter) run() error {
	for s.pos < len(s.src) {
		if !s.hasCode && s.atLineStart() {
			handled, err := s.delimiterDirective()
			if err != nil {
				return err
			}
			if handled {
				continue
			}
		}

		rest := s.src[s.pos:]
		c := s.src[s.pos]
		switch {
		case c == '\'' || c == '"' || c == '`':
			if err := s.quoted(c); err != nil {
				return err
			}
		case c == '#' || isDashComment(rest):
			s.skipLineComment()
		case strings.HasPrefix(rest, "/*"):
			if err := s.blockComment(); err != nil {
				return err
			}
		case strings.HasPrefix(rest, s.delimiter):
			s.pos += len(s.delimiter)
			s.flush()
		default:
			s.write(c)
			s.pos++
		}
	}
	s.flush()
	return nil
}

func (s *splitter) atLineStart() bool {
	return s.pos == 0 || s.src[s.pos-1] == '\n'
}

// delimiterDirective consumes a "DELIMITER x" line
func (s *splitter) delimiterDirective() (bool, error) {
	end := strings.IndexByte(s.src[s.pos:], '\n')
	lineText := s.src[s.pos:]
	if end >= 0 {
		lineText = s.src[s.pos : s.pos+end]
	}

	fields := strings.Fields(lineText)
	if len(fields) == 0 || !strings.EqualFold(fields[0], "DELIMITER") {
		return false, nil
	}
	if len(fields) != 2 {
		return false, fmt.Errorf("%w: line %d: DELIMITER needs exactly one argument", ErrMalformedScript, s.line)
	}

	s.delimiter = fields[1]
	if end >= 0 {
		s.pos += end + 1
		s.line++
	} else {
		s.pos = len(s.src)
	}
	return true, nil
}

// quoted copies a quoted string or identifier. Backslash escapes apply to
// string literals; a doubled quote character stands for itself in all three.
func (s *splitter) quoted(quote byte) error {
	startLine := s.line
	s.write(quote)
	s.pos++
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == '\\' && quote != '`' && s.pos+1 < len(s.src):
			s.write(c)
			s.write(s.src[s.pos+1])
			s.pos += 2
		case c == quote && s.pos+1 < len(s.src) && s.src[s.pos+1] == quote:
			s.write(c)
			s.write(c)
			s.pos += 2
		case c == quote:
			s.write(c)
			s.pos++
			return nil
		default:
			s.write(c)
			s.pos++
		}
	}
	return fmt.Errorf("%w: line %d: unterminated %c quote", ErrMalformedScript, startLine, quote)
}

func (s *splitter) skipLineComment() {
	end := strings.IndexByte(s.src[s.pos:], '\n')
	if end < 0 {
		s.pos = len(s.src)
		return
	}
	s.pos += end
}

// blockComment copies a /* */ comment. Only /*! executable comments count as code.
func (s *splitter) blockComment() error {
	end := strings.Index(s.src[s.pos+2:], "*/")
	if end < 0 {
		return fmt.Errorf("%w: line %d: unterminated block comment", ErrMalformedScript, s.line)
	}
	comment := s.src[s.pos : s.pos+2+end+2]
	executable := strings.HasPrefix(comment, "/*!")
	for i := 0; i < len(comment); i++ {
		if executable {
			s.write(comment[i])
		} else {
			s.writeInert(comment[i])
		}
	}
	s.pos += len(comment)
	return nil
}

// write appends code
func (s *splitter) write(c byte) {
	if !s.hasCode && !isSpace(c) {
		s.hasCode = true
		s.startLine = s.line
	}
	s.writeInert(c)
}

// writeInert appends text that does not by itself make a statement. Before the
// first code byte it is dropped.
func (s *splitter) writeInert(c byte) {
	if s.hasCode {
		s.buf.WriteByte(c)
	}
	if c == '\n' {
		s.line++
	}
}

func (s *splitter) flush() {
	if s.hasCode {
		s.out = append(s.out, Statement{SQL: strings.TrimSpace(s.buf.String()), Line: s.startLine})
	}
	s.buf.Reset()
	s.hasCode = false
	s.startLine = 0
}

func isDashComment(rest string) bool {
	if !strings.HasPrefix(rest, "--") {
		return false
	}
	return len(rest) == 2 || isSpace(rest[2])
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
