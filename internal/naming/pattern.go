// Package naming defines how sequential capture files are named and recognised.
// The formatting width and the detection pattern are derived from the same
// parameters so that every name the writer produces is also a name the scanner
// accepts.
package naming

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	// DefaultWidth is the minimum number of digits in a sequential file name.
	DefaultWidth = 3
	// DefaultExtension is the extension of captured frames.
	DefaultExtension = ".jpg"
)

// Error definitions for the naming package
var (
	ErrInvalidWidth     = errors.New("digit width must be at least 1")
	ErrInvalidExtension = errors.New("extension must be a non-empty suffix like \".jpg\"")
	ErrInvalidIndex     = errors.New("sequential index must be positive")
)

// Pattern formats and parses sequential file names of the form NNN.ext.
//
// Width is a minimum: index 1000 with width 3 formats as "1000.jpg" and is
// still recognised by Parse.
type Pattern struct {
	width int
	ext   string
	re    *regexp.Regexp
}

// New creates a Pattern for the given minimum digit width and extension.
// A missing leading dot on ext is added.
func New(width int, ext string) (Pattern, error) {
	if width < 1 {
		return Pattern{}, fmt.Errorf("%w: %d", ErrInvalidWidth, width)
	}
	ext = strings.TrimSpace(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if len(ext) < 2 || strings.ContainsAny(ext[1:], `./\`) {
		return Pattern{}, fmt.Errorf("%w: %q", ErrInvalidExtension, ext)
	}

	re, err := regexp.Compile(fmt.Sprintf(`^(\d{%d,})%s$`, width, regexp.QuoteMeta(ext)))
	if err != nil {
		return Pattern{}, fmt.Errorf("failed to compile naming pattern: %w", err)
	}
	return Pattern{width: width, ext: ext, re: re}, nil
}

// Default returns the 3-digit ".jpg" pattern.
func Default() Pattern {
	p, err := New(DefaultWidth, DefaultExtension)
	if err != nil {
		panic(err) // constants are valid
	}
	return p
}

// Width returns the minimum digit width.
func (p Pattern) Width() int { return p.width }

// Extension returns the file extension including the leading dot.
func (p Pattern) Extension() string { return p.ext }

// Format returns the file name for index, zero-padded to the pattern width.
func (p Pattern) Format(index int) (string, error) {
	if index < 1 {
		return "", fmt.Errorf("%w: %d", ErrInvalidIndex, index)
	}
	return fmt.Sprintf("%0*d%s", p.width, index, p.ext), nil
}

// Parse reports the index encoded in name. Names that do not match the
// pattern return ok == false, as do stems of math.MaxInt or more, which would
// leave no room for a following index.
func (p Pattern) Parse(name string) (index int, ok bool) {
	if p.re == nil {
		return 0, false
	}
	m := p.re.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n == math.MaxInt {
		return 0, false
	}
	return n, true
}

// String returns the detection expression, useful in logs.
func (p Pattern) String() string {
	if p.re == nil {
		return ""
	}
	return p.re.String()
}
