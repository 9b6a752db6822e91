// Package report projects campaign metrics into a keyed template.
package report

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrMalformedTemplate = errors.New("malformed template")

// Delims is the placeholder delimiter pair. It comes from configuration.
type Delims struct {
	Open  string `yaml:"open"`
	Close string `yaml:"close"`
}

var DefaultDelims = Delims{Open: "{{", Close: "}}"}

// Segment is either literal text or a placeholder key.
type Segment struct {
	Text  string
	IsKey bool
}

type Template struct {
	Segments []Segment
	Delims   Delims
	// EscapeHTML escapes slot values before substitution.
	EscapeHTML bool
}

// Parse splits text into literals and placeholders. Whitespace inside the
// delimiters is ignored: "{{ CAMPAIGN_CTR }}" names CAMPAIGN_CTR.
func Parse(text string, d Delims) (Template, error) {
	if d.Open == "" || d.Close == "" {
		return Template{}, fmt.Errorf("%w: empty delimiter", ErrMalformedTemplate)
	}
	t := Template{Delims: d}
	rest, offset := text, 0
	for {
		i := strings.Index(rest, d.Open)
		if i < 0 {
			t.addLiteral(rest)
			return t, nil
		}
		t.addLiteral(rest[:i])
		after := rest[i+len(d.Open):]
		j := strings.Index(after, d.Close)
		if j < 0 {
			return Template{}, fmt.Errorf("%w: unterminated placeholder at byte %d", ErrMalformedTemplate, offset+i)
		}
		key := strings.TrimSpace(after[:j])
		if key == "" || strings.Contains(key, d.Open) {
			return Template{}, fmt.Errorf("%w: bad placeholder at byte %d", ErrMalformedTemplate, offset+i)
		}
		t.Segments = append(t.Segments, Segment{Text: key, IsKey: true})
		consumed := i + len(d.Open) + j + len(d.Close)
		rest, offset = rest[consumed:], offset+consumed
	}
}

func (t *Template) addLiteral(s string) {
	if s != "" {
		t.Segments = append(t.Segments, Segment{Text: s})
	}
}

// Keys returns the distinct placeholder keys, sorted.
func (t Template) Keys() []string {
	set := map[string]struct{}{}
	for _, s := range t.Segments {
		if s.IsKey {
			set[s.Text] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
