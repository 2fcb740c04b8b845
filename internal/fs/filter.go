package fs

import (
	"github.com/gobwas/glob"
)

// Filter matches slash-separated relative paths against a glob pattern. The
// `/` separator is significant: `*` never crosses directory boundaries.
type Filter struct {
	pattern string
	glob    glob.Glob
}

func NewFilter(pattern string) (*Filter, error) {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, err
	}
	return &Filter{pattern: pattern, glob: g}, nil
}

// MustFilter is NewFilter for package-level patterns known to be valid.
func MustFilter(pattern string) *Filter {
	f, err := NewFilter(pattern)
	if err != nil {
		panic(err)
	}
	return f
}

func (f *Filter) Match(rel string) bool {
	return f.glob.Match(rel)
}

func (f *Filter) String() string {
	return f.pattern
}
