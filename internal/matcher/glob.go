package matcher

import (
	"fmt"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultPatternCacheSize = 256

// GlobPattern translates a glob into an anchored regular expression: '*'
// matches zero or more characters and '?' exactly one.
func GlobPattern(glob string) string {
	var b strings.Builder
	b.WriteByte('^')
	for _, r := range glob {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteByte('.')
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteByte('$')
	return b.String()
}

// FixedPrefix returns the part of glob before its first wildcard glyph.
func FixedPrefix(glob string) string {
	if i := strings.IndexAny(glob, "*?"); i >= 0 {
		return glob[:i]
	}
	return glob
}

// PatternCache memoizes compiled glob patterns. It is safe for concurrent
// use; the compiled regexps are shared read-only.
type PatternCache struct {
	cache *lru.Cache[string, *regexp.Regexp]
}

// NewPatternCache returns a cache holding up to size patterns.
func NewPatternCache(size int) (*PatternCache, error) {
	if size <= 0 {
		size = defaultPatternCacheSize
	}
	c, err := lru.New[string, *regexp.Regexp](size)
	if err != nil {
		return nil, fmt.Errorf("creating pattern cache: %w", err)
	}
	return &PatternCache{cache: c}, nil
}

// Compile returns the regexp for glob, compiling it on first use. A nil
// cache compiles every time.
func (p *PatternCache) Compile(glob string) (*regexp.Regexp, error) {
	if p != nil {
		if re, ok := p.cache.Get(glob); ok {
			return re, nil
		}
	}
	re, err := regexp.Compile(GlobPattern(glob))
	if err != nil {
		return nil, fmt.Errorf("compiling wildcard %q: %w", glob, err)
	}
	if p != nil {
		p.cache.Add(glob, re)
	}
	return re, nil
}

// Len returns the number of cached patterns.
func (p *PatternCache) Len() int {
	if p == nil {
		return 0
	}
	return p.cache.Len()
}
