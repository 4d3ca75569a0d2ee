// Package tracing times the phases of a request (parse, compile, execute)
// as a tree of spans carried in the context. A finished tree is logged
// through slog and rendered as a Server-Timing header.
package tracing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

type contextKey struct{}

type Span struct {
	Name     string
	TraceID  string
	Start    time.Time
	Duration time.Duration

	mu       sync.Mutex
	children []*Span
	attrs    []slog.Attr
}

// Start opens a root span.
func Start(ctx context.Context, name, traceID string) (context.Context, *Span) {
	s := &Span{Name: name, TraceID: traceID, Start: time.Now()}
	return context.WithValue(ctx, contextKey{}, s), s
}

// StartChild opens a span under the one in ctx. Without a parent the span
// is still usable but belongs to no tree.
func StartChild(ctx context.Context, name string) (context.Context, *Span) {
	s := &Span{Name: name, Start: time.Now()}
	if parent := FromContext(ctx); parent != nil {
		s.TraceID = parent.TraceID
		parent.mu.Lock()
		parent.children = append(parent.children, s)
		parent.mu.Unlock()
	}
	return context.WithValue(ctx, contextKey{}, s), s
}

func FromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(contextKey{}).(*Span)
	return s
}

// End is idempotent; the first call fixes the duration.
func (s *Span) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Duration == 0 {
		s.Duration = max(time.Since(s.Start), time.Nanosecond)
	}
}

func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs = append(s.attrs, slog.Any(key, value))
	s.mu.Unlock()
}

func (s *Span) Children() []*Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Span(nil), s.children...)
}

// LogValue renders the span and its children as nested groups.
func (s *Span) LogValue() slog.Value {
	s.mu.Lock()
	attrs := []slog.Attr{slog.Float64("ms", ms(s.Duration))}
	attrs = append(attrs, s.attrs...)
	children := append([]*Span(nil), s.children...)
	s.mu.Unlock()
	for _, c := range children {
		attrs = append(attrs, slog.Any(c.Name, c))
	}
	return slog.GroupValue(attrs...)
}

// Log writes the tree at debug level.
func (s *Span) Log(logger *slog.Logger) {
	logger.Debug("trace", "trace_id", s.TraceID, s.Name, s)
}

// ServerTiming formats the direct children in Server-Timing syntax, e.g.
// "parse;dur=0.012, compile;dur=0.030".
func (s *Span) ServerTiming() string {
	var b strings.Builder
	for i, c := range s.Children() {
		if i > 0 {
			b.WriteString(", ")
		}
		c.mu.Lock()
		fmt.Fprintf(&b, "%s;dur=%.3f", c.Name, ms(c.Duration))
		c.mu.Unlock()
	}
	return b.String()
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
