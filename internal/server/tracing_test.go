package server

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type spanNames struct {
	noop.TracerProvider
	mu    sync.Mutex
	ended []string
}

func (p *spanNames) Tracer(string, ...trace.TracerOption) trace.Tracer {
	return namingTracer{p: p}
}

func (p *spanNames) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.ended...)
}

type namingTracer struct {
	noop.Tracer
	p *spanNames
}

func (t namingTracer) Start(ctx context.Context, name string, _ ...trace.SpanStartOption) (context.Context, trace.Span) {
	s := &namedSpan{p: t.p, name: name}
	return trace.ContextWithSpan(ctx, s), s
}

type namedSpan struct {
	noop.Span
	p    *spanNames
	name string
}

func (s *namedSpan) SetName(name string) { s.name = name }

func (s *namedSpan) End(...trace.SpanEndOption) {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	s.p.ended = append(s.p.ended, s.name)
}

func TestTracing_SpanNamedAfterRoute(t *testing.T) {
	p := &spanNames{}
	otel.SetTracerProvider(p)
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })

	e := newTestEnv(t, 10)
	e.do(t, http.MethodGet, "/orders/o-123/invoice", "", "")
	e.do(t, http.MethodGet, "/orders/o-456/invoice", "", "")
	e.do(t, http.MethodGet, "/no/such/route", "", "")

	names := p.names()
	assert.Contains(t, names, "GET /orders/:id/invoice")
	assert.Contains(t, names, "GET unmatched")
	for _, n := range names {
		assert.NotContains(t, n, "o-123")
		assert.NotContains(t, n, "o-456")
	}
}
