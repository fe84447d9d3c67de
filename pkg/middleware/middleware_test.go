package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// recordingSpan keeps what the middleware sets on it.
type recordingSpan struct {
	noop.Span
	mu     sync.Mutex
	name   string
	attrs  map[attribute.Key]attribute.Value
	status codes.Code
	ended  bool
}

func (s *recordingSpan) SetName(name string) {
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
}

func (s *recordingSpan) SetAttributes(kv ...attribute.KeyValue) {
	s.mu.Lock()
	for _, a := range kv {
		s.attrs[a.Key] = a.Value
	}
	s.mu.Unlock()
}

func (s *recordingSpan) SetStatus(code codes.Code, _ string) {
	s.mu.Lock()
	s.status = code
	s.mu.Unlock()
}

func (s *recordingSpan) End(...trace.SpanEndOption) {
	s.mu.Lock()
	s.ended = true
	s.mu.Unlock()
}

type recordingTracer struct {
	noop.Tracer
	mu    sync.Mutex
	spans []*recordingSpan
}

func (t *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	cfg := trace.NewSpanStartConfig(opts...)
	span := &recordingSpan{name: name, attrs: make(map[attribute.Key]attribute.Value)}
	span.SetAttributes(cfg.Attributes()...)

	t.mu.Lock()
	t.spans = append(t.spans, span)
	t.mu.Unlock()
	return trace.ContextWithSpan(ctx, span), span
}

type recordingProvider struct {
	noop.TracerProvider
	tracer *recordingTracer
}

func (p *recordingProvider) Tracer(string, ...trace.TracerOption) trace.Tracer {
	return p.tracer
}

func useRecordingTracer(t *testing.T) *recordingTracer {
	t.Helper()
	prev := otel.GetTracerProvider()
	tracer := &recordingTracer{}
	otel.SetTracerProvider(&recordingProvider{tracer: tracer})
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return tracer
}

func newRouter(mw ...func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(mw...)
	r.Get("/items/{key}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "key") == "missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`"ok"`))
	})
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	return r
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metrics
				}
			}
			if c := m.GetCounter(); c != nil {
				return c.GetValue()
			}
			if h := m.GetHistogram(); h != nil {
				return float64(h.GetSampleCount())
			}
			if g := m.GetGauge(); g != nil {
				return g.GetValue()
			}
		}
	}
	return 0
}

func TestPrometheus_RecordsByRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := newRouter(Prometheus(WithRegistry(reg)))

	serve(h, http.MethodGet, "/items/a")
	serve(h, http.MethodGet, "/items/b")
	serve(h, http.MethodGet, "/items/missing")
	serve(h, http.MethodGet, "/boom")

	tests := []struct {
		labels map[string]string
		want   float64
	}{
		{map[string]string{"route": "/items/{key}", "method": "GET", "status": "200"}, 2},
		{map[string]string{"route": "/items/{key}", "method": "GET", "status": "404"}, 1},
		{map[string]string{"route": "/boom", "method": "GET", "status": "500"}, 1},
	}
	for _, tt := range tests {
		if got := counterValue(t, reg, "storesync_http_requests_total", tt.labels); got != tt.want {
			t.Errorf("requests_total%v = %v, want %v", tt.labels, got, tt.want)
		}
	}

	got := counterValue(t, reg, "storesync_http_request_duration_seconds",
		map[string]string{"route": "/items/{key}"})
	if got != 3 {
		t.Errorf("duration samples = %v, want 3", got)
	}
	if got := counterValue(t, reg, "storesync_http_requests_in_flight", nil); got != 0 {
		t.Errorf("in flight = %v after requests finished", got)
	}
}

func TestPrometheus_CustomNamespace(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := newRouter(Prometheus(WithRegistry(reg), WithNamespace("app"), WithSubsystem("api")))

	serve(h, http.MethodGet, "/items/a")

	if got := counterValue(t, reg, "app_api_requests_total", nil); got != 1 {
		t.Errorf("app_api_requests_total = %v, want 1", got)
	}
}

func TestPrometheus_UnroutedRequestUsesPath(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := Prometheus(WithRegistry(reg))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	serve(h, http.MethodGet, "/plain")

	labels := map[string]string{"route": "/plain", "status": "200"}
	if got := counterValue(t, reg, "storesync_http_requests_total", labels); got != 1 {
		t.Errorf("requests_total = %v, want 1", got)
	}
}

func TestOpenTelemetry_NamesSpanAfterRoute(t *testing.T) {
	tracer := useRecordingTracer(t)
	h := newRouter(OpenTelemetry(WithAttributeExtractor(func(*http.Request) []attribute.KeyValue {
		return []attribute.KeyValue{attribute.String("test.attr", "ok")}
	})))

	var sawSpan bool
	inner := chi.NewRouter()
	inner.Use(OpenTelemetry())
	inner.Get("/x", func(w http.ResponseWriter, r *http.Request) {
		_, sawSpan = trace.SpanFromContext(r.Context()).(*recordingSpan)
	})

	serve(h, http.MethodGet, "/items/a")
	serve(h, http.MethodGet, "/boom")
	serve(inner, http.MethodGet, "/x")

	if len(tracer.spans) != 3 {
		t.Fatalf("spans = %d, want 3", len(tracer.spans))
	}

	ok := tracer.spans[0]
	if ok.name != "HTTP GET /items/{key}" {
		t.Errorf("span name = %q", ok.name)
	}
	if ok.attrs["http.route"].AsString() != "/items/{key}" || ok.attrs["test.attr"].AsString() != "ok" {
		t.Errorf("attrs = %v", ok.attrs)
	}
	if ok.attrs["http.response.status_code"].AsInt64() != 200 || ok.status == codes.Error || !ok.ended {
		t.Errorf("span = %+v", ok)
	}

	if boom := tracer.spans[1]; boom.status != codes.Error {
		t.Errorf("5xx span status = %v, want Error", boom.status)
	}
	if !sawSpan {
		t.Error("handler context should carry the span")
	}
}

func TestOpenTelemetry_Filter(t *testing.T) {
	tracer := useRecordingTracer(t)
	h := newRouter(OpenTelemetry(WithRequestFilter(func(r *http.Request) bool {
		return r.URL.Path != "/boom"
	})))

	serve(h, http.MethodGet, "/boom")
	serve(h, http.MethodGet, "/items/a")

	if len(tracer.spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(tracer.spans))
	}
}

func TestStatusRecorder_Hijack(t *testing.T) {
	rec := newStatusRecorder(httptest.NewRecorder())
	if _, _, err := rec.Hijack(); err == nil {
		t.Error("expected error hijacking a recorder")
	}
	if rec.hijacked {
		t.Error("failed hijack should not mark the response hijacked")
	}
}
