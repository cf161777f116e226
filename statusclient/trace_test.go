package statusclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"go.aimuz.me/orb/internal/types"
)

// spanRecorder records the names of started spans.
type spanRecorder struct {
	noop.TracerProvider

	mu    sync.Mutex
	names []string
}

func (r *spanRecorder) Tracer(string, ...trace.TracerOption) trace.Tracer {
	return recordingTracer{rec: r}
}

func (r *spanRecorder) started() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.names)
}

type recordingTracer struct {
	noop.Tracer
	rec *spanRecorder
}

func (t recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	t.rec.mu.Lock()
	t.rec.names = append(t.rec.names, name)
	t.rec.mu.Unlock()
	return t.Tracer.Start(ctx, name, opts...)
}

// The package tracer delegates to the first provider installed globally, so
// all calls are checked against one recorder.
func TestClient_Spans(t *testing.T) {
	rec := &spanRecorder{}
	otel.SetTracerProvider(rec)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_, _ = io.WriteString(w, "idle")
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := New(srv.URL)
	ctx := context.Background()

	_, err := c.Fetch(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Send(ctx, "hello"))
	require.NoError(t, c.SetState(ctx, types.StateThinking))

	names := rec.started()
	for _, want := range []string{"statusclient.Fetch", "statusclient.Send", "statusclient.SetState"} {
		assert.Contains(t, names, want)
	}
}
