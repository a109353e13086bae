package telemetry

import (
	"context"
	"runtime/pprof"
	"sort"

	"github.com/grafana/pyroscope-go"
)

// Profiling label keys
const (
	ProfilingLabelRoute     = "route"
	ProfilingLabelMethod    = "method"
	ProfilingLabelTenantID  = "tenant_id"
	ProfilingLabelOperation = "operation"
)

// MaxLabelValueLength caps label values
const MaxLabelValueLength = 128

// highCardinalityLabels never reach the profiler
var highCardinalityLabels = map[string]bool{
	"user_id":    true,
	"request_id": true,
	"session_id": true,
	"lead_id":    true,
	"trace_id":   true,
}

// WithProfilingLabels runs fn with the labels attached to its goroutine's profile
// samples. Empty values and high-cardinality keys are dropped.
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := sanitizeLabels(labels)
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// ProfilingLabels returns the labels attached to ctx
func ProfilingLabels(ctx context.Context) map[string]string {
	out := map[string]string{}
	pprof.ForLabels(ctx, func(key, value string) bool {
		out[key] = value
		return true
	})
	return out
}

func sanitizeLabels(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for k, v := range labels {
		if k == "" || v == "" || highCardinalityLabels[k] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		v := labels[k]
		if len(v) > MaxLabelValueLength {
			v = v[:MaxLabelValueLength]
		}
		pairs = append(pairs, k, v)
	}
	return pairs
}
