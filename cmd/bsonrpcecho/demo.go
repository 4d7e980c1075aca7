// file: cmd/bsonrpcecho/demo.go
package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/dkoosis/bsonrpc/internal/dispatcher"
	"github.com/dkoosis/bsonrpc/internal/peerproxy"
	"github.com/dkoosis/bsonrpc/internal/service"
	"github.com/dkoosis/bsonrpc/pkg/util/stringutil"
)

// historyArgPreviewLen bounds how much of a single argument's string form
// formatHistory prints, so a large swapper payload doesn't flood the log.
const historyArgPreviewLen = 64

// callRecord is one entry in a side's call history, kept for the "serve"
// command's log output and for anyone scripting against it manually.
type callRecord struct {
	method string
	args   []any
}

type history struct {
	mu      sync.Mutex
	records []callRecord
}

func (h *history) record(method string, args ...any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, callRecord{method: method, args: args})
}

func (h *history) snapshot() []callRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]callRecord, len(h.records))
	copy(out, h.records)
	return out
}

func reverseString(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

// buildDemoRegistry wires the scenario methods used throughout manual
// smoke testing: a string-reversing request, a request that calls back
// into the peer both as a notification and via the peer proxy, a
// request that asks the endpoint to close after responding, a bare
// notification, and a handler that panics to exercise the recovered-panic
// path.
func buildDemoRegistry(h *history) *service.Registry {
	reg := service.NewRegistry()

	reg.RegisterRequest("swapper",
		service.ParamSpec{PossibleArgs: []string{"text"}, RequiredCount: 1},
		func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
			text, _ := firstArg(args, kwargs, "text").(string)
			h.record("swapper", text)
			return reverseString(text), nil
		},
	)

	reg.RegisterRequest("complicated",
		service.ParamSpec{PossibleArgs: []string{"a", "b", "c"}, RequiredCount: 3},
		func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
			a, b, c := args[0], args[1], args[2]
			h.record("complicated", a, b, c)

			hctx, _ := dispatcher.FromContext(ctx)
			if err := hctx.InvokeNotification(ctx, "report_back", []any{"Hello", "There"}, nil); err != nil {
				return nil, err
			}
			proxyReportBack := peerproxy.New(hctx).Notification("report_back")
			if err := proxyReportBack(ctx, "Other Way", 123); err != nil {
				return nil, err
			}
			return fmt.Sprintf("a: %v b: %v c: %v", a, b, c), nil
		},
	)

	reg.RegisterNotification("report_back",
		service.ParamSpec{PossibleArgs: []string{"first", "second", "opt"}, RequiredCount: 1, VariadicPositional: true},
		func(ctx context.Context, args []any, kwargs map[string]any) error {
			h.record("report_back", args...)
			return nil
		},
	)

	reg.RegisterNotification("yaman",
		service.ParamSpec{PossibleArgs: []string{"note"}, RequiredCount: 1},
		func(ctx context.Context, args []any, kwargs map[string]any) error {
			note, _ := firstArg(args, kwargs, "note").(string)
			h.record("yaman", note)
			return nil
		},
	)

	reg.RegisterRequest("server_disconnect",
		service.ParamSpec{PossibleArgs: []string{"x", "y"}, RequiredCount: 2},
		func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
			x, y := toInt64(args[0]), toInt64(args[1])
			h.record("server_disconnect", args...)
			hctx, _ := dispatcher.FromContext(ctx)
			hctx.CloseAfterResponse()
			return x * y, nil
		},
	)

	reg.RegisterRequest("panicker",
		service.ParamSpec{PossibleArgs: []string{"who"}, RequiredCount: 1},
		func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
			panic(errors.New("Proud Mary!"))
		},
	)

	return reg
}

func firstArg(args []any, kwargs map[string]any, name string) any {
	if len(args) > 0 {
		return args[0]
	}
	if kwargs != nil {
		return kwargs[name]
	}
	return nil
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func formatHistory(records []callRecord) string {
	var b strings.Builder
	for _, r := range records {
		previews := make([]string, len(r.args))
		for i, a := range r.args {
			previews[i] = stringutil.TruncateString(fmt.Sprintf("%v", a), historyArgPreviewLen)
		}
		fmt.Fprintf(&b, "%s(%s)\n", r.method, strings.Join(previews, ", "))
	}
	return b.String()
}
