package otel

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/timvw/command-center/internal/config"
)

func TestInit_NoTargetIsNoop(t *testing.T) {
	tel, err := Init(context.Background(), Options{Version: "1.2.3"})
	if err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	if tel.Exporting() {
		t.Error("Init() without a target should not export")
	}
	if tel.Tracer == nil || tel.Metrics == nil {
		t.Fatal("Init() must return a usable tracer and metrics without a target")
	}
	ctx := context.Background()
	tel.Metrics.RecordLaunch(ctx, true)
	tel.Metrics.RecordPoll(ctx, 3, 12*time.Millisecond)
	if err := tel.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error: %v", err)
	}
}

func TestShutdown_NilTelemetry(t *testing.T) {
	var tel *Telemetry
	if tel.Exporting() {
		t.Error("nil Telemetry should not export")
	}
	if err := tel.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error: %v", err)
	}
}

func TestOptionsFrom(t *testing.T) {
	cfg := &config.Config{
		Mux:         "tmux",
		HostSession: "agents",
		MaxSessions: 4,
		OTLP:        config.OTLP{Host: "collector:4318", Insecure: true},
	}
	opts := OptionsFrom(cfg, "0.3.0")
	if opts.Version != "0.3.0" || opts.HostSession != "agents" || opts.MaxSessions != 4 || opts.Mux != "tmux" {
		t.Errorf("OptionsFrom() = %+v", opts)
	}
	if !opts.Target.Enabled() || opts.Target.Host != "collector:4318" {
		t.Errorf("Target = %+v", opts.Target)
	}
}

func TestResourceAttributes(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want map[attribute.Key]string
		skip []attribute.Key
	}{
		{
			name: "full",
			opts: Options{Version: "1.0.0", Mux: "tmux", HostSession: "agents", MaxSessions: 10},
			want: map[attribute.Key]string{
				"service.name":                "command-center",
				"service.version":             "1.0.0",
				"command_center.mux":          "tmux",
				"command_center.host_session": "agents",
				"command_center.max_sessions": "10",
			},
		},
		{
			name: "defaults",
			opts: Options{},
			want: map[attribute.Key]string{
				"service.version":             "dev",
				"command_center.max_sessions": "0",
			},
			skip: []attribute.Key{"command_center.mux", "command_center.host_session"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := map[attribute.Key]string{}
			for _, kv := range resourceAttributes(tt.opts) {
				got[kv.Key] = kv.Value.Emit()
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %q, want %q", k, got[k], v)
				}
			}
			for _, k := range tt.skip {
				if _, ok := got[k]; ok {
					t.Errorf("%s should be omitted when empty", k)
				}
			}
		})
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordLaunch(ctx, false)
	m.RecordLaunchRejection(ctx, "capacity")
	m.RecordKill(ctx)
	m.RecordTransition(ctx, "running", "idle")
	m.RecordPoll(ctx, 1, time.Millisecond)
	m.RecordNotification(ctx, "attention")
	m.RecordAdapterError(ctx, "capture-pane")
	m.RecordTokens(ctx, "anthropic", "claude-haiku-4-5", 10, 5)
	m.RecordCacheHit(ctx)
	m.RecordCacheMiss(ctx)
}
