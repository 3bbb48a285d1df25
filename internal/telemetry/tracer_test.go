package telemetry

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"go.opentelemetry.io/otel"

	"github.com/tjfontaine/campaign-orchestrator/internal/pkg/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInitTracer_Exporters(t *testing.T) {
	tests := []struct {
		name     string
		exporter string
		wantErr  bool
	}{
		{"empty disables", "", false},
		{"none", "none", false},
		{"stdout", "stdout", false},
		{"otlp", "otlp", false},
		{"unknown", "zipkin", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shutdown, err := initTracer(context.Background(), config.TelemetryConfig{
				ServiceName:  "campaign-orchestrator",
				Exporter:     tt.exporter,
				OTLPEndpoint: "http://127.0.0.1:4318/v1/traces",
			}, io.Discard, discardLogger())
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if shutdown == nil {
				t.Fatal("shutdown must never be nil")
			}
			if tt.exporter == "stdout" {
				if err := shutdown(context.Background()); err != nil {
					t.Errorf("shutdown: %v", err)
				}
			}
		})
	}
}

func TestInitTracer_StdoutWritesSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := initTracer(context.Background(), config.TelemetryConfig{
		ServiceName: "campaign-orchestrator",
		Exporter:    "stdout",
	}, &buf, discardLogger())
	if err != nil {
		t.Fatalf("initTracer: %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "pipeline.run")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("pipeline.run")) {
		t.Errorf("exported spans missing span name:\n%s", buf.String())
	}
}
