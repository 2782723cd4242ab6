package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/mirkobrombin/go-spin/v1/metrics"
)

var v = viper.New()

var rootCmd = &cobra.Command{
	Use:           "spin-bench",
	Short:         "spin-bench contends on spin locks and reports what it observed",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return err
		}
		level := slog.LevelInfo
		if v.GetBool("verbose") {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return nil
	},
}

func init() {
	v.SetEnvPrefix("SPIN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	pf := rootCmd.PersistentFlags()
	pf.BoolP("verbose", "v", false, "Enable debug logging")
	pf.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :2112)")
	pf.Bool("trace", false, "Print OpenTelemetry spans to stdout")

	rootCmd.AddCommand(runCmd, scenarioCmd, lockCmd)
}

// telemetry wires the registry, the optional /metrics endpoint and the
// optional stdout tracer. The returned function flushes and stops them.
func telemetry(ctx context.Context) (*prometheus.Registry, func(), error) {
	reg := metrics.NewRegistry()
	metrics.RegisterCoreMetrics(reg)

	var shutdown []func()
	if addr := v.GetString("metrics-addr"); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: addr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("spin: metrics server failed", "addr", addr, "error", err)
			}
		}()
		slog.Info("serving metrics", "addr", addr)
		shutdown = append(shutdown, func() { _ = srv.Shutdown(context.Background()) })
	}
	if v.GetBool("trace") {
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, nil, fmt.Errorf("stdout exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
		otel.SetTracerProvider(tp)
		shutdown = append(shutdown, func() { _ = tp.Shutdown(ctx) })
	}
	return reg, func() {
		for i := len(shutdown) - 1; i >= 0; i-- {
			shutdown[i]()
		}
	}, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err.Error())
		os.Exit(1)
	}
}
