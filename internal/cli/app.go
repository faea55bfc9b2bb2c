package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/cmdb/internal/telemetry"
	"github.com/mesh-intelligence/cmdb/pkg/cmdb"
)

// app holds per-invocation state shared by the subcommands.
type app struct {
	flags     rootFlags
	v         *viper.Viper
	configDir string
	log       zerolog.Logger
	out       io.Writer
	errOut    io.Writer

	sys     *cmdb.System
	tracing *telemetry.Provider
	prom    *prometheus.Registry
}

// system opens the CMDB on first use. Pass cmdb.WithoutStartup to skip
// the pack scan.
func (a *app) system(ctx context.Context, opts ...cmdb.Option) (*cmdb.System, error) {
	if a.sys != nil {
		return a.sys, nil
	}
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}

	a.tracing, err = telemetry.NewProvider(telemetry.Config{Enabled: a.flags.trace, Writer: a.errOut})
	if err != nil {
		return nil, err
	}
	a.prom = prometheus.NewRegistry()

	opts = append([]cmdb.Option{
		cmdb.WithLogger(a.log),
		cmdb.WithPrometheus(a.prom),
		cmdb.WithTracer(a.tracing.Tracer()),
	}, opts...)
	sys, err := cmdb.Open(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	if sys.Startup != nil && len(sys.Startup.Failed) > 0 {
		a.log.Warn().Msgf("some packs failed to load:\n%s", sys.Startup.Failures())
	}
	a.sys = sys
	return sys, nil
}

// teardown writes the metrics textfile, flushes spans and closes the
// system.
func (a *app) teardown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var errs []error
	if a.sys != nil && a.flags.metricsTextfile != "" {
		if err := a.sys.Metrics.WriteTextfile(a.flags.metricsTextfile); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	if a.tracing != nil {
		errs = append(errs, a.tracing.Shutdown(ctx))
		a.tracing = nil
	}
	if a.sys != nil {
		errs = append(errs, a.sys.Close())
		a.sys = nil
	}
	return errors.Join(errs...)
}
