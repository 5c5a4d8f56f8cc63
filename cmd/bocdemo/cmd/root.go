// Package cmd implements the bocdemo CLI using cobra for command parsing
// and viper for layered configuration (flags, environment, config file).
package cmd

import (
	"fmt"
	stdlog "log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/purpleidea/boc/util"
)

var (
	cfgFile     string
	workerCount int
	metricsAddr string
)

var rootCmd = &cobra.Command{
	Use:   "bocdemo",
	Short: "Exercise the boc behavior-oriented concurrency runtime",
	Long: `bocdemo builds a handful of regions, schedules a chain of
behaviors across them via boc.When, and waits for the result. It is a
harness for exercising the runtime end to end, not a production service.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.bocdemo.yaml)")
	rootCmd.PersistentFlags().IntVar(&workerCount, "workers", 0, "worker pool size (0 = WORKER_COUNT env or NumCPU)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9090)")

	_ = viper.BindPFlag("workers", rootCmd.PersistentFlags().Lookup("workers"))
	_ = viper.BindPFlag("metrics-addr", rootCmd.PersistentFlags().Lookup("metrics-addr"))

	rootCmd.AddCommand(runCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigName(".bocdemo")
	}
	viper.SetEnvPrefix("BOCDEMO")
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "using config file:", viper.ConfigFileUsed())
	}
}

// newLogger builds the zap logger every subcommand logs through.
func newLogger() *zap.Logger {
	log, err := zap.NewProduction()
	if err != nil {
		log = zap.NewNop()
	}
	return log
}

// serveMetrics starts a background chi server exposing the Prometheus
// registry, if an address was configured. It returns a shutdown func.
func serveMetrics(addr string, reg *prometheus.Registry, log *zap.Logger) func() {
	if addr == "" {
		return func() {}
	}
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	// route net/http's internal error log through zap instead of the
	// standard logger, so a malformed request on the metrics listener
	// shows up alongside every other structured log line.
	errLog := stdlog.New(&util.LogWriter{
		Prefix: "metrics: ",
		Logf:   func(format string, v ...interface{}) { log.Sugar().Warnf(format, v...) },
	}, "", 0)
	srv := &http.Server{Addr: addr, Handler: r, ErrorLog: errLog}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	return func() { _ = srv.Close() }
}
