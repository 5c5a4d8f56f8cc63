package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/purpleidea/boc/boc"
	"github.com/purpleidea/boc/boc/host"
	"github.com/purpleidea/boc/util"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Schedule a small demonstration workload and wait for it to finish",
	RunE:  runRun,
}

func runRun(_ *cobra.Command, _ []string) error {
	log := newLogger()
	defer func() { _ = log.Sync() }()

	reg := prometheus.NewRegistry()
	metrics := boc.NewMetrics(reg)
	shutdown := serveMetrics(viper.GetString("metrics-addr"), reg, log)
	defer shutdown()

	opts := []boc.Option{boc.WithLogger(log), boc.WithMetrics(metrics)}
	if n := viper.GetInt("workers"); n > 0 {
		opts = append(opts, boc.WithWorkers(n))
	}
	rt := boc.NewRuntime(opts...)

	// ee lets either a finished workload or an operator interrupt race to
	// decide when runRun returns, the same close-once-from-anywhere
	// pattern the teacher builds EasyExit for.
	ee := util.NewEasyExit()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			ee.Done(fmt.Errorf("interrupted"))
		case <-ee.Signal():
		}
	}()

	go func() {
		ee.Done(workload(rt, log))
	}()

	if err := ee.Error(); err != nil {
		log.Error("run did not complete cleanly", zap.Error(err))
		return err
	}
	return nil
}

// workload builds a couple of regions and schedules a short chain of
// behaviors against them, for runRun to exercise the runtime end to end.
func workload(rt *boc.Runtime, log *zap.Logger) error {
	sys := host.NewNativeSystem()
	ctx := context.Background()
	rt.Run(ctx)

	ledger := boc.NewRegion("ledger")
	audit := boc.NewRegion("audit")
	for _, r := range []*boc.Region{ledger, audit} {
		r := r
		r.SetLogf(func(format string, v ...interface{}) {
			log.Sugar().Debugf(r.Name()+": "+format, v...)
		})
	}
	ledger.MakeShareable()
	audit.MakeShareable()

	if err := rt.When(ctx, []*boc.Region{ledger}, func(ctx context.Context, regions ...*boc.Region) error {
		return regions[0].Set(ctx, "balance", 100, sys)
	}); err != nil {
		return err
	}

	if err := rt.When(ctx, []*boc.Region{ledger, audit}, func(ctx context.Context, regions ...*boc.Region) error {
		ledgerRegion, auditRegion := regions[0], regions[1]
		balance, err := ledgerRegion.Get("balance")
		if err != nil {
			return err
		}
		if err := ledgerRegion.Set(ctx, "balance", balance.(int)-10, sys); err != nil {
			return err
		}
		return auditRegion.Set(ctx, "last_debit", 10, sys)
	}); err != nil {
		return err
	}

	if err := rt.Wait(); err != nil {
		log.Error("workload finished with errors", zap.Error(err))
		return err
	}

	balance, err := ledger.Peek("balance")
	if err != nil {
		return err
	}
	fmt.Printf("%s %v\n", util.RightPad("final balance:", " ", 16), balance)
	return nil
}
