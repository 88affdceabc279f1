package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"spaceteam-go/bus"
	"spaceteam-go/internal/sim"
	"spaceteam-go/services/reader"
	"spaceteam-go/types"
)

var (
	flags       *pflag.FlagSet
	configPath  *string
	duration    *time.Duration
	metricsAddr *string
	fixedRate   *bool
)

func init() {
	flags = pflag.NewFlagSet("reader-demo", pflag.ExitOnError)
	configPath = flags.String("config", "", "yaml file listing peripherals (default: built-in control panel)")
	duration = flags.Duration("duration", 0, "stop after this long; 0 runs until SIGINT/SIGTERM")
	metricsAddr = flags.String("metrics-addr", ":9090", "address for the /metrics endpoint; empty disables it")
	fixedRate = flags.Bool("fixed-rate", true, "sleep until each cycle's deadline instead of polling back to back")

	kflags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(kflags)
	flags.AddGoFlagSet(kflags)
}

// summary counts what the monitor saw on reader/#.
type summary struct {
	overruns int
	errors   int
}

func monitor(sub *bus.Subscription, done chan<- summary) {
	var s summary
	for m := range sub.Channel() {
		switch v := m.Payload.(type) {
		case types.ReaderState:
			klog.Infof("[demo] reader %s %s", v.Level, v.Status)
		case types.Overrun:
			s.overruns++
			klog.V(1).Infof("[demo] overrun: cycle %d over by %v", v.Cycle, v.Over)
		case types.RefreshError:
			s.errors++
			klog.V(1).Infof("[demo] refresh error: %s (%s): %s", v.Peripheral, v.Code, v.Error)
		}
	}
	done <- s
}

func main() {
	flags.Parse(os.Args[1:])
	defer klog.Flush()

	fc := defaultConfig()
	if *configPath != "" {
		var err error
		if fc, err = loadConfig(*configPath); err != nil {
			klog.Fatalf("[demo] %v", err)
		}
	}
	rate := *fixedRate
	if fc.FixedRate != nil && !flags.Changed("fixed-rate") {
		rate = *fc.FixedRate
	}

	i2c := sim.NewI2C()
	prps, err := fc.build(i2c)
	if err != nil {
		klog.Fatalf("[demo] %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	if *metricsAddr != "" {
		reader.RegisterMetrics(prometheus.DefaultRegisterer)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: *metricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				klog.Errorf("[demo] metrics server: %v", err)
			}
		}()
		defer srv.Close()
		klog.Infof("[demo] metrics on %s/metrics", *metricsAddr)
	}

	b := bus.NewBus(32)
	readerConn := b.NewConnection("reader")
	uiConn := b.NewConnection("ui")
	done := make(chan summary, 1)
	go monitor(uiConn.Subscribe(bus.T("reader", "#")), done)

	reader.BeginReading(prps, reader.Config{FixedRate: rate, Conn: readerConn})
	<-ctx.Done()
	reader.StopReading()

	uiConn.Disconnect()
	s := <-done
	klog.Infof("[demo] done: %d peripherals, %d overruns, %d refresh errors", len(prps), s.overruns, s.errors)
}
