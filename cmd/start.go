package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/neuropipe/broker/broker"
	"github.com/neuropipe/broker/httpapi"
	"github.com/neuropipe/broker/internal/env"
	"github.com/neuropipe/broker/internal/metrics"
	"github.com/neuropipe/broker/registry"
)

var (
	host string
	port int

	adminHost string
	adminPort int

	numListeners    int
	reuseport       bool
	sessionQueueCap int
	trace           bool
)

func init() {
	flags := StartCmd.PersistentFlags()

	flags.StringVarP(&host, "host", "a", "", "The host to listen for client connections on (defaults to the environment config)")
	flags.IntVarP(&port, "port", "p", 0, "The port to listen for client connections on (defaults to the environment config)")

	flags.StringVar(&adminHost, "admin-host", "", "The host to serve the admin HTTP surface on")
	flags.IntVar(&adminPort, "admin-port", 0, "The port to serve the admin HTTP surface on")

	flags.IntVar(&numListeners, "listeners", 0, "Number of parallel TCP listeners, 0 defaults to the number of CPUs")
	flags.BoolVar(&reuseport, "reuseport", true, "Bind listeners with SO_REUSEPORT")
	flags.IntVar(&sessionQueueCap, "session-queue-cap", 0, "Per-session outbound queue capacity before a slow subscriber is dropped, 0 leaves it unbounded")
	flags.BoolVar(&trace, "trace", false, "Log every parsed client command")
}

var StartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the NeuroPipe broker",
	Long: `Start the NeuroPipe broker

Usage
	neuropipe start
`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx, signalStop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer signalStop()

		log, err := env.MakeLogger()
		if err != nil {
			return err
		}

		fileLimit, err := setFileLimit()
		if err != nil {
			return err
		}
		log.Info("Set file limit", zap.Uint64("fileLimit", fileLimit))

		conf, err := env.LoadConfig(ctx)
		if err != nil {
			return err
		}
		applyFlagOverrides(cmd, conf)

		metrics.Default()
		reg := registry.New()

		b := broker.New(broker.Options{
			Host:            conf.Host,
			Port:            conf.Port,
			NumListeners:    conf.NumListeners,
			Reuseport:       conf.Reuseport,
			SessionQueueCap: conf.SessionQueueCap,
			Trace:           conf.Trace,
			Registry:        reg,
			Log:             log.Named("broker"),
		})
		b.Start(ctx)

		router := httpapi.NewRouter(conf.DebugHTTP, b, reg, log.Named("http"))
		httpServer := &http.Server{
			Addr:    net.JoinHostPort(conf.AdminHost, strconv.Itoa(conf.AdminPort)),
			Handler: router,
		}

		go func() {
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Admin HTTP server errored", zap.Error(err))
			}
		}()

		printBanner(conf.Host, conf.Port, conf.AdminHost, conf.AdminPort)
		log.Info("Listening",
			zap.String("host", conf.Host),
			zap.Int("port", conf.Port),
			zap.String("adminHost", conf.AdminHost),
			zap.Int("adminPort", conf.AdminPort))

		<-ctx.Done()
		signalStop()
		log.Info("Shutting down gracefully, press Ctrl+C again to force")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		httpServer.SetKeepAlivesEnabled(false)

		var shutdownErr error
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			shutdownErr = multierr.Append(shutdownErr, err)
		}
		if err := b.Close(); err != nil {
			shutdownErr = multierr.Append(shutdownErr, err)
		}

		if shutdownErr != nil {
			log.Error("Shutdown did not complete cleanly", zap.Error(shutdownErr))
		}

		log.Info("Exiting")
		return nil
	},
}

// applyFlagOverrides lets explicit CLI flags win over the environment
// config. Most flags are applied only when they differ from their zero
// value; reuseport and session-queue-cap, whose zero values are meaningful
// settings, are applied whenever cobra recorded that they were set.
func applyFlagOverrides(cmd *cobra.Command, conf *env.Config) {
	if host != "" {
		conf.Host = host
	}
	if port != 0 {
		conf.Port = port
	}
	if adminHost != "" {
		conf.AdminHost = adminHost
	}
	if adminPort != 0 {
		conf.AdminPort = adminPort
	}
	if numListeners != 0 {
		conf.NumListeners = numListeners
	}
	if cmdFlagChanged(cmd, "reuseport") {
		conf.Reuseport = reuseport
	}
	if cmdFlagChanged(cmd, "session-queue-cap") {
		conf.SessionQueueCap = sessionQueueCap
	}
	if trace {
		conf.Trace = trace
	}
}

func cmdFlagChanged(cmd *cobra.Command, name string) bool {
	flag := cmd.PersistentFlags().Lookup(name)
	return flag != nil && flag.Changed
}

func printBanner(host string, port int, adminHost string, adminPort int) {
	banner := color.New(color.FgCyan, color.Bold)
	banner.Println("=== NeuroPipe Broker Running ===")

	detail := color.New(color.FgGreen)
	detail.Printf("Listen:  %s:%d\n", host, port)
	detail.Printf("Admin:   http://%s:%d\n", adminHost, adminPort)
	detail.Println("Commands: PUBLISH, SUBSCRIBE, UNSUBSCRIBE, PING")
}

func setFileLimit() (uint64, error) {
	var rLimit syscall.Rlimit

	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		return 0, err
	}

	rLimit.Cur = rLimit.Max
	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		return 0, err
	}

	return rLimit.Cur, nil
}
