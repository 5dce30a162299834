package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/pingcap-incubator/tinymvcc/config"
	"github.com/pingcap-incubator/tinymvcc/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	logLevel   string

	gitHash = "None"
)

// loadConfig reads the config file named by --config and sets up the global logger.
func loadConfig() (*config.Config, error) {
	conf, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		conf.Log.Level = logLevel
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if err := conf.SetupLogger(); err != nil {
		return nil, err
	}
	log.Info("config loaded", zap.String("git-hash", gitHash), zap.Reflect("engine", conf.Engine))
	return conf, nil
}

// serveStatus exposes /metrics and pprof on the status address.
func serveStatus(conf *config.Config) {
	if !conf.Status.Metrics {
		return
	}
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Info("status server started", zap.String("addr", conf.Status.Addr))
		if err := http.ListenAndServe(conf.Status.Addr, nil); err != nil {
			log.Error("status server stopped", zap.Error(err))
		}
	}()
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	sc := make(chan os.Signal, 1)
	signal.Notify(sc,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	go func() {
		sig := <-sc
		fmt.Fprintf(os.Stderr, "\nGot signal [%v] to exit.\n", sig)
		cancel()
	}()

	rootCmd := &cobra.Command{
		Use:          "tinymvcc-ctl",
		Short:        "Run and inspect TinyMVCC transactions",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "L", "", "override the log level")
	rootCmd.AddCommand(
		newDemoCommand(),
		newBenchCommand(ctx),
	)

	err := rootCmd.Execute()
	cancel()
	log.Sync()
	if err != nil {
		os.Exit(1)
	}
}
