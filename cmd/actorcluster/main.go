package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/actorcluster/actorcluster/pkg/bootstrap"
	"github.com/actorcluster/actorcluster/pkg/log"
	"github.com/actorcluster/actorcluster/pkg/metrics"
	"github.com/actorcluster/actorcluster/pkg/node"
	"github.com/actorcluster/actorcluster/pkg/types"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "actorcluster",
	Short: "Single-host actor cluster runtime",
	Long: `actorcluster runs a consistent-hash-sharded mesh of actor worker
processes on one host, coordinated through a shared memory-mapped directory
and Unix-domain-socket transport.`,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(runCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the cluster (spawns N worker processes)",
	Long: `run reads a cluster config from --config, re-execs this binary
once per worker, and blocks until every worker exits.

This command itself is the bootstrap parent. Re-exec'd worker processes are
started with the same arguments, so they reach this handler too; it detects
them with bootstrap.IsWorkerProcess() and runs the worker lifecycle instead
of reading --config.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringP("config", "f", "", "YAML cluster config file (required)")
}

// clusterConfigFile is the on-disk shape of a cluster config. It embeds
// types.ClusterConfig inline, so the file's keys are exactly the yaml tags
// of ClusterConfig's fields.
type clusterConfigFile struct {
	types.ClusterConfig `yaml:",inline"`
}

func runRun(cmd *cobra.Command, args []string) error {
	// A re-exec'd worker process is started with the parent's arguments and
	// so reaches this handler as well. It takes its configuration from the
	// env vars bootstrap.WorkerEnv set on it, not from --config, so route it
	// straight into the worker lifecycle.
	if bootstrap.IsWorkerProcess() {
		return bootstrap.Create(types.ClusterConfig{}).OnWorkerStart(onWorkerStart).Run()
	}

	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		return fmt.Errorf("--config is required")
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var cfg clusterConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	metrics.SetVersion("dev")
	metrics.RegisterComponent("transport", false, "starting")
	metrics.RegisterComponent("directory", false, "starting")

	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			mux.Handle("/health", metrics.HealthHandler())
			mux.Handle("/ready", metrics.ReadyHandler())
			mux.Handle("/live", metrics.LivenessHandler())
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				fmt.Fprintf(os.Stderr, "metrics server error: %v\n", err)
			}
		}()
		fmt.Printf("metrics endpoint: http://%s/metrics\n", cfg.MetricsAddr)
	}

	fmt.Printf("starting cluster: %d workers, socket dir %s\n", cfg.WorkerCount, cfg.SocketDir)
	return bootstrap.Create(cfg.ClusterConfig).Run()
}

// onWorkerStart is invoked once per worker after bind, barrier and connect
// have completed. The CLI itself spawns no actors; embedding applications
// build their own binary around pkg/bootstrap to do that. It does forward
// the worker's lifecycle events into the structured log, since that is the
// only visibility an operator running the bare CLI has into the mesh.
func onWorkerStart(n *node.Node) {
	metrics.RegisterComponent("transport", true, "bound")
	metrics.RegisterComponent("directory", true, "attached")
	workerLog := log.WithWorker(int(n.ID()))
	workerLog.Info().Msg("worker ready")

	if broker := n.Broker(); broker != nil {
		sub := broker.Subscribe()
		go func() {
			for ev := range sub {
				workerLog.Debug().Str("event", string(ev.Type)).Msg(ev.Message)
			}
		}()
	}
}
