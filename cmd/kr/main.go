package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/zpdzap/katarunner/internal/config"
	"github.com/zpdzap/katarunner/internal/execution"
	"github.com/zpdzap/katarunner/internal/identity"
	"github.com/zpdzap/katarunner/internal/logging"
	"github.com/zpdzap/katarunner/internal/metrics"
	"github.com/zpdzap/katarunner/internal/runner"
	"github.com/zpdzap/katarunner/internal/sandbox"
	"github.com/zpdzap/katarunner/internal/shell"
	"github.com/zpdzap/katarunner/internal/tui"
)

// app holds what every subcommand needs, built once flags are parsed.
type app struct {
	configDir string
	image     string
	kataID    string

	cfg     *config.Config
	log     *logrus.Logger
	metrics *metrics.Recorder
	shell   *shell.Local
	docker  shell.Docker
}

func main() {
	a := &app{}
	root := &cobra.Command{
		Use:           "kr",
		Short:         "katarunner runs cyber-dojo katas in isolated docker sandboxes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "init" {
				return nil
			}
			return a.setup()
		},
	}
	root.PersistentFlags().StringVar(&a.configDir, "config-dir", "", "directory holding .katarunner/ (default: working directory)")
	root.PersistentFlags().StringVar(&a.image, "image", "", "image name, e.g. cyberdojofoundation/gcc_assert:shared_process")
	root.PersistentFlags().StringVar(&a.kataID, "kata", "", "10 character kata id")

	root.AddCommand(
		imagePulledCmd(a),
		imagePullCmd(a),
		kataNewCmd(a),
		kataOldCmd(a),
		avatarNewCmd(a),
		avatarOldCmd(a),
		runCmd(a),
		listCmd(a),
		sweepCmd(a),
		dashboardCmd(a),
		configCmd(a),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	a.flushMetrics()
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		if identity.IsBadArgument(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func (a *app) baseDir() (string, error) {
	if a.configDir != "" {
		return a.configDir, nil
	}
	return os.Getwd()
}

func (a *app) setup() error {
	dir, err := a.baseDir()
	if err != nil {
		return err
	}
	cfg, err := config.LoadOrDefault(dir)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = log
	a.metrics = metrics.New()
	a.shell = shell.NewLocal(log.WithField("component", "shell"))
	a.docker = shell.NewDocker(cfg.Docker.Binary)
	return nil
}

// runner builds a KataRunner for the --image and --kata flags.
func (a *app) runner() (*runner.KataRunner, error) {
	log := logrus.NewEntry(a.log)
	return runner.New(runner.Deps{
		Shell:             a.shell,
		Disk:              shell.LocalDisk{},
		Engine:            execution.New(a.cfg.Output.MaxBytes, log),
		Docker:            a.docker,
		Log:               log,
		Metrics:           a.metrics,
		KeepAlive:         a.cfg.Docker.KeepAlive,
		StagingDir:        a.cfg.Staging.Dir,
		ClassifierTimeout: a.cfg.Classifier.Timeout,
	}, a.image, a.kataID)
}

func (a *app) inventory() *sandbox.Inventory {
	return &sandbox.Inventory{
		Docker: a.docker,
		Shell:  a.shell,
		Log:    a.log.WithField("component", "inventory"),
	}
}

func (a *app) flushMetrics() {
	if a.cfg == nil || a.cfg.Metrics.Textfile == "" {
		return
	}
	if err := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
		a.log.WithError(err).Warn("writing metrics textfile")
	}
}

func dashboardCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Live view of kata sandboxes on this host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Docker logging would scribble over the alt screen.
			a.log.SetOutput(io.Discard)
			return tui.Run(a.inventory())
		},
	}
}

func configCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage .katarunner/config.yaml",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a config tuned to this host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := a.baseDir()
			if err != nil {
				return err
			}
			if config.Exists(dir) {
				fmt.Println("katarunner already configured in this directory.")
				return nil
			}

			detection := config.Detect()
			cfg := config.Default()
			detection.Apply(cfg)
			if err := config.Save(dir, cfg); err != nil {
				return fmt.Errorf("saving config: %w", err)
			}

			fmt.Printf("Initialized katarunner config\n")
			fmt.Printf("  Config: %s/%s\n", config.ConfigPath(dir), config.ConfigFile)
			fmt.Printf("  Docker: %s\n", orNone(detection.DockerBinary))
			fmt.Printf("  Staging: %s\n", cfg.Staging.Dir)
			return nil
		},
	})
	return cmd
}

func orNone(s string) string {
	if s == "" {
		return "(not found, using docker from PATH)"
	}
	return s
}
