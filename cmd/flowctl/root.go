package main

import (
	"flowclient/internal/apperrors"
	"flowclient/internal/config"
	"flowclient/internal/flow"
	"flowclient/internal/notify"
	"flowclient/internal/observability"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// app carries state shared by all subcommands of one invocation.
type app struct {
	stdout io.Writer
	stderr io.Writer

	configPath      string
	serverURL       string
	apiKeyFile      string
	logLevel        string
	logFormat       string
	metricsAddr     string
	callbackURL     string
	callbackKeyFile string
	pollInterval    time.Duration
	retries         int
	quiet           bool

	cfg      *config.ClientConfig
	client   *flow.Client
	notifier *notify.Notifier
	metrics  *observability.Metrics
	exporter *metricsExporter
}

// partyFlags are the role and party a job-scoped command acts as.
type partyFlags struct {
	role    string
	partyID string
}

func (p *partyFlags) register(cmd *cobra.Command, required bool) {
	cmd.Flags().StringVar(&p.role, "role", "guest", "Role of the querying party")
	cmd.Flags().StringVar(&p.partyID, "party-id", "", "Party id of the querying party")
	if required {
		_ = cmd.MarkFlagRequired("party-id")
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "flowctl",
		Short: "Submit and inspect FATE-Flow jobs",
		Long: "flowctl submits training and upload jobs to a FATE-Flow server,\n" +
			"monitors them to completion and downloads component outputs.",
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", "", "Path to YAML config file")
	f.StringVar(&a.serverURL, "server", "", "FATE-Flow server URL (overrides config)")
	f.StringVar(&a.apiKeyFile, "api-key-file", "", "Path to file holding the bearer token")
	f.StringVar(&a.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	f.StringVar(&a.logFormat, "log-format", "text", "Log format: text or json")
	f.StringVar(&a.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")
	f.StringVar(&a.callbackURL, "callback-url", "", "Send job events as CloudEvents to this URL")
	f.StringVar(&a.callbackKeyFile, "callback-key-file", "", "Path to file holding the callback signing key")
	f.DurationVar(&a.pollInterval, "poll-interval", 0, "Interval between status polls (overrides config)")
	f.IntVar(&a.retries, "retries", -1, "Retries for idempotent requests (overrides config)")
	f.BoolVarP(&a.quiet, "quiet", "q", false, "Do not print monitoring progress")

	root.AddCommand(
		newSubmitCmd(a),
		newUploadCmd(a),
		newMonitorCmd(a),
		newQueryCmd(a),
		newOutputCmd(a),
		newPredictDSLCmd(a),
	)
	return root
}

// setup loads configuration and builds the client, notifier and metrics
// for the command about to run.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	level, err := parseLevel(a.logLevel)
	if err != nil {
		return err
	}
	initLogging(level, a.logFormat, a.stderr)

	cfg, err := config.LoadClientConfig(a.configPath)
	if err != nil {
		return apperrors.Validation("config", err.Error())
	}
	a.applyOverrides(cmd, cfg)
	a.cfg = cfg

	var flowOpts []flow.Option
	var notifyOpts []notify.Option
	if cfg.MetricsAddr != "" {
		metrics, handler, err := observability.NewMetrics(cmd.Context())
		if err != nil {
			return apperrors.Internal("metrics.init", err)
		}
		a.metrics = metrics
		a.exporter = newMetricsExporter(cfg.MetricsAddr, handler)
		flowOpts = append(flowOpts, flow.WithMetrics(metrics))
		notifyOpts = append(notifyOpts, notify.WithMetrics(metrics))
	}

	progress := a.stdout
	if a.quiet {
		progress = io.Discard
	}
	flowOpts = append(flowOpts, flow.WithProgress(progress))

	client, err := flow.New(cfg, flowOpts...)
	if err != nil {
		return err
	}
	a.client = client

	a.notifier = notify.New(notify.Config{
		URL:     cfg.Callback.URL,
		Key:     cfg.Callback.Key,
		Timeout: cfg.Callback.Timeout,
		Retries: cfg.Callback.Retries,
	}, notifyOpts...)

	slog.Debug("flowctl configured",
		"server", client.BaseURL(),
		"metrics", cfg.MetricsAddr != "",
		"callbacks", a.notifier.Enabled(),
	)
	return nil
}

// applyOverrides copies explicitly set flags over the loaded configuration.
func (a *app) applyOverrides(cmd *cobra.Command, cfg *config.ClientConfig) {
	f := cmd.Flags()
	if f.Changed("server") {
		cfg.ServerURL = a.serverURL
	}
	if f.Changed("api-key-file") {
		cfg.APIKeyFile = a.apiKeyFile
		cfg.APIKey = config.GetSecretFile(a.apiKeyFile)
	}
	if f.Changed("metrics-addr") {
		cfg.MetricsAddr = a.metricsAddr
	}
	if f.Changed("callback-url") {
		cfg.Callback.URL = a.callbackURL
	}
	if f.Changed("callback-key-file") {
		cfg.Callback.KeyFile = a.callbackKeyFile
		cfg.Callback.Key = config.GetSecretFile(a.callbackKeyFile)
	}
	if f.Changed("poll-interval") && a.pollInterval > 0 {
		cfg.PollInterval = a.pollInterval
	}
	if f.Changed("retries") && a.retries >= 0 {
		cfg.Retries = a.retries
	}
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, apperrors.Validation("log-level", fmt.Sprintf("unknown log level %q", s))
	}
	return level, nil
}

// initLogging configures the global slog default. Format must be "text"
// or "json"; anything else falls back to text.
func initLogging(level slog.Level, format string, w io.Writer) {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	slog.SetDefault(slog.New(handler))
}
