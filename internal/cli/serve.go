package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"k8s.io/client-go/kubernetes"
	metricsclient "k8s.io/metrics/pkg/client/clientset/versioned"

	"github.com/chaosdojo/chaosdojo/internal/chaos"
	"github.com/chaosdojo/chaosdojo/internal/cluster"
	"github.com/chaosdojo/chaosdojo/internal/history"
	"github.com/chaosdojo/chaosdojo/internal/kube"
	"github.com/chaosdojo/chaosdojo/internal/llm"
	"github.com/chaosdojo/chaosdojo/internal/server"
)

var serveConfig struct {
	Listen        string
	LLMEndpoint   string
	Model         string
	APIKey        string
	Selector      string
	UncordonDelay time.Duration
	DataDir       string
	NoHistory     bool
	WebhookURL    string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chaos dashboard",
	Long: `Start the web dashboard.

Builds a Kubernetes client from --kubeconfig, $KUBECONFIG or the in-cluster
environment. If none of those work the dashboard still starts and every
scenario runs in simulated mode.

Examples:
  # Serve against the current kubeconfig, narrate via OpenAI
  OPENAI_API_KEY=sk-... chaosdojo serve

  # Local model, custom victim selector
  chaosdojo serve --llm-endpoint http://localhost:11434/v1 --model mixtral:8x22b --selector app=web`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveConfig.Listen, "listen", ":8080", "address to serve the dashboard on")
	serveCmd.Flags().StringVar(&serveConfig.LLMEndpoint, "llm-endpoint", "https://api.openai.com/v1", "OpenAI-compatible API base URL")
	serveCmd.Flags().StringVar(&serveConfig.Model, "model", "gpt-4.1-mini", "model for narration")
	serveCmd.Flags().StringVar(&serveConfig.APIKey, "api-key", "", "API key (default $OPENAI_API_KEY)")
	serveCmd.Flags().StringVar(&serveConfig.Selector, "selector", "app=nginx", "label selector matching victim pods")
	serveCmd.Flags().DurationVar(&serveConfig.UncordonDelay, "uncordon-delay", 30*time.Second, "how long a cordoned node stays unschedulable")
	serveCmd.Flags().StringVar(&serveConfig.DataDir, "data-dir", "", "directory for the run history (default $HOME/.chaosdojo)")
	serveCmd.Flags().BoolVar(&serveConfig.NoHistory, "no-history", false, "disable the on-disk run history")
	serveCmd.Flags().StringVar(&serveConfig.WebhookURL, "webhook-url", "", "optional endpoint to POST run summaries to")

	viper.BindPFlag("llm-endpoint", serveCmd.Flags().Lookup("llm-endpoint"))
	viper.BindPFlag("model", serveCmd.Flags().Lookup("model"))
	viper.BindPFlag("listen", serveCmd.Flags().Lookup("listen"))
	viper.BindPFlag("webhook-url", serveCmd.Flags().Lookup("webhook-url"))
}

func runServe() error {
	logger := logrus.StandardLogger()

	// A missing cluster is not fatal; the dashboard degrades to simulated mode.
	var (
		client        kubernetes.Interface
		metricsClient metricsclient.Interface
	)
	if c, err := kube.BuildKubeClient(GetKubeconfig()); err != nil {
		logger.WithError(err).Warn("no Kubernetes client, running in simulated mode")
	} else {
		client = c
		if mc, err := kube.BuildMetricsClient(GetKubeconfig()); err == nil {
			metricsClient = mc
		}
	}

	prober := kube.NewProber(client, logger)
	engine := chaos.New(client, prober, chaos.Config{
		Namespace:     GetNamespace(),
		Selector:      serveConfig.Selector,
		UncordonDelay: serveConfig.UncordonDelay,
	}, logger)
	monitor := cluster.NewMonitor(client, metricsClient, prober, GetNamespace(), logger)
	narrator := llm.NewNarrator(llm.Client{
		Endpoint: viper.GetString("llm-endpoint"),
		Model:    viper.GetString("model"),
		APIKey:   serveConfig.APIKey,
	}, logger)

	var hist *history.Log
	if !serveConfig.NoHistory {
		dir := serveConfig.DataDir
		if dir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("resolve data dir: %w", err)
			}
			dir = filepath.Join(home, ".chaosdojo")
		}
		var err error
		if hist, err = history.Open(dir); err != nil {
			return fmt.Errorf("open run history: %w", err)
		}
	}

	srv := server.New(engine, monitor, narrator, hist, logger)
	if wh := server.NewWebhook(viper.GetString("webhook-url"), logger); wh != nil {
		srv.SetWebhook(wh)
	}
	httpSrv := &http.Server{
		Addr:              serveConfig.Listen,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", serveConfig.Listen).Info("dashboard listening")
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	// Run pending uncordons now so no node stays stranded.
	if pending := engine.PendingUncordons(); len(pending) > 0 {
		logger.WithField("nodes", pending).Info("flushing scheduled uncordons")
	}
	engine.Flush()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
