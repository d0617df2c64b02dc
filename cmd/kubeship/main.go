package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/KimMachineGun/automemlimit"
	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"

	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/kubeship/kubeship/internal/cluster"
	"github.com/kubeship/kubeship/internal/config"
	"github.com/kubeship/kubeship/internal/discovery"
	"github.com/kubeship/kubeship/internal/endpoint"
	"github.com/kubeship/kubeship/internal/endpoint/cloudip"
	"github.com/kubeship/kubeship/internal/observability"
	"github.com/kubeship/kubeship/internal/orchestrator"
	"github.com/kubeship/kubeship/pkg/model"
)

func main() {
	cfg := config.Load()

	root := &cobra.Command{
		Use:           "kubeship",
		Short:         "One-shot deploy and rollback orchestrator for Kubernetes and OpenShift",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfg.ClusterType, "cluster-type", cfg.ClusterType, "cluster flavor: kubernetes, openshift or auto")
	root.PersistentFlags().StringVar(&cfg.Namespace, "namespace", cfg.Namespace, "target namespace")
	root.PersistentFlags().StringVar(&cfg.Name, "name", cfg.Name, "deployment name")
	root.PersistentFlags().StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve Prometheus metrics on this address for the run (disabled when empty)")

	deployCmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy an image, verify the rollout, and resolve its URL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg.Action = "deploy"
			return run(cmd.Context(), cfg)
		},
	}
	deployCmd.Flags().StringVar(&cfg.Image, "image", cfg.Image, "container image reference")
	deployCmd.Flags().StringVar(&cfg.ContainerName, "container-name", cfg.ContainerName, "container name (defaults to deployment name)")
	deployCmd.Flags().IntVar(&cfg.Port, "port", cfg.Port, "container port")
	deployCmd.Flags().IntVar(&cfg.Replicas, "replicas", cfg.Replicas, "replica count")
	deployCmd.Flags().StringVar(&cfg.ServiceType, "service-type", cfg.ServiceType, "ClusterIP, NodePort or LoadBalancer")
	deployCmd.Flags().StringVar(&cfg.CPULimit, "cpu-limit", cfg.CPULimit, "container CPU limit")
	deployCmd.Flags().StringVar(&cfg.MemoryLimit, "memory-limit", cfg.MemoryLimit, "container memory limit")
	deployCmd.Flags().StringVar(&cfg.CPURequest, "cpu-request", cfg.CPURequest, "container CPU request")
	deployCmd.Flags().StringVar(&cfg.MemoryRequest, "memory-request", cfg.MemoryRequest, "container memory request")
	deployCmd.Flags().StringVar(&cfg.EnvVars, "env-vars", cfg.EnvVars, "newline-delimited KEY=VALUE pairs")
	deployCmd.Flags().BoolVar(&cfg.EnableProbes, "enable-probes", cfg.EnableProbes, "add liveness/readiness probes")
	deployCmd.Flags().StringVar(&cfg.LivenessPath, "liveness-path", cfg.LivenessPath, "liveness probe path")
	deployCmd.Flags().StringVar(&cfg.ReadinessPath, "readiness-path", cfg.ReadinessPath, "readiness probe path")
	deployCmd.Flags().StringVar(&cfg.IngressHost, "ingress-host", cfg.IngressHost, "ingress host")
	deployCmd.Flags().BoolVar(&cfg.IngressTLS, "ingress-tls", cfg.IngressTLS, "enable ingress TLS")
	deployCmd.Flags().BoolVar(&cfg.AutoIngress, "auto-ingress", cfg.AutoIngress, "auto-detect ingress host")
	deployCmd.Flags().BoolVar(&cfg.CreateRoute, "create-route", cfg.CreateRoute, "create an OpenShift route")
	deployCmd.Flags().StringVar(&cfg.RouteHostname, "route-hostname", cfg.RouteHostname, "OpenShift route hostname")
	deployCmd.Flags().StringVar(&cfg.PullSecretName, "pull-secret-name", cfg.PullSecretName, "image pull secret name")
	deployCmd.Flags().StringVar(&cfg.TemplatePath, "template", cfg.TemplatePath, "manifest template path")
	deployCmd.Flags().StringVar(&cfg.HealthCheckPath, "health-check-path", cfg.HealthCheckPath, "HTTP health check path")
	deployCmd.Flags().DurationVar(&cfg.HealthCheckTimeout, "health-check-timeout", cfg.HealthCheckTimeout, "health check timeout")
	deployCmd.Flags().DurationVar(&cfg.RolloutTimeout, "rollout-timeout", cfg.RolloutTimeout, "rollout wait timeout")

	rollbackCmd := &cobra.Command{
		Use:   "rollback",
		Short: "Roll the deployment back to its previous revision",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg.Action = "rollback"
			return run(cmd.Context(), cfg)
		},
	}
	rollbackCmd.Flags().DurationVar(&cfg.RolloutTimeout, "rollout-timeout", cfg.RolloutTimeout, "rollout wait timeout")

	root.AddCommand(deployCmd, rollbackCmd)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := root.ExecuteContext(ctx); err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
}

// run validates the configuration, wires the orchestrator, executes the
// requested action, and serializes the result record to stdout. A failure
// result maps to a non-zero exit.
func run(ctx context.Context, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	restCfg := buildKubeConfig()
	kubeClient := kubernetes.NewForConfigOrDie(restCfg)
	dynamicClient := dynamic.NewForConfigOrDie(restCfg)

	if cfg.ClusterType == "auto" {
		flavor, err := discovery.DetectClusterType(kubeClient.Discovery())
		if err != nil {
			return err
		}
		cfg.ClusterType = string(flavor)
		slog.Info("cluster type detected", "cluster_type", cfg.ClusterType)
	}

	req := cfg.Request()
	slog.Info("kubeship starting",
		"action", cfg.Action,
		"cluster_type", req.ClusterType,
		"namespace", req.Namespace,
		"name", req.Name,
	)

	if missing, err := discovery.MissingPermissions(ctx, kubeClient, req.Namespace, cfg.Action); err != nil {
		slog.Warn("permission preflight failed", "error", err)
	} else if len(missing) > 0 {
		slog.Warn("current identity lacks permissions the run may need", "missing", missing)
	}

	client, err := cluster.New(req.ClusterType, kubeClient, dynamicClient)
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()
	if cfg.MetricsAddr != "" {
		srv := observability.NewServer(cfg.MetricsAddr, metrics)
		if err := srv.Start(); err != nil {
			return err
		}
		slog.Info("metrics endpoint serving", "addr", srv.Addr())
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = srv.Stop(shutdownCtx)
		}()
	}

	sources := cloudip.Sources(cloudip.Credentials{
		AWSRegion:          cfg.AWSRegion,
		AWSAccessKeyID:     cfg.AWSAccessKeyID,
		AWSSecretAccessKey: cfg.AWSSecretKey,
		DigitalOceanToken:  cfg.DOToken,
		HetznerToken:       cfg.HetznerToken,
	})
	resolver := endpoint.NewResolver(client, metrics, sources...)
	resolver.Interval = cfg.EndpointInterval
	resolver.Timeout = cfg.EndpointTimeout

	orch := orchestrator.New(client, resolver, metrics)
	orch.RolloutTimeout = cfg.RolloutTimeout
	orch.HealthInterval = cfg.HealthCheckInterval

	var result *model.OrchestrationResult
	switch cfg.Action {
	case "rollback":
		result = orch.Rollback(ctx, req)
	default:
		result = orch.Deploy(ctx, req)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}

	if result.Status != model.StatusSuccess {
		os.Exit(1)
	}
	return nil
}

// buildKubeConfig creates a Kubernetes REST config.
// It tries in-cluster config first, then falls back to kubeconfig file
// (from $KUBECONFIG or the default ~/.kube/config).
func buildKubeConfig() *rest.Config {
	cfg, err := rest.InClusterConfig()
	if err == nil {
		slog.Info("using in-cluster kubernetes config")
		return cfg
	}

	kubeconfig := os.Getenv("KUBECONFIG")
	if kubeconfig == "" {
		kubeconfig = clientcmd.RecommendedHomeFile
	}

	cfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		slog.Error("failed to build kubernetes config", "error", err)
		os.Exit(1)
	}
	slog.Info("using kubeconfig file", "path", kubeconfig)
	return cfg
}
