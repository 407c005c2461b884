// Package commands implements CLI command handlers for the indexer binary.
package commands

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/kapral18/semantic-code-search-indexer/internal/config"
	"github.com/kapral18/semantic-code-search-indexer/pkg/extractor"
	"github.com/kapral18/semantic-code-search-indexer/pkg/gitrepo"
	"github.com/kapral18/semantic-code-search-indexer/pkg/gitrepo/git2go"
	"github.com/kapral18/semantic-code-search-indexer/pkg/observability"
	"github.com/kapral18/semantic-code-search-indexer/pkg/orchestrator"
	"github.com/kapral18/semantic-code-search-indexer/pkg/queue"
	"github.com/kapral18/semantic-code-search-indexer/pkg/queue/memqueue"
	"github.com/kapral18/semantic-code-search-indexer/pkg/queue/sqlitequeue"
	"github.com/kapral18/semantic-code-search-indexer/pkg/searchbackend"
	"github.com/kapral18/semantic-code-search-indexer/pkg/searchbackend/httpclient"
)

// ErrNoRepos is returned when no --repo flags were given.
var ErrNoRepos = errors.New("at least one --repo is required")

// ErrInvalidRepoSpec indicates a --repo value did not parse.
var ErrInvalidRepoSpec = errors.New("invalid --repo value, want path[:branch]")

// repoOpenFunc abstracts git2go.Open for tests.
type repoOpenFunc func(path string) (gitrepo.Repo, error)

// queueOpenFunc abstracts queue construction (memory vs sqlite) for tests.
type queueOpenFunc func(dir string) (queue.Queue, error)

// backendOpenFunc abstracts search backend client construction for tests.
type backendOpenFunc func(cfg config.BackendConfig) (searchbackend.Client, error)

// IndexCommand holds configuration and injected collaborators for the
// index command.
type IndexCommand struct {
	configFile string
	debugTrace bool

	repoSpecs     []string
	indexName     string
	settingsIndex string
	clean         bool
	watch         bool
	parallel      bool

	cpuCores    int
	batchSize   int
	concurrency int

	diagnosticsAddr string

	repoOpen    repoOpenFunc
	queueOpen   queueOpenFunc
	backendOpen backendOpenFunc
}

// NewIndexCommand builds the `index` subcommand.
func NewIndexCommand() *cobra.Command {
	return newIndexCommandWithDeps(defaultRepoOpen, defaultQueueOpen, defaultBackendOpen)
}

func newIndexCommandWithDeps(repoOpen repoOpenFunc, queueOpen queueOpenFunc, backendOpen backendOpenFunc) *cobra.Command {
	ic := &IndexCommand{repoOpen: repoOpen, queueOpen: queueOpen, backendOpen: backendOpen}

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Run one or more repositories through the indexing pipeline",
		Long: `index discovers what changed since the last indexed commit (or
indexes everything on a clean/first run), parses changed files into chunks,
and drains them into the configured search backend.`,
		RunE: ic.run,
	}

	cmd.Flags().StringArrayVar(&ic.repoSpecs, "repo", nil,
		"Repository to index, as path[:branch] (repeatable for multi-repo runs)")
	cmd.Flags().StringVar(&ic.indexName, "index", "", "Search index name (default: repo directory name)")
	cmd.Flags().StringVar(&ic.settingsIndex, "settings-index", "", "Settings/anchor index name (default: <index>-settings)")
	cmd.Flags().BoolVar(&ic.clean, "clean", false, "Discard the existing index and anchor, then fully re-index")
	cmd.Flags().BoolVar(&ic.watch, "watch", false, "Keep draining the queue after the initial enqueue completes")
	cmd.Flags().BoolVar(&ic.parallel, "parallel", false, "Run multiple --repo entries concurrently")

	cmd.Flags().IntVar(&ic.cpuCores, "cpu-cores", 0, "Parser pool size (0 = runtime.NumCPU()/2)")
	cmd.Flags().IntVar(&ic.batchSize, "batch-size", 0, "Bulk index batch size (0 = config default)")
	cmd.Flags().IntVar(&ic.concurrency, "concurrency", 0, "Indexer worker concurrency (0 = 4 concurrent batches)")

	cmd.Flags().StringVar(&ic.diagnosticsAddr, "diagnostics-addr", "",
		"Start a /healthz, /readyz, /metrics server at this address (e.g. :6060)")

	return cmd
}

func (ic *IndexCommand) run(cmd *cobra.Command, _ []string) error {
	ic.configFile, _ = cmd.Flags().GetString("config")
	ic.debugTrace, _ = cmd.Flags().GetBool("debug-trace")

	if len(ic.repoSpecs) == 0 {
		return ErrNoRepos
	}

	cfg, err := config.LoadConfig(ic.configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	cfg.ApplyOverrides(config.Config{
		Pipeline: config.PipelineConfig{CPUCores: ic.cpuCores, BatchSize: ic.batchSize},
	})

	providers, err := observability.Init(observabilityConfig(ic.debugTrace))
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	defer func() {
		if shutdownErr := providers.Shutdown(ctx); shutdownErr != nil {
			providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
		}
	}()

	var diag *observability.DiagnosticsServer

	if ic.diagnosticsAddr != "" {
		diag, err = observability.NewDiagnosticsServer(ic.diagnosticsAddr, providers.Meter)
		if err != nil {
			return fmt.Errorf("start diagnostics server: %w", err)
		}

		defer diag.Close()
	}

	backend, err := ic.backendOpen(cfg.Backend)
	if err != nil {
		return fmt.Errorf("build search backend client: %w", err)
	}

	registry := extractor.NewRegistry(cfg.Languages)

	runs := make([]orchestrator.Run, 0, len(ic.repoSpecs))

	for _, spec := range ic.repoSpecs {
		run, runErr := ic.buildRun(cfg, registry, backend, providers.Logger, spec)
		if runErr != nil {
			return runErr
		}

		runs = append(runs, run)
	}

	results := orchestrator.RunAll(ctx, runs, ic.parallel)

	renderResults(cmd.OutOrStdout(), results)

	return firstFailure(results)
}

func (ic *IndexCommand) buildRun(
	cfg *config.Config,
	registry *extractor.Registry,
	backend searchbackend.Client,
	logger *slog.Logger,
	spec string,
) (orchestrator.Run, error) {
	repoPath, branch, err := parseRepoSpec(spec)
	if err != nil {
		return orchestrator.Run{}, err
	}

	name := filepath.Base(filepath.Clean(repoPath))

	indexName := ic.indexName
	if indexName == "" {
		indexName = name
	}

	settingsIndex := ic.settingsIndex
	if settingsIndex == "" {
		settingsIndex = indexName + "-settings"
	}

	repo, err := ic.repoOpen(repoPath)
	if err != nil {
		return orchestrator.Run{}, fmt.Errorf("open repository %s: %w", repoPath, err)
	}

	queueDir, err := resolveQueueDir(cfg.Queue, name)
	if err != nil {
		return orchestrator.Run{}, err
	}

	q, err := ic.queueOpen(queueDir)
	if err != nil {
		return orchestrator.Run{}, fmt.Errorf("open queue for %s: %w", name, err)
	}

	return orchestrator.Run{
		Config: orchestrator.RepoConfig{
			Name:          name,
			Branch:        branch,
			Index:         indexName,
			SettingsIndex: settingsIndex,
			Clean:         ic.clean,
			Watch:         ic.watch,
		},
		Repo:        repo,
		Queue:       q,
		Backend:     backend,
		Registry:    registry,
		Workers:     cfg.Pipeline.CPUCores,
		Concurrency: ic.concurrency,
		BatchSize:   cfg.Pipeline.BatchSize,
		Logger:      logger,
	}, nil
}

func parseRepoSpec(spec string) (path, branch string, err error) {
	parts := strings.SplitN(spec, ":", 2)

	path = parts[0]
	if path == "" {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidRepoSpec, spec)
	}

	branch = "main"
	if len(parts) == 2 && parts[1] != "" {
		branch = parts[1]
	}

	return path, branch, nil
}

// resolveQueueDir picks the on-disk queue directory for a repository:
// cfg.Dir is used verbatim for single-repo runs, otherwise
// cfg.BaseDir/<repoName> per the multi-repo queue root convention.
func resolveQueueDir(cfg config.QueueConfig, repoName string) (string, error) {
	if cfg.Dir != "" {
		return cfg.Dir, nil
	}

	return filepath.Join(cfg.BaseDir, repoName), nil
}

func defaultRepoOpen(path string) (gitrepo.Repo, error) {
	repo, err := git2go.Open(path)
	if err != nil {
		return nil, err
	}

	return repo, nil
}

func defaultQueueOpen(dir string) (queue.Queue, error) {
	if dir == "" {
		return memqueue.New(nil), nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create queue dir %s: %w", dir, err)
	}

	return sqlitequeue.Open(filepath.Join(dir, "queue.db"), nil)
}

func defaultBackendOpen(cfg config.BackendConfig) (searchbackend.Client, error) {
	baseURL := cfg.Endpoint

	if baseURL == "" {
		resolved, err := httpclient.ResolveCloudID(cfg.CloudID)
		if err != nil {
			return nil, fmt.Errorf("resolve backend cloud id: %w", err)
		}

		baseURL = resolved
	}

	opts := []httpclient.Option{}
	if cfg.APIKey == "" && cfg.Username != "" {
		opts = append(opts, httpclient.WithBasicAuth(cfg.Username, cfg.Password))
	}

	return httpclient.New(baseURL, cfg.APIKey, opts...), nil
}

func observabilityConfig(debugTrace bool) observability.Config {
	cfg := observability.DefaultConfig()
	cfg.DebugTrace = debugTrace
	cfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")

	return cfg
}

func firstFailure(results []orchestrator.RepoResult) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}

	return nil
}

func renderResults(w io.Writer, results []orchestrator.RepoResult) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.SeparateColumns = false
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateHeader = false

	tbl.AppendHeader(table.Row{"repo", "indexed", "deleted", "anchor", "status"})

	for _, r := range results {
		status := "ok"
		if r.Err != nil {
			status = r.Err.Error()
		}

		tbl.AppendRow(table.Row{
			r.Name,
			r.Summary.Plan.Summary.IndexOnlyCount + r.Summary.Plan.Summary.DeleteAndIndex,
			r.Summary.Plan.Summary.DeleteOnlyCount,
			r.Summary.AnchorAfter,
			status,
		})
	}

	tbl.Render()
}
