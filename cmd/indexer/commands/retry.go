package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kapral18/semantic-code-search-indexer/internal/config"
)

// RetryCommand requeues failed items for one or more repositories, the
// operator-triggered utility called out by the error handling design —
// the worker's own loop never promotes status=failed back to pending.
type RetryCommand struct {
	configFile string
	repos      []string

	queueOpen queueOpenFunc
}

// NewRetryCommand builds the `retry` subcommand.
func NewRetryCommand() *cobra.Command {
	return newRetryCommandWithDeps(defaultQueueOpen)
}

func newRetryCommandWithDeps(queueOpen queueOpenFunc) *cobra.Command {
	rc := &RetryCommand{queueOpen: queueOpen}

	cmd := &cobra.Command{
		Use:   "retry",
		Short: "Requeue failed items for redelivery",
		Long: `retry flips every status=failed item in a repository's queue back to
status=pending with its retry count reset to zero, so the next worker run
redelivers them.`,
		RunE: rc.run,
	}

	cmd.Flags().StringArrayVar(&rc.repos, "repo", nil,
		"Repository name whose queue to retry (repeatable); must match the --repo name used during indexing")

	return cmd
}

func (rc *RetryCommand) run(cmd *cobra.Command, _ []string) error {
	rc.configFile, _ = cmd.Flags().GetString("config")

	if len(rc.repos) == 0 {
		return ErrNoRepos
	}

	cfg, err := config.LoadConfig(rc.configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := cmd.Context()

	for _, name := range rc.repos {
		if retryErr := rc.retryOne(ctx, cmd, cfg.Queue, name); retryErr != nil {
			return retryErr
		}
	}

	return nil
}

func (rc *RetryCommand) retryOne(ctx context.Context, cmd *cobra.Command, qcfg config.QueueConfig, name string) error {
	dir, err := resolveQueueDir(qcfg, name)
	if err != nil {
		return err
	}

	q, err := rc.queueOpen(dir)
	if err != nil {
		return fmt.Errorf("open queue for %s: %w", name, err)
	}
	defer q.Close()

	n, err := q.RequeueFailed(ctx)
	if err != nil {
		return fmt.Errorf("requeue failed items for %s: %w", name, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s (%s): requeued %d item(s)\n", name, filepath.Base(dir), n)

	return nil
}
