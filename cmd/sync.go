/*
Copyright © 2025 Ambor <saltbo@foxmail.com>

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/eslsoft/vocsync/internal/app"
	"github.com/eslsoft/vocsync/internal/entity"
)

const (
	pushPruneKey = "sync.push.prune_orphans"
)

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Upload the local dataset to the remote database",
	Long: `push runs one sync to the remote database: word books, then word cards,
then book membership (skipped when any card failed), then practice history.
The result is printed as JSON. The command fails when the run reported errors.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		container, cleanup, err := app.Initialize()
		if err != nil {
			return fmt.Errorf("initialize: %w", err)
		}
		defer cleanup()

		result := container.Engine.SyncToRemote(cmd.Context())
		if err := printResult(cmd.OutOrStdout(), result); err != nil {
			return err
		}
		if !result.Success {
			return fmt.Errorf("push finished with %d error(s)", len(result.Errors))
		}

		if viper.GetBool(pushPruneKey) {
			removed, err := container.Engine.PruneOrphanCards(cmd.Context())
			if err != nil {
				return fmt.Errorf("prune orphan cards: %w", err)
			}
			container.Logger.WithField("removed", removed).Info("orphan cards pruned")
		}
		return nil
	},
}

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Merge the remote dataset into the local store",
	Long: `pull downloads the user's remote word books, cards and memberships and adds
whatever the local store is missing. Existing local cards keep their learning
status.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		container, cleanup, err := app.Initialize()
		if err != nil {
			return fmt.Errorf("initialize: %w", err)
		}
		defer cleanup()

		result := container.Engine.SyncFromRemote(cmd.Context())
		if err := printResult(cmd.OutOrStdout(), result); err != nil {
			return err
		}
		if !result.Success {
			return fmt.Errorf("pull finished with %d error(s)", len(result.Errors))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pushCmd, pullCmd)

	for _, c := range []*cobra.Command{pushCmd, pullCmd} {
		c.Flags().Int("chunk-size", 0, "distinct words per card chunk (default 50)")
		c.Flags().Int("concurrency", 0, "card chunks in flight at once (default 1)")
		c.Flags().Bool("no-history", false, "skip the practice history phase")
	}
	pushCmd.Flags().Bool("prune-orphans", false, "delete remote cards that belong to no book after a successful push")

	bindSyncFlags(pushCmd)
	bindSyncFlags(pullCmd)
	bindFlagToViper(pushPruneKey, pushCmd.Flags().Lookup("prune-orphans"))
}

// bindSyncFlags binds the tuning flags of c when c is the command being run.
func bindSyncFlags(c *cobra.Command) {
	prev := c.PreRunE
	c.PreRunE = func(cmd *cobra.Command, args []string) error {
		bindFlagToViper("sync.chunk_size", cmd.Flags().Lookup("chunk-size"))
		bindFlagToViper("sync.concurrency", cmd.Flags().Lookup("concurrency"))
		if off, _ := cmd.Flags().GetBool("no-history"); off {
			viper.Set("sync.history_enabled", false)
		}
		if prev != nil {
			return prev(cmd, args)
		}
		return nil
	}
}

func printResult(w io.Writer, result entity.SyncResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
