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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eslsoft/vocsync/internal/infrastructure/config"
	"github.com/eslsoft/vocsync/internal/infrastructure/database"
	"github.com/eslsoft/vocsync/internal/infrastructure/logging"
)

// dbInitCmd creates the local and remote schemas.
var dbInitCmd = &cobra.Command{
	Use:   "db-init",
	Short: "Create the local store and migrate the remote schema",
	Long:  "Creates the SQLite store at local.path and applies the remote schema. go-sqlite3 requires a CGO_ENABLED=1 build. Use --local-only to skip the remote database.",
	RunE: func(cmd *cobra.Command, args []string) error {
		localOnly, _ := cmd.Flags().GetBool("local-only")

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger, closeLog, err := logging.NewLogger(cfg)
		if err != nil {
			return fmt.Errorf("create logger: %w", err)
		}
		defer closeLog()

		_, closeLocal, err := database.OpenLocal(cfg.Local.Path)
		if err != nil {
			return err
		}
		closeLocal()
		logger.WithField("path", cfg.Local.Path).Info("local store ready")

		if localOnly {
			return nil
		}

		pool, closePool, err := database.NewConnection(cfg, logger)
		if err != nil {
			return err
		}
		defer closePool()
		if err := database.MigrateRemote(cmd.Context(), pool); err != nil {
			return err
		}
		logger.WithField("host", cfg.Remote.Host).WithField("database", cfg.Remote.Name).Info("remote schema migrated")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbInitCmd)
	dbInitCmd.Flags().Bool("local-only", false, "only create the local store")
}
