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
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/eslsoft/vocsync/internal/app"
	"github.com/eslsoft/vocsync/internal/infrastructure/watcher"
)

const (
	daemonIntervalKey     = "sync.interval"
	daemonPushOnChangeKey = "sync.daemon.push_on_change"
)

// daemonCmd keeps syncing in the background until interrupted.
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Sync now, then every interval and whenever the local store changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		container, cleanup, err := app.Initialize()
		if err != nil {
			return fmt.Errorf("initialize: %w", err)
		}
		defer cleanup()

		logger := container.Logger
		engine := container.Engine
		cfg := container.Config

		initial := engine.SyncToRemote(ctx)
		if initial.Success {
			logger.WithField("synced", initial.SyncedItems.Total()).Info("initial sync finished")
		} else {
			logger.WithField("errors", initial.Errors).Warn("initial sync finished with errors")
		}

		engine.StartPeriodicSync(cfg.Sync.Interval)
		defer engine.StopPeriodicSync()

		w, err := watcher.New(cfg.Local.Path, cfg.Sync.WatchDebounce, logger)
		if err != nil {
			return fmt.Errorf("create watcher: %w", err)
		}
		pushOnChange := viper.GetBool(daemonPushOnChangeKey)
		onChange := func() {
			engine.IncrementPendingChanges()
			if !pushOnChange {
				return
			}
			if result := engine.SyncToRemote(ctx); !result.Success {
				logger.WithField("errors", result.Errors).Warn("sync after local change finished with errors")
			}
		}
		skip := func() bool { return engine.GetSyncStatus().IsSyncing }
		if err := w.Start(onChange, skip); err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
		defer func() {
			if err := w.Stop(); err != nil {
				logger.WithError(err).Warn("stop watcher")
			}
		}()

		logger.WithField("path", cfg.Local.Path).Info("watching local store")
		<-ctx.Done()

		status := engine.GetSyncStatus()
		logger.WithFields(logrus.Fields{
			"last_sync":       status.LastSyncTime,
			"pending_changes": status.PendingChanges,
		}).Info("shutting down")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)

	daemonCmd.Flags().Duration("interval", 0, "periodic sync interval (default 5m)")
	daemonCmd.Flags().Bool("push-on-change", false, "push as soon as the local store changes")

	bindFlagToViper(daemonIntervalKey, daemonCmd.Flags().Lookup("interval"))
	bindFlagToViper(daemonPushOnChangeKey, daemonCmd.Flags().Lookup("push-on-change"))
}
