// Package cli wires the transfer managers to a terminal workflow: offer
// and answer codes travel by copy-paste, payloads by data channel.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/09sachin/fileshare/internal/logger"
	"github.com/09sachin/fileshare/internal/store"
)

var (
	dbPath      string
	stunServers []string
)

var rootCmd = &cobra.Command{
	Use:  `fileshare`,
	Long: `fileshare transfers files and chat between browsers-less peers over direct data channels, with connection codes exchanged by hand`,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "fileshare.db", "path of the local history database")
	rootCmd.PersistentFlags().StringSliceVar(&stunServers, "stun", nil, "STUN server urls (defaults to public servers)")

	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(receiveCmd)
	rootCmd.AddCommand(hostCmd)
	rootCmd.AddCommand(joinCmd)
	rootCmd.AddCommand(historyCmd)
}

// openHistory opens the ledger best-effort; a broken database costs the
// session its history, not its transfer.
func openHistory() *store.HistoryStore {
	db, err := store.NewDB(dbPath)
	if err != nil {
		logger.NewLogger().Warnf("history disabled: %v", err)
		return nil
	}
	return store.NewHistoryStore(db)
}
