package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "list past transfers and messages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		hist := openHistory()
		if hist == nil {
			return errors.New("history database unavailable")
		}

		transfers, err := hist.Transfers(historyLimit)
		if err != nil {
			return err
		}
		fmt.Println("transfers:")
		if len(transfers) == 0 {
			fmt.Println("  none")
		}
		for _, rec := range transfers {
			fmt.Printf("  %s  %-8s  %-30s  %10d bytes  %s\n",
				time.Unix(rec.CreatedAt, 0).Format("2006-01-02 15:04:05"),
				rec.Direction, rec.FileName, rec.Size, rec.Checksum[:min(12, len(rec.Checksum))])
		}

		messages, err := hist.Messages(historyLimit)
		if err != nil {
			return err
		}
		fmt.Println("messages:")
		if len(messages) == 0 {
			fmt.Println("  none")
		}
		for _, rec := range messages {
			fmt.Printf("  %s  %-10s  %s\n",
				time.UnixMilli(rec.Timestamp).Format("2006-01-02 15:04:05"),
				rec.Sender, rec.Content)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "max records per section")
}
