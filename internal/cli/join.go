package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/09sachin/fileshare/internal/broadcast"
	"github.com/09sachin/fileshare/internal/logger"
	"github.com/09sachin/fileshare/internal/protocol"
	"github.com/09sachin/fileshare/internal/store"
)

var (
	joinName string
	joinDir  string
)

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "join a broadcast room",
	Long:  `join consumes a host's join code and enters the room. Plain lines are sent as chat; broadcast files land in the output directory. /quit leaves.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.NewLogger()
		hist := openHistory()

		mgr := broadcast.New(broadcast.Options{
			Role:        broadcast.RoleSubscriber,
			Name:        joinName,
			STUNServers: stunServers,
			Logger:      log,
			OnMessage: func(msg protocol.ChatMessage) {
				printChat(msg)
				recordChat(hist, log, msg)
			},
			OnFileReceived: func(f broadcast.ReceivedFile) {
				path, err := savePayload(joinDir, f.Name, f.Data)
				if err != nil {
					log.Errorf("saving %s failed: %v", f.Name, err)
					return
				}
				fmt.Printf("* received %s (%d bytes)\n", path, len(f.Data))
				if hist != nil {
					if err := hist.RecordTransfer(store.TransferRecord{
						FileName:  f.Name,
						Size:      int64(len(f.Data)),
						MimeType:  f.MimeType,
						Checksum:  store.Checksum(f.Data),
						Direction: "received",
						Peer:      f.FileID,
					}); err != nil {
						log.Warnf("history write failed: %v", err)
					}
				}
			},
			OnError: func(err error) { log.Warnf("room error: %v", err) },
		})
		defer mgr.Destroy()

		offer, err := readEnvelope("Paste the join code: ")
		if err != nil {
			return err
		}

		answer, err := mgr.CreateAnswer(cmd.Context(), offer)
		if err != nil {
			return err
		}
		if err := printEnvelope("Hand this response back to the host:", answer); err != nil {
			return err
		}

		fmt.Println("waiting for the host to admit you; chat below")

		for {
			line, err := readLine()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			if line == "" {
				continue
			}
			if line == "/quit" {
				return nil
			}
			if _, err := mgr.SendMessage(line); err != nil {
				fmt.Println("message failed:", err)
			}
		}
	},
}

func init() {
	joinCmd.Flags().StringVarP(&joinName, "name", "n", "", "display name shown to the room")
	joinCmd.Flags().StringVarP(&joinDir, "out", "o", ".", "directory to save broadcast files in")
}
