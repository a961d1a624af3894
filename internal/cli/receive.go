package cli

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/09sachin/fileshare/internal/chunker"
	"github.com/09sachin/fileshare/internal/logger"
	"github.com/09sachin/fileshare/internal/pair"
	"github.com/09sachin/fileshare/internal/store"
)

var receiveDir string

var receiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "receive one file from a peer",
	Long:  `receive accepts a sender's code, prints the response to hand back, and waits for the transfer.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.NewLogger()

		received := make(chan pair.File, 1)
		failed := make(chan error, 1)
		var bar *progressbar.ProgressBar

		mgr := pair.New(pair.Options{
			STUNServers: stunServers,
			Logger:      log,
			OnProgress: func(p chunker.Progress) {
				if bar == nil {
					bar = progressbar.Default(int64(p.Expected), "receiving")
				}
				_ = bar.Set(int(p.Count))
			},
			OnFileReceived: func(f pair.File) { received <- f },
			OnError:        func(err error) { failed <- err },
		})
		defer mgr.Destroy()

		if _, err := mgr.CreatePeer(cmd.Context(), false); err != nil {
			return err
		}

		offer, err := readEnvelope("Paste the sender's code: ")
		if err != nil {
			return err
		}
		if offer.File != nil {
			fmt.Printf("incoming: %s (%d bytes, %s)\n", offer.File.Name, offer.File.Size, offer.File.MimeType)
		}

		answer, err := mgr.ConnectToPeer(cmd.Context(), offer)
		if err != nil {
			return err
		}
		if err := printEnvelope("Hand this response back to the sender:", answer); err != nil {
			return err
		}

		select {
		case f := <-received:
			path, err := savePayload(receiveDir, f.Name, f.Data)
			if err != nil {
				return err
			}
			fmt.Printf("\nsaved %s (%d bytes)\n", path, len(f.Data))

			if hist := openHistory(); hist != nil {
				if err := hist.RecordTransfer(store.TransferRecord{
					FileName:  f.Name,
					Size:      int64(len(f.Data)),
					MimeType:  f.MimeType,
					Checksum:  store.Checksum(f.Data),
					Direction: "received",
				}); err != nil {
					log.Warnf("history write failed: %v", err)
				}
			}
			return nil

		case err := <-failed:
			return err

		case <-cmd.Context().Done():
			return cmd.Context().Err()
		}
	},
}

func init() {
	receiveCmd.Flags().StringVarP(&receiveDir, "out", "o", ".", "directory to save the received file in")
}
