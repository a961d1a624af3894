package cli

import (
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/09sachin/fileshare/internal/chunker"
	"github.com/09sachin/fileshare/internal/logger"
	"github.com/09sachin/fileshare/internal/pair"
	"github.com/09sachin/fileshare/internal/protocol"
	"github.com/09sachin/fileshare/internal/store"
	"github.com/09sachin/fileshare/internal/transport"
)

var sendCmd = &cobra.Command{
	Use:   "send file",
	Short: "send one file to a peer",
	Long:  `send streams one file over a direct data channel. Hand the printed code to the receiver, then paste their response back.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, mimeType, data, err := loadPayload(args[0])
		if err != nil {
			return err
		}

		log := logger.NewLogger()
		f := pair.File{Name: name, MimeType: mimeType, Data: data}

		bar := progressbar.DefaultBytes(int64(len(data)), "sending")
		connected := make(chan struct{})

		mgr := pair.New(pair.Options{
			STUNServers: stunServers,
			Logger:      log,
			OnConnected: func() { close(connected) },
			OnProgress: func(p chunker.Progress) {
				if p.Expected > 0 {
					_ = bar.Set64(int64(len(data)) * int64(p.Count) / int64(p.Expected))
				}
			},
		})
		defer mgr.Destroy()

		mgr.SetOutgoingFile(f)

		offer, err := mgr.CreatePeer(cmd.Context(), true)
		if err != nil {
			return err
		}
		if err := printEnvelope("Give this code to the receiver:", offer); err != nil {
			return err
		}

		answer, err := readEnvelope("Paste the receiver's response: ")
		if err != nil {
			return err
		}
		if _, err := mgr.ConnectToPeer(cmd.Context(), answer); err != nil {
			return err
		}

		select {
		case <-connected:
		case <-time.After(protocol.NegotiationTimeout):
			return transport.ErrNegotiationTimeout
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		}

		if err := mgr.SendFile(cmd.Context(), f); err != nil {
			return err
		}
		fmt.Printf("\nsent %s (%d bytes)\n", name, len(data))

		if hist := openHistory(); hist != nil {
			if err := hist.RecordTransfer(store.TransferRecord{
				FileName:   name,
				Size:       int64(len(data)),
				MimeType:   mimeType,
				Checksum:   store.Checksum(data),
				ChunkCount: int(chunker.ChunkCount(uint64(len(data)), protocol.ChunkSize)),
				Direction:  "sent",
			}); err != nil {
				log.Warnf("history write failed: %v", err)
			}
		}
		return nil
	},
}
