package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/09sachin/fileshare/internal/broadcast"
	"github.com/09sachin/fileshare/internal/logger"
	"github.com/09sachin/fileshare/internal/protocol"
	"github.com/09sachin/fileshare/internal/signal"
	"github.com/09sachin/fileshare/internal/store"
)

var hostName string

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "host a broadcast room",
	Long: `host runs an interactive room. Plain lines are broadcast as chat; commands:
  /invite          print a join code for one new member
  /accept <code>   admit the member who produced the code
  /send <file>     broadcast a file to every member
  /who             list members
  /quit            leave`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.NewLogger()
		hist := openHistory()

		mgr := broadcast.New(broadcast.Options{
			Role:        broadcast.RoleHost,
			Name:        hostName,
			STUNServers: stunServers,
			Logger:      log,
			OnMessage: func(msg protocol.ChatMessage) {
				printChat(msg)
				recordChat(hist, log, msg)
			},
			OnSubscriberJoined: func(s broadcast.Subscriber) {
				fmt.Printf("* %s joined\n", displayName(s))
			},
			OnSubscriberLeft: func(s broadcast.Subscriber) {
				fmt.Printf("* %s left\n", displayName(s))
			},
			OnError: func(err error) { log.Warnf("room error: %v", err) },
		})
		defer mgr.Destroy()

		fmt.Println("room open; /invite to bring someone in")

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

			cmdWord, rest, _ := strings.Cut(line, " ")
			switch cmdWord {
			case "/invite":
				offer, err := mgr.CreateOffer(cmd.Context())
				if err != nil {
					fmt.Println("invite failed:", err)
					continue
				}
				if err := printEnvelope("Join code (single use):", offer); err != nil {
					fmt.Println(err)
				}

			case "/accept":
				answer, err := signal.Decode(strings.TrimSpace(rest))
				if err != nil {
					fmt.Println("bad code:", err)
					continue
				}
				if err := mgr.ProcessAnswer(answer); err != nil {
					fmt.Println("accept failed:", err)
				}

			case "/send":
				name, mimeType, data, err := loadPayload(strings.TrimSpace(rest))
				if err != nil {
					fmt.Println("send failed:", err)
					continue
				}
				fileID, err := mgr.SendFile(cmd.Context(), broadcast.File{
					Name: name, MimeType: mimeType, Data: data,
				})
				if err != nil {
					fmt.Println("send failed:", err)
					continue
				}
				fmt.Printf("broadcast %s (%d bytes)\n", name, len(data))
				if hist != nil {
					if err := hist.RecordTransfer(store.TransferRecord{
						FileName:  name,
						Size:      int64(len(data)),
						MimeType:  mimeType,
						Checksum:  store.Checksum(data),
						Direction: "sent",
						Peer:      fileID,
					}); err != nil {
						log.Warnf("history write failed: %v", err)
					}
				}

			case "/who":
				subs := mgr.Subscribers()
				if len(subs) == 0 {
					fmt.Println("nobody here yet")
				}
				for _, s := range subs {
					fmt.Printf("  %s (since %s)\n", displayName(s), s.JoinedAt.Format("15:04:05"))
				}

			case "/quit":
				return nil

			default:
				if _, err := mgr.SendMessage(line); err != nil {
					fmt.Println("message failed:", err)
				}
			}
		}
	},
}

func init() {
	hostCmd.Flags().StringVarP(&hostName, "name", "n", "", "display name shown to members")
}

func displayName(s broadcast.Subscriber) string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

func printChat(msg protocol.ChatMessage) {
	who := "host"
	if msg.Sender == protocol.SenderSubscriber {
		who = msg.SubscriberID
	}
	fmt.Printf("[%s] %s\n", who, msg.Content)
}

func recordChat(hist *store.HistoryStore, log *logrus.Logger, msg protocol.ChatMessage) {
	if hist == nil {
		return
	}
	err := hist.RecordMessage(store.MessageRecord{
		MessageID:    msg.ID,
		Content:      msg.Content,
		Sender:       string(msg.Sender),
		SubscriberID: msg.SubscriberID,
		Timestamp:    msg.Timestamp,
	})
	if err != nil {
		log.Warnf("history write failed: %v", err)
	}
}
