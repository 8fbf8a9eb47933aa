package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/Tyrowin/gopresence/internal/presence"
	"github.com/Tyrowin/gopresence/internal/storage"
)

func inspectCmd() *cobra.Command {
	var (
		badgerPath string
		limit      int
		peers      []string
	)

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Dump users and messages from a relay store",
		Long: "Dump users and messages from a relay store.\n\n" +
			"Badger holds an exclusive lock on its directory: stop the relay first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(peers) != 0 && len(peers) != 2 {
				return fmt.Errorf("--between takes exactly two users")
			}
			log := newLogger("WARN")
			store, err := storage.Open(badgerPath, log)
			if err != nil {
				return err
			}
			defer func() {
				_ = store.Close()
			}()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			users, err := store.Users(ctx)
			if err != nil {
				return fmt.Errorf("list users: %w", err)
			}
			writeUsers(out, users)

			var messages []presence.Message
			if len(peers) == 2 {
				messages, err = store.FindConversation(ctx, presence.NormalizeHandle(peers[0]), presence.NormalizeHandle(peers[1]))
			} else {
				messages, err = store.RecentPublic(ctx, limit)
			}
			if err != nil {
				return fmt.Errorf("list messages: %w", err)
			}
			writeMessages(out, messages)
			return nil
		},
	}

	cmd.Flags().StringVar(&badgerPath, "badger", "", "BadgerDB directory")
	cmd.Flags().IntVar(&limit, "limit", 20, "number of recent public messages")
	cmd.Flags().StringSliceVar(&peers, "between", nil, "two users whose private conversation is printed instead")
	_ = cmd.MarkFlagRequired("badger")
	return cmd
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func writeUsers(w io.Writer, users []presence.User) {
	table := newTable(w, []string{"User", "Status", "Updated"})
	for _, user := range users {
		table.Append([]string{user.Username, string(user.Status), user.UpdatedAt.Format(time.RFC3339)})
	}
	table.Render()
}

func writeMessages(w io.Writer, messages []presence.Message) {
	table := newTable(w, []string{"Timestamp", "From", "To", "Text", "ID"})
	for _, message := range messages {
		to := message.Recipient
		if to == "" {
			to = "*"
		}
		table.Append([]string{message.Timestamp.Format(time.RFC3339Nano), message.User, to, message.Text, message.ID})
	}
	table.Render()
}
