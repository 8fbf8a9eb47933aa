package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/Tyrowin/gopresence/internal/client"
	"github.com/Tyrowin/gopresence/internal/presence"
)

const connectHelp = `Commands:
  <text>               public message
  /w <user> <text>     private message
  /status <status>     online, away or busy
  /history <user>      private conversation with user
  /typing [user]       send a typing signal
  /who                 show who is typing
  /quit                leave`

func connectCmd() *cobra.Command {
	var (
		url      string
		origin   string
		username string
		delay    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Join a relay from the terminal",
		Long:  "Join a relay from the terminal.\n\n" + connectHelp,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger("WARN")
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := &terminal{w: cmd.OutOrStdout(), self: presence.NormalizeHandle(username)}
			controller := client.NewController(log, client.Options{
				URL:            url,
				Username:       username,
				Dialer:         client.WebSocketDialer{Origin: origin},
				ReconnectDelay: delay,
				OnFrame:        out.render,
			})
			controller.Start(ctx)
			defer func() {
				_ = controller.Close()
			}()

			lines := make(chan string)
			go readLines(cmd.InOrStdin(), lines)

			for {
				select {
				case <-ctx.Done():
					return nil
				case line, ok := <-lines:
					if !ok {
						return nil
					}
					quit, err := dispatchLine(controller, out, line)
					if err != nil {
						out.errorf("%v", err)
					}
					if quit {
						return nil
					}
				}
			}
		},
	}

	cmd.Flags().StringVar(&url, "url", "ws://localhost:8080/ws", "relay WebSocket URL")
	cmd.Flags().StringVar(&origin, "origin", "http://localhost:8080", "Origin header sent on connect")
	cmd.Flags().StringVarP(&username, "user", "u", "", "username to join as")
	cmd.Flags().DurationVar(&delay, "reconnect-delay", client.DefaultReconnectDelay, "fixed wait before each reconnect attempt")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func readLines(r io.Reader, lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines <- scanner.Text()
	}
}

// dispatchLine turns one input line into a frame. It reports whether the
// user asked to quit.
func dispatchLine(controller *client.Controller, out *terminal, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		return false, controller.Send(presence.Frame{Type: presence.KindMessage, Text: line})
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit":
		return true, nil
	case "/w":
		if len(fields) < 3 {
			return false, fmt.Errorf("usage: /w <user> <text>")
		}
		text := strings.Join(fields[2:], " ")
		return false, controller.Send(presence.Frame{Type: presence.KindPrivateMessage, Recipient: fields[1], Text: text})
	case "/status":
		if len(fields) != 2 {
			return false, fmt.Errorf("usage: /status <online|away|busy>")
		}
		return false, controller.Send(presence.Frame{Type: presence.KindChangeStatus, Status: fields[1]})
	case "/history":
		if len(fields) != 2 {
			return false, fmt.Errorf("usage: /history <user>")
		}
		return false, controller.Send(presence.Frame{Type: presence.KindLoadPrivateMessages, Recipient: fields[1]})
	case "/typing":
		recipient := ""
		if len(fields) > 1 {
			recipient = fields[1]
		}
		return false, controller.Typing(recipient)
	case "/who":
		out.typing(controller.Indicators().Active())
		return false, nil
	default:
		return false, fmt.Errorf("unknown command %s\n%s", fields[0], connectHelp)
	}
}

// terminal renders relay frames as coloured text.
type terminal struct {
	mu   sync.Mutex
	w    io.Writer
	self string
}

var statusColors = map[presence.Status]color.Color{
	presence.StatusOnline:  color.Green,
	presence.StatusAway:    color.Yellow,
	presence.StatusBusy:    color.Red,
	presence.StatusOffline: color.White,
}

func (t *terminal) render(frame client.ServerFrame) {
	switch frame.Type {
	case presence.KindUsers:
		users, err := frame.Users()
		if err != nil {
			t.errorf("bad users frame: %v", err)
			return
		}
		t.users(users)
	case presence.KindMessage, presence.KindPrivateMessage:
		message, err := frame.ChatMessage()
		if err != nil {
			t.errorf("bad message frame: %v", err)
			return
		}
		t.message(message)
	case presence.KindPrivateMessages, presence.KindHistory:
		messages, err := frame.Messages()
		if err != nil {
			t.errorf("bad history frame: %v", err)
			return
		}
		t.printf("%s\n", color.New(color.BgBlack, color.FgGreen).Render(historyTitle(frame)))
		for _, message := range messages {
			t.message(message)
		}
	case presence.KindTyping:
		notice, err := frame.Typing()
		if err == nil && notice.User != t.self {
			t.printf("%s\n", color.Cyan.Sprintf("%s is typing...", notice.User))
		}
	case presence.KindError:
		t.errorf("%s", frame.Message)
	}
}

func historyTitle(frame client.ServerFrame) string {
	if frame.Type == presence.KindHistory {
		return " recent public messages "
	}
	return fmt.Sprintf(" conversation with %s ", frame.Recipient)
}

func (t *terminal) users(users []presence.Presence) {
	t.mu.Lock()
	defer t.mu.Unlock()

	table := tablewriter.NewWriter(t.w)
	table.SetHeader([]string{"User", "Status"})
	table.SetBorder(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, user := range users {
		table.Append([]string{user.Username, statusColors[user.Status].Sprint(string(user.Status))})
	}
	table.Render()
}

func (t *terminal) message(message presence.Message) {
	stamp := message.Timestamp.Local().Format("15:04:05")
	if message.IsPrivate() {
		t.printf("%s %s\n", color.Magenta.Sprintf("[%s] %s -> %s:", stamp, message.User, message.Recipient), message.Text)
		return
	}
	t.printf("%s %s\n", color.Blue.Sprintf("[%s] %s:", stamp, message.User), message.Text)
}

func (t *terminal) typing(active []presence.TypingNotice) {
	if len(active) == 0 {
		t.printf("nobody is typing\n")
		return
	}
	for _, notice := range active {
		if notice.Recipient == "" {
			t.printf("%s is typing\n", notice.User)
			continue
		}
		t.printf("%s is typing to %s\n", notice.User, notice.Recipient)
	}
}

func (t *terminal) errorf(format string, args ...any) {
	t.printf("%s\n", color.Red.Sprintf("error: "+format, args...))
}

func (t *terminal) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = fmt.Fprintf(t.w, format, args...)
}
