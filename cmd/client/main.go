package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"pairchat/backend/internal/auth"
	"pairchat/backend/internal/models"
	"pairchat/backend/internal/session"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var (
	serverURL string
	token     string
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "client",
		Short:        "Terminal chat client",
		SilenceUsage: true,
		RunE:         runClient,
	}
	rootCmd.Flags().StringVarP(&serverURL, "server", "s", "http://localhost:5001", "server base URL")
	rootCmd.Flags().StringVarP(&token, "token", "t", os.Getenv("PAIRCHAT_TOKEN"), "bearer token (default $PAIRCHAT_TOKEN)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runClient(cmd *cobra.Command, args []string) error {
	selfID, err := auth.PeekUserID(token)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := session.New(
		session.NewHTTPAPI(serverURL, token),
		&session.WSDialer{BaseURL: serverURL, Token: token},
		selfID,
		session.DefaultOptions(),
	)
	p := &printer{s: s, selfID: selfID}
	s.OnChange(p.flush)

	if err := s.Connect(ctx); err != nil {
		return err
	}
	defer s.Disconnect()
	if err := s.LoadUsers(ctx); err != nil {
		return err
	}

	fmt.Println("Commands: /users, /online, /open <name|id>, /img <url> [text], /quit. Anything else is sent to the open conversation.")
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		fmt.Print("> ")
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := handleLine(ctx, s, p, strings.TrimSpace(line)); quit {
				return nil
			}
		}
	}
}

func handleLine(ctx context.Context, s *session.Session, p *printer, line string) bool {
	switch {
	case line == "":
	case line == "/quit":
		return true
	case line == "/users" || line == "/online":
		if err := s.LoadUsers(ctx); err != nil {
			fmt.Println("error:", err)
			return false
		}
		for _, u := range s.Users(line == "/online") {
			status := "offline"
			if s.IsOnline(u.ID) {
				status = "online"
			}
			fmt.Printf("  %-24s %s  %s\n", u.FullName, u.ID, status)
		}
		fmt.Printf("  %d online\n", s.OnlineCount())
	case strings.HasPrefix(line, "/open "):
		key := strings.TrimSpace(strings.TrimPrefix(line, "/open "))
		peer, ok := lo.Find(s.Users(false), func(u models.Participant) bool {
			return u.ID == key || strings.EqualFold(u.FullName, key)
		})
		if !ok {
			fmt.Println("no such participant:", key)
			return false
		}
		p.reset()
		if err := s.SelectPeer(ctx, peer); err != nil {
			fmt.Println("error:", err)
		}
	case strings.HasPrefix(line, "/img "):
		parts := strings.SplitN(strings.TrimPrefix(line, "/img "), " ", 2)
		text := ""
		if len(parts) == 2 {
			text = parts[1]
		}
		send(ctx, s, text, parts[0])
	default:
		send(ctx, s, line, "")
	}
	return false
}

func send(ctx context.Context, s *session.Session, text, image string) {
	if _, err := s.Send(ctx, text, image); err != nil {
		fmt.Println("error:", err)
	}
}

// printer writes list entries that have not been shown yet.
type printer struct {
	s      *session.Session
	selfID string

	mu    sync.Mutex
	shown int
}

func (p *printer) reset() {
	p.mu.Lock()
	p.shown = 0
	p.mu.Unlock()
}

func (p *printer) flush() {
	p.mu.Lock()
	defer p.mu.Unlock()

	msgs := p.s.Messages()
	if len(msgs) < p.shown {
		p.shown = 0
	}
	for _, m := range msgs[p.shown:] {
		from := "them"
		if m.SenderID == p.selfID {
			from = "me"
		}
		body := m.Text
		if m.Image != "" {
			body = strings.TrimSpace(body + " [image " + m.Image + "]")
		}
		fmt.Printf("\r[%s] %s: %s\n", m.CreatedAt.Format("15:04:05"), from, body)
	}
	p.shown = len(msgs)
}
