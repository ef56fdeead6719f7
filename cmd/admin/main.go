package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"pairchat/backend/internal/auth"
	"pairchat/backend/internal/config"
	"pairchat/backend/internal/models"
	"pairchat/backend/internal/storage"

	"github.com/spf13/cobra"
)

// adminApp opens the store lazily so --help works without a database.
type adminApp struct {
	cfg   *config.Config
	store *storage.Service
}

func (a *adminApp) open() error {
	if a.store != nil {
		return nil
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	config.SetupLogging(cfg.LogLevel)

	db, err := storage.OpenDB(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.store = storage.NewStorageService(db, nil) // no redis needed for admin CLI
	return nil
}

func (a *adminApp) tokens() *auth.TokenManager {
	return auth.NewTokenManager(a.cfg.JWTSecret, a.cfg.TokenTTL)
}

func main() {
	app := &adminApp{}

	root := &cobra.Command{
		Use:          "admin",
		Short:        "Operator commands for the chat server",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.open()
		},
	}
	root.AddCommand(app.newUserCommand(), app.newTokenCommand(), app.newAICommand(), app.newHistoryCommand())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func (a *adminApp) newUserCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage participants",
	}

	var name, email, pic string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a participant and print its ID and a token",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := &models.Participant{FullName: name, Email: email, ProfilePic: pic}
			if err := a.store.SaveUser(cmd.Context(), p); err != nil {
				return err
			}
			token, err := a.tokens().Issue(p.ID)
			if err != nil {
				return err
			}
			fmt.Printf("id:    %s\ntoken: %s\n", p.ID, token)
			return nil
		},
	}
	create.Flags().StringVar(&name, "name", "", "full name")
	create.Flags().StringVar(&email, "email", "", "email address")
	create.Flags().StringVar(&pic, "pic", "", "profile picture URL")
	_ = create.MarkFlagRequired("name")
	_ = create.MarkFlagRequired("email")

	list := &cobra.Command{
		Use:   "list",
		Short: "List every participant",
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := a.store.ListUsersExcept(cmd.Context(), "")
			if err != nil {
				return err
			}
			for _, u := range users {
				marker := ""
				if u.IsAI {
					marker = " (AI)"
				}
				fmt.Printf("%s  %-24s %s%s\n", u.ID, u.FullName, u.Email, marker)
			}
			return nil
		},
	}

	cmd.AddCommand(create, list)
	return cmd
}

func (a *adminApp) newTokenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "token <user_id>",
		Short: "Mint a bearer token for an existing participant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.store.GetUserByID(cmd.Context(), args[0]); err != nil {
				return err
			}
			token, err := a.tokens().Issue(args[0])
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
}

func (a *adminApp) newAICommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ai",
		Short: "Manage the AI participant",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "ensure",
		Short: "Create the AI participant if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			ai, err := a.store.GetOrCreateAIUser(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("AI participant: %s (%s)\n", ai.ID, ai.FullName)
			return nil
		},
	})
	return cmd
}

func (a *adminApp) newHistoryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "history <user_a> <user_b>",
		Short: "Print the conversation between two participants",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			messages, err := a.store.GetConversation(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			for _, m := range messages {
				body := m.Text
				if m.Image != "" {
					body += " [image " + m.Image + "]"
				}
				fmt.Printf("%s  %s -> %s: %s\n", m.CreatedAt.Format(time.RFC3339), m.SenderID, m.RecipientID, body)
			}
			return nil
		},
	}
}
