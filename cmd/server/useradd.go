package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/linechat-server/internal/app"
	"github.com/vovakirdan/linechat-server/internal/store/sqlite"
)

var (
	newLogin    string
	newPassword string
	newNick     string
)

// useraddCmd creates a chat account in the configured database.
var useraddCmd = &cobra.Command{
	Use:   "useradd",
	Short: "Create a chat account",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		st, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		user, err := app.NewAuthService(st, &cfg).Register(cmd.Context(), newLogin, newPassword, newNick)
		if err != nil {
			return fmt.Errorf("create account: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "created account %s (nick %s, id %d)\n", user.Login, user.Nick, user.ID)
		return nil
	},
}

func init() {
	useraddCmd.Flags().StringVar(&newLogin, "login", "", "account login")
	useraddCmd.Flags().StringVar(&newPassword, "password", "", "account password")
	useraddCmd.Flags().StringVar(&newNick, "nick", "", "display name shown in the chat")
	useraddCmd.Flags().StringVar(&overrides.DatabasePath, "db", "", "SQLite database path")
	_ = useraddCmd.MarkFlagRequired("login")
	_ = useraddCmd.MarkFlagRequired("password")
	_ = useraddCmd.MarkFlagRequired("nick")

	rootCmd.AddCommand(useraddCmd)
}
