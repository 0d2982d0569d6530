// cmd/smartledger/cmd/auth/login.go
package auth

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"smartledger/cmd/smartledger/cmd/types"
	"smartledger/internal/app/client"
)

var providerName string

var LoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Войти в Smart Ledger",
	Long: `Вход через внешнего провайдера аутентификации.

Токен провайдера запрашивается скрыто, сессия сохраняется локально
для последующих запусков.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app := cmd.Context().Value(types.ClientAppKey).(*client.App)
		defer app.Close()

		fmt.Println("=== Вход в Smart Ledger ===")
		fmt.Println()

		fmt.Printf("Токен провайдера %s: ", providerName)
		secret, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("ошибка чтения токена: %w", err)
		}
		fmt.Println()

		fmt.Println("Аутентификация...")
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		if err := app.SignIn(ctx, providerName, string(secret)); err != nil {
			return fmt.Errorf("ошибка аутентификации: %w", err)
		}

		ident := app.Identity()
		fmt.Println()
		fmt.Printf("✅ Вход выполнен: %s\n", ident.Display())

		app.RenderDashboard(os.Stdout)
		return nil
	},
}

func init() {
	LoginCmd.Flags().StringVarP(&providerName, "provider", "p", "google", "провайдер аутентификации")
}
