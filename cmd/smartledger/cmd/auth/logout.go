// cmd/smartledger/cmd/auth/logout.go
package auth

import (
	"fmt"

	"github.com/spf13/cobra"

	"smartledger/cmd/smartledger/cmd/types"
	"smartledger/internal/app/client"
)

var LogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Выйти из Smart Ledger",
	Long:  `Завершает сессию и очищает локальный кэш владельца.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app := cmd.Context().Value(types.ClientAppKey).(*client.App)
		defer app.Close()

		if err := app.Load(cmd.Context()); err != nil {
			return err
		}

		if app.Identity() == nil {
			fmt.Println("Вход не выполнен")
			return nil
		}

		if err := app.SignOut(cmd.Context()); err != nil {
			return fmt.Errorf("ошибка выхода: %w", err)
		}

		fmt.Println("✅ Выход выполнен")
		return nil
	},
}
