// cmd/smartledger/cmd/auth/whoami.go
package auth

import (
	"fmt"

	"github.com/spf13/cobra"

	"smartledger/cmd/smartledger/cmd/types"
	"smartledger/internal/app/client"
)

var WhoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Показать текущего владельца",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app := cmd.Context().Value(types.ClientAppKey).(*client.App)
		defer app.Close()

		if err := app.Load(cmd.Context()); err != nil {
			return err
		}

		ident := app.Identity()
		if ident == nil {
			fmt.Println("Вход не выполнен")
			return nil
		}

		if ident.Anonymous {
			fmt.Printf("Анонимное устройство: %s\n", ident.ID)
		} else {
			fmt.Printf("Владелец: %s (%s)\n", ident.Display(), ident.ID)
		}
		return nil
	},
}
