// cmd/smartledger/cmd/set.go
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"smartledger/cmd/smartledger/cmd/types"
	"smartledger/internal/app/client"
	"smartledger/internal/domain/ledger"
)

var setCmd = &cobra.Command{
	Use:   "set <секция> <поле>=<значение> [<поле>=<значение>...]",
	Short: "Заполнить и сохранить секцию дашборда",
	Long: `Обновляет поля черновика секции и сохраняет её целиком.

Секция задаётся именем или сокращением: bank, expenses, sales,
orders, reminders. Пустое значение очищает поле.

Примеры:
  smartledger set bank amount=1250.50
  smartledger set orders total_orders=12 pending=3 completed=9
  smartledger set reminders title="Оплатить аренду" due_date=2026-09-01`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cmd.Context().Value(types.ClientAppKey).(*client.App)
		defer app.Close()

		entity, err := ledger.ParseEntity(args[0])
		if err != nil {
			return fmt.Errorf("неизвестная секция %q", args[0])
		}

		if err := app.Load(cmd.Context()); err != nil {
			return err
		}

		for _, pair := range args[1:] {
			field, value, found := strings.Cut(pair, "=")
			if !found {
				return fmt.Errorf("ожидалось поле=значение, получено %q", pair)
			}
			if err := app.SetField(entity, field, value); err != nil {
				return fmt.Errorf("поле %q: %w", field, err)
			}
		}

		if err := app.Save(cmd.Context(), entity); err != nil {
			return err
		}

		app.RenderDashboard(os.Stdout)
		return nil
	},
}
