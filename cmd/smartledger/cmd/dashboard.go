// cmd/smartledger/cmd/dashboard.go
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"smartledger/cmd/smartledger/cmd/types"
	"smartledger/internal/app/client"
)

var watch bool

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Показать дашборд",
	Long: `Загружает все секции дашборда и печатает их.

С флагом --watch остаётся запущенным и перерисовывает дашборд при
изменениях на сервере (только бэкенд postgres).`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app := cmd.Context().Value(types.ClientAppKey).(*client.App)
		defer app.Close()

		if err := app.Load(cmd.Context()); err != nil {
			return err
		}

		app.RenderDashboard(os.Stdout)

		if !watch {
			return nil
		}

		// Перерисовываем дашборд на каждом появлении и сбросе тоста
		app.OnNotification(func(*client.Notification) {
			fmt.Println()
			app.RenderDashboard(os.Stdout)
		})

		// Пуш-обновления не создают тостов, добираем их тикером
		go func() {
			ticker := time.NewTicker(2 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-cmd.Context().Done():
					return
				case <-ticker.C:
					fmt.Println()
					app.RenderDashboard(os.Stdout)
				}
			}
		}()

		return app.Watch(cmd.Context())
	},
}

func init() {
	dashboardCmd.Flags().BoolVarP(&watch, "watch", "w", false, "следить за изменениями")
}
