package auth

import (
	"github.com/spf13/cobra"
)

// AuthCmd - родительская команда для всех операций с владельцем
var AuthCmd = &cobra.Command{
	Use:   "auth",
	Short: "Управление владельцем дашборда",
	Long:  `Вход через внешнего провайдера, выход, текущий владелец.`,
}
