// cmd/smartledger/cmd/init.go
package cmd

import (
	"smartledger/cmd/smartledger/cmd/auth"
)

func init() {
	// Команды аутентификации
	rootCmd.AddCommand(auth.AuthCmd)
	auth.AuthCmd.AddCommand(auth.LoginCmd)
	auth.AuthCmd.AddCommand(auth.LogoutCmd)
	auth.AuthCmd.AddCommand(auth.WhoamiCmd)

	// Команды дашборда
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(setCmd)
}
