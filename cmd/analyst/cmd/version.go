package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version задается при сборке через -ldflags
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Показать версию",
	// Конфигурация для вывода версии не нужна
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "analyst version %s\n", version)
	},
}
