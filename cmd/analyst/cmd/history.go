package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Catker/ashare-llm-analyst/internal/storage"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history <code>",
	Short: "Показать сохраненные снимки инструмента из InfluxDB",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Storage.URL == "" {
			return fmt.Errorf("не задан storage.url")
		}

		store, err := storage.NewInfluxDBStorage(cfg.Storage)
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.GetSnapshotHistory(cmd.Context(), args[0], historyLimit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(records) == 0 {
			fmt.Fprintf(out, "Снимков для %s нет\n", args[0])
			return nil
		}
		for _, r := range records {
			fmt.Fprintf(out, "%s  %-6s  запуск %s\n", r.Time.Format("2006-01-02 15:04"), r.Status, r.RunID)
			for _, s := range r.Snapshot.Signals {
				fmt.Fprintf(out, "    %s\n", strings.TrimSpace(s))
			}
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "число последних снимков")
}
