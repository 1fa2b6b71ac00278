package cmd

import (
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/datagate/internal/config"
	"github.com/hazyhaar/datagate/internal/gateway"
	"github.com/hazyhaar/datagate/internal/logging"
	mcpsrv "github.com/hazyhaar/datagate/internal/mcp"
)

// checkCmd verifies the database connection and prints what the MCP
// tools would see, without starting the protocol server.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the database connection and list visible tables",
	Long: `The check command connects to the configured PostgreSQL database, reports
whether the connection succeeds, and lists the tables the MCP tools
operate on together with their row counts. The password is masked in all
output.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		logging.Setup(cfg.Log.Level, cfg.Log.Format)
		ctx := cmd.Context()

		pterm.DefaultBox.
			WithTitle(pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint("Database Connection")).
			WithPadding(1).
			Println(logging.Mask(cfg.DSN()))
		pterm.Println()

		gw := gateway.New(cfg)
		if !gw.TestConnection(ctx) {
			pterm.Println("❌ Could not connect to database")
			pterm.Println("   Check the [database] section of your config or the POSTGRES_* environment variables.")
			return fmt.Errorf("database %s is not reachable", logging.Mask(cfg.DSN()))
		}
		pterm.Println("✅ Database connection verified!")
		pterm.Println()

		res, err := gw.Execute(ctx, mcpsrv.ListTablesQuery)
		if err != nil {
			pterm.Println("❌ Failed to list tables")
			pterm.Println(logging.PresentError("", err))
			return err
		}
		if len(res.Records) == 0 {
			pterm.Println("⚠️  No tables found in the public schema")
			return nil
		}

		pterm.Println(pterm.NewStyle(pterm.FgLightCyan).Sprint("→ Tables: ") + pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprintf("%d", len(res.Records)))
		for _, rec := range res.Records {
			name, _ := rec.Get("table_name").(string)
			if name == "" {
				continue
			}
			line := fmt.Sprintf("   %-32s", name)
			count, err := gw.Execute(ctx, "SELECT COUNT(*) AS count FROM "+pgx.Identifier{name}.Sanitize())
			if err != nil || len(count.Records) == 0 {
				line += pterm.NewStyle(pterm.FgLightRed).Sprint("count unavailable")
			} else {
				line += pterm.NewStyle(pterm.FgLightBlue).Sprintf("%v rows", count.Records[0].Get("count"))
			}
			pterm.Println(line)

			cols, err := gw.Execute(ctx, mcpsrv.DescribeTableQuery, name)
			if err != nil {
				pterm.Println("      " + pterm.NewStyle(pterm.FgLightRed).Sprint("schema unavailable"))
				continue
			}
			for _, col := range cols.Records {
				pterm.Printf("      %-24v %v\n", col.Get("column_name"), col.Get("data_type"))
			}
		}
		pterm.Println()

		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
