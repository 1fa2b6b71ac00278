package cmd

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/datagate/internal/config"
	"github.com/hazyhaar/datagate/internal/gateway"
	"github.com/hazyhaar/datagate/internal/logging"
	mcpsrv "github.com/hazyhaar/datagate/internal/mcp"
	"github.com/hazyhaar/datagate/pkg/audit"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server on stdio",
	Long: `The serve command verifies the PostgreSQL connection and then speaks the
Model Context Protocol over stdin/stdout. The server refuses to start if
the database is unreachable. Stdout carries only protocol frames.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		logging.Setup(cfg.Log.Level, cfg.Log.Format)

		gw := gateway.New(cfg)
		if !gw.TestConnection(cmd.Context()) {
			fmt.Fprintln(os.Stderr, "Error: Could not connect to database")
			return fmt.Errorf("database %s is not reachable", logging.Mask(cfg.DSN()))
		}
		fmt.Fprintln(os.Stderr, "Database connection successful!")
		fmt.Fprintln(os.Stderr, "Starting MCP server...")

		var auditLog audit.Logger
		if cfg.Audit.Enabled {
			auditDB, err := sql.Open("sqlite", "file:"+cfg.Audit.Path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
			if err != nil {
				return fmt.Errorf("opening audit database: %w", err)
			}
			logger := audit.NewSQLiteLogger(auditDB)
			if err := logger.Init(); err != nil {
				return fmt.Errorf("initializing audit database: %w", err)
			}
			defer logger.Close()
			auditLog = logger
			slog.Info("audit logging enabled", "path", cfg.Audit.Path)
		}

		srv := mcpsrv.NewServer(gw, auditLog)
		slog.Info("serving", "server", mcpsrv.ServerName, "version", Version, "transport", "stdio")
		return server.ServeStdio(srv)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
