package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"agentric/internal/api"
	"agentric/internal/audit"
	"agentric/internal/config"
	"agentric/internal/display"
	"agentric/internal/kv"
	"agentric/internal/roster"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the settings, mission and authorization HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		addr := cfg.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}
		ctx, stop := signalContext()
		defer stop()

		fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s\n", addr)
		return api.NewServer(a.orch, a.store).Run(ctx, addr)
	},
}

var (
	trailMission string
	trailAgent   string
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect or clear the consciousness logs",
}

// openAudit opens the audit store without the rest of the engine.
func openAudit() (*audit.Store, kv.KV, error) {
	backend, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	return audit.New(backend), backend, nil
}

var auditCountsCmd = &cobra.Command{
	Use:   "counts",
	Short: "Show the size of each collection",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, backend, err := openAudit()
		if err != nil {
			return err
		}
		defer backend.Close()

		counts, err := store.Counts(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), display.FormatCounts(counts))
		return nil
	},
}

var auditShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the records of one mission or one agent",
	RunE: func(cmd *cobra.Command, args []string) error {
		if (trailMission == "") == (trailAgent == "") {
			return errors.New("pass exactly one of --mission or --agent")
		}
		store, backend, err := openAudit()
		if err != nil {
			return err
		}
		defer backend.Close()

		var trail audit.Trail
		if trailMission != "" {
			trail, err = store.MissionTrail(cmd.Context(), trailMission)
		} else {
			trail, err = store.AgentTrail(cmd.Context(), trailAgent)
		}
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), display.FormatTrail(trail))
		return nil
	},
}

var auditClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every record in all three collections",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, backend, err := openAudit()
		if err != nil {
			return err
		}
		defer backend.Close()

		if err := store.ClearAll(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "All consciousness logs have been cleared.")
		return nil
	},
}

var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "List the agents in the configured roster",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := roster.Load(cfg.Roster)
		if err != nil {
			return err
		}
		pc := cfg.Providers()
		fmt.Fprint(cmd.OutOrStdout(), display.FormatRoster(r.Agents(), nil, pc.Selectable))
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the agentric configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration",
	Args:  cobra.MaximumNArgs(1),
	// init must work before any config exists.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.FileName
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")

	auditShowCmd.Flags().StringVar(&trailMission, "mission", "", "mission id")
	auditShowCmd.Flags().StringVar(&trailAgent, "agent", "", "agent name")
	auditCmd.AddCommand(auditCountsCmd, auditShowCmd, auditClearCmd)

	configCmd.AddCommand(configInitCmd)
}
