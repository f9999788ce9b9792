package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"agentric/internal/config"
	"agentric/internal/display"
	"agentric/internal/listener"
	"agentric/internal/logger"
)

var (
	configPath string
	envPath    string
	cfg        *config.Config
	rootCmd    *cobra.Command
)

func init() {
	rootCmd = &cobra.Command{
		Use:   "agentric",
		Short: "Mission orchestration for a team of agents",
		Long: `Agentric turns an objective into an ordered plan, delegates each step to an agent
(local logic, a remote or local model, or an operator-approved tool) and records
every step in the audit log.

Run without a subcommand for the interactive console.`,
		PersistentPreRunE: loadConfig,
		RunE:              runREPL,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./agentric.yaml or ~/.agentric/agentric.yaml)")
	rootCmd.PersistentFlags().StringVar(&envPath, "env", ".env", "dotenv file with API keys")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	if err := config.LoadDotEnv(envPath); err != nil {
		return err
	}
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg = loaded
	if err := logger.Init(cfg.LogFile); err != nil {
		return fmt.Errorf("could not initialize logger: %w", err)
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(rosterCmd)
	rootCmd.AddCommand(configCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runREPL(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	history := ""
	if home, err := os.UserHomeDir(); err == nil {
		history = filepath.Join(home, ".agentric_history")
	}
	console, err := listener.New(history)
	if err != nil {
		return fmt.Errorf("failed to init terminal input: %w", err)
	}
	defer console.Close()

	ctx, stop := signalContext()
	defer stop()

	r := newREPL(a.orch, console, console.SetPrompt)
	go r.printResults(ctx)

	// The greeting was narrated before anyone subscribed.
	for _, m := range a.orch.Transcript() {
		console.Println(display.FormatMessage(m))
	}
	console.Println("Type /help for commands, 'exit' to quit.")

	for {
		line, err := console.ReadLine()
		if errors.Is(err, listener.ErrClosed) {
			break
		}
		if err != nil {
			return err
		}
		if r.handle(ctx, line) {
			break
		}
	}
	console.Println("Goodbye!")
	return nil
}
