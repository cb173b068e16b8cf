// Package cli implements the reflect CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Adam-Huang/reflect/internal/config"
	"github.com/Adam-Huang/reflect/internal/logging"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  = zap.NewNop()
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "reflect",
	Short: "Personal assistant with long-term memory and workflows",
	Long: `reflect keeps memories in SQLite, recalls them by trigger words while chatting,
runs json workflows the model writes against built-in abilities, and reflects
on finished conversations to learn new memories.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(viper.GetViper())
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.Log.Level, cfg.Log.Dev)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := RootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ./reflect.yaml or ~/.reflect/reflect.yaml)")
	pf.StringP("db", "d", "", "database path (default ~/.reflect/memory.db)")
	pf.String("sessions-dir", "", "session directory (default ~/.reflect/sessions)")
	pf.StringP("output", "o", "", "output format: json or yaml")
	pf.String("log-level", "", "log level: debug, info, warn, error")

	_ = viper.BindPFlag("db", pf.Lookup("db"))
	_ = viper.BindPFlag("sessions_dir", pf.Lookup("sessions-dir"))
	_ = viper.BindPFlag("output", pf.Lookup("output"))
	_ = viper.BindPFlag("log.level", pf.Lookup("log-level"))
}

func initConfig() {
	if err := config.LoadDotEnv(); err != nil {
		exitErr("load .env", err)
	}
	if err := config.Init(viper.GetViper(), cfgFile); err != nil {
		exitErr("config", err)
	}
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}

// emit prints v in the configured output format.
func emit(v any) {
	if cfg != nil && cfg.Output == "yaml" {
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			exitErr("encode yaml", err)
		}
		_ = enc.Close()
		return
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		exitErr("encode json", err)
	}
	fmt.Println(string(b))
}

// readInput joins args, falling back to piped stdin.
func readInput(args []string) string {
	if len(args) > 0 {
		return strings.Join(args, " ")
	}
	stat, err := os.Stdin.Stat()
	if err != nil || stat.Mode()&os.ModeCharDevice != 0 {
		return ""
	}
	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		exitErr("read stdin", err)
	}
	return string(b)
}

// splitList parses a comma-separated flag value, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
