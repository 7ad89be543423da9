package util

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/myschema/myschema/internal/config"
)

// GlobalFlags holds the persistent flags shared by every subcommand
type GlobalFlags struct {
	ConfigFile string
	Host       string
	Port       int
	User       string
	Password   string
}

var globalFlags GlobalFlags

// RegisterGlobalFlags adds --config and the connection flags to the root command
func RegisterGlobalFlags(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&globalFlags.ConfigFile, "config", "", "Path to "+config.FileName+" (default: searched upward from the working directory)")
	pf.StringVar(&globalFlags.Host, "host", "", "MySQL server host (env: MYSCHEMA_HOST)")
	pf.IntVar(&globalFlags.Port, "port", 0, "MySQL server port (env: MYSCHEMA_PORT)")
	pf.StringVar(&globalFlags.User, "user", "", "MySQL user (env: MYSCHEMA_USER)")
	pf.StringVar(&globalFlags.Password, "password", "", "MySQL password (env: MYSCHEMA_PASSWORD)")
}

// LoadConfig resolves the configuration for cmd. Precedence, lowest first: built-in
// defaults, the config file, MYSCHEMA_ environment variables, flags set on the command line.
func LoadConfig(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if globalFlags.ConfigFile != "" {
		cfg, err = config.LoadFile(globalFlags.ConfigFile)
	} else {
		var wd string
		wd, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to determine working directory: %w", err)
		}
		cfg, err = config.Load(wd)
	}
	if err != nil {
		return nil, err
	}

	ApplyConnectionFlags(cmd, &cfg.Connection, globalFlags)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyConnectionFlags copies the connection flags that were explicitly set onto conn
func ApplyConnectionFlags(cmd *cobra.Command, conn *config.ConnectionConfig, flags GlobalFlags) {
	fs := cmd.Flags()
	if fs.Changed("host") {
		conn.Host = flags.Host
	}
	if fs.Changed("port") {
		conn.Port = flags.Port
	}
	if fs.Changed("user") {
		conn.User = flags.User
	}
	if fs.Changed("password") {
		conn.Password = flags.Password
	}
}
