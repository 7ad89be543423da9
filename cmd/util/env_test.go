package util

import (
	"testing"

	"github.com/spf13/cobra"

	"github.com/myschema/myschema/internal/config"
)

func newFlagCommand() (*cobra.Command, *GlobalFlags) {
	flags := &GlobalFlags{}
	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	cmd.Flags().StringVar(&flags.Host, "host", "", "")
	cmd.Flags().IntVar(&flags.Port, "port", 0, "")
	cmd.Flags().StringVar(&flags.User, "user", "", "")
	cmd.Flags().StringVar(&flags.Password, "password", "", "")
	return cmd, flags
}

func TestApplyConnectionFlags(t *testing.T) {
	cmd, flags := newFlagCommand()
	if err := cmd.ParseFlags([]string{"--host", "db.example", "--port", "3307"}); err != nil {
		t.Fatalf("ParseFlags() error: %v", err)
	}

	conn := config.ConnectionConfig{Host: "localhost", Port: 3306, User: "migrator", Password: "from-env"}
	ApplyConnectionFlags(cmd, &conn, *flags)

	want := config.ConnectionConfig{Host: "db.example", Port: 3307, User: "migrator", Password: "from-env"}
	if conn != want {
		t.Errorf("ApplyConnectionFlags() = %+v, want %+v", conn, want)
	}
}

func TestApplyConnectionFlags_Unset(t *testing.T) {
	cmd, flags := newFlagCommand()
	if err := cmd.ParseFlags(nil); err != nil {
		t.Fatalf("ParseFlags() error: %v", err)
	}

	conn := config.ConnectionConfig{Host: "localhost", Port: 3306, User: "root"}
	ApplyConnectionFlags(cmd, &conn, *flags)

	if conn.Host != "localhost" || conn.Port != 3306 || conn.User != "root" {
		t.Errorf("unset flags should not override the config, got %+v", conn)
	}
}

func TestApplyConnectionFlags_ExplicitEmptyPassword(t *testing.T) {
	cmd, flags := newFlagCommand()
	if err := cmd.ParseFlags([]string{"--password="}); err != nil {
		t.Fatalf("ParseFlags() error: %v", err)
	}

	conn := config.ConnectionConfig{Password: "from-file"}
	ApplyConnectionFlags(cmd, &conn, *flags)

	if conn.Password != "" {
		t.Errorf("an explicitly empty --password should clear the password, got %q", conn.Password)
	}
}
