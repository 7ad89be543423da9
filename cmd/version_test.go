package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/myschema/myschema/internal/version"
)

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer

	root := &cobra.Command{Use: "myschema"}
	root.AddCommand(VersionCmd)
	root.SetOut(&buf)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("version command execution failed: %v", err)
	}

	output := strings.TrimSpace(buf.String())
	if !strings.HasPrefix(output, "myschema v"+version.App()+"@") {
		t.Errorf("expected output to start with the application version, got: %s", output)
	}
	if !strings.Contains(output, version.Platform()) {
		t.Errorf("expected output to contain the platform, got: %s", output)
	}
}
