package clicmd

import (
	"fmt"
	"os"

	"github.com/garden-io/garden-core/pkg/console"
	"github.com/spf13/cobra"
)

var cliVersion = "dev"

// SetVersion records the build-time version string main() resolves
// (e.g. from a GoReleaser-injected variable), for NewVersionCommand and
// the root command's --version flag.
func SetVersion(v string) {
	if v != "" {
		cliVersion = v
	}
}

// NewVersionCommand prints the CLI's build version.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the garden CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(os.Stdout, console.FormatInfoMessage(fmt.Sprintf("garden version %s", cliVersion)))
		},
	}
}
