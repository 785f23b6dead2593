package clicmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/garden-io/garden-core/pkg/configstore"
	"github.com/garden-io/garden-core/pkg/console"
	"github.com/garden-io/garden-core/pkg/gardenerr"
	"github.com/spf13/cobra"
)

// NewConfigCommand is the parent of the local/global config-store
// subcommands.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Get, set, or clear values in the local or global config store",
	}
	cmd.PersistentFlags().Bool("global", false, "Operate on the global (per-user) store instead of the local (per-project) one")
	cmd.AddCommand(newConfigGetCommand())
	cmd.AddCommand(newConfigSetCommand())
	cmd.AddCommand(newConfigClearCommand())
	return cmd
}

func openStore(cmd *cobra.Command) (*configstore.Store, error) {
	global, _ := cmd.Flags().GetBool("global")
	if global {
		return configstore.NewGlobalStore()
	}
	root, err := projectRoot(cmd)
	if err != nil {
		return nil, err
	}
	return configstore.NewLocalStore(root)
}

func splitSectionKey(path string) (section, key string, err error) {
	parts := strings.SplitN(path, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", gardenerr.Newf(gardenerr.KindConfiguration, "expected <section>.<key>, got %q", path)
	}
	return parts[0], parts[1], nil
}

func newConfigGetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <section>.<key>",
		Short: "Print one value from the config store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			section, key, err := splitSectionKey(args[0])
			if err != nil {
				return err
			}
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			value, ok := store.GetKey(section, key)
			if !ok {
				return gardenerr.Newf(gardenerr.KindConfiguration, "%s.%s is not set", section, key)
			}
			fmt.Fprintln(os.Stdout, value)
			return nil
		},
	}
	cmd.Flags().String("root", "", "Project root directory (default: current directory)")
	return cmd
}

func newConfigSetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <section>.<key> <value>",
		Short: "Set one value in the config store",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			section, key, err := splitSectionKey(args[0])
			if err != nil {
				return err
			}
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			if err := store.SetKey(section, key, args[1]); err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, console.FormatSuccessMessage(fmt.Sprintf("set %s.%s", section, key)))
			return nil
		},
	}
	cmd.Flags().String("root", "", "Project root directory (default: current directory)")
	return cmd
}

func newConfigClearCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every section from the config store",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			if err := store.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, console.FormatSuccessMessage("config store cleared"))
			return nil
		},
	}
	cmd.Flags().String("root", "", "Project root directory (default: current directory)")
	return cmd
}
