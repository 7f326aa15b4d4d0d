package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/knowmcp/knowmcp/internal/config"
)

// projectConfigFile is the per-project configuration file name.
const projectConfigFile = ".knowmcp.yaml"

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default project configuration",
		Long: `Write a commented default configuration to .knowmcp.yaml in the
current directory. Existing files are left alone unless --force is
given.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(projectConfigFile); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)",
					projectConfigFile)
			}

			if err := config.NewConfig().WriteYAML(projectConfigFile); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", projectConfigFile)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")

	return cmd
}
