package commands

import (
	"fmt"
	"io"
	"strings"

	"birdwatch-support/pkg/registry"

	"github.com/spf13/cobra"
)

func TasksCommand(env *Env) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List the service task types the workers serve",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg := registry.Default()
			if path != "" {
				loaded, err := registry.LoadRegistry(path)
				if err != nil {
					return err
				}
				reg = loaded
			}
			if err := reg.Validate(); err != nil {
				return fmt.Errorf("invalid activity registry: %w", err)
			}
			return PrintTasks(env.Out, reg)
		},
	}
	cmd.Flags().StringVar(&path, "registry", "", "read the activity registry from a JSON file")

	return cmd
}

func PrintTasks(out io.Writer, reg *registry.ActivityRegistry) error {
	for _, a := range reg.Activities {
		if _, err := fmt.Fprintf(out, "%-24s %-8s %s\n", a.TaskType, a.Timeout, a.DisplayName); err != nil {
			return err
		}
		if len(a.ErrorCodes) > 0 {
			fmt.Fprintf(out, "  errors: %s\n", strings.Join(a.ErrorCodes, ", "))
		}
	}
	return nil
}
