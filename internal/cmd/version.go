package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sinkingmoon/bubbles/internal/iocontext"
	"github.com/sinkingmoon/bubbles/internal/update"
)

// version is set at build time via ldflags
var version = "dev"

func newVersionCmd() *cobra.Command {
	var (
		require   string
		operation string
	)
	cmd := &cobra.Command{
		Use:     "version",
		Aliases: []string{"v"},
		Short:   "Print version information",
		Long: `Print the client version. With --require, also call the API's version
operation and fail unless its versionName is at least the given semver.`,
		Args: cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			out := iocontext.GetIO(cmd.Context()).Out
			_, _ = fmt.Fprintf(out, "bubbles version %s\n", version)
			if require == "" {
				return nil
			}

			s, err := openSession()
			if err != nil {
				return err
			}
			call, err := s.binding.Func(operation)
			if err != nil {
				return err
			}
			result, err := update.Check(cmd.Context(), update.Fetcher(call), require)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "%s (%s) version %s\n", result.APIName, s.env, result.ServerVersion)
			if !result.Satisfied {
				return fmt.Errorf("API version %s is older than required %s", result.ServerVersion, result.Required)
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&require, "require", "", "Minimum API version (semver) to require")
	cmd.Flags().StringVar(&operation, "operation", "version", "Operation that returns the API version")
	return cmd
}
