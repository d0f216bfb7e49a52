package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sinkingmoon/bubbles/internal/resources"
)

type envInfo struct {
	Name    string `json:"name"`
	BaseURL string `json:"base_url"`
}

type envCheck struct {
	Name      string `json:"name"`
	BaseURL   string `json:"base_url"`
	Operation string `json:"operation"`
	Status    int    `json:"status,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
}

func newEnvsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "envs",
		Aliases: []string{"environments"},
		Short:   "List configured environments",
		Args:    cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			res, err := loadResources()
			if err != nil {
				return err
			}
			infos := []envInfo{}
			for _, b := range res.Environments() {
				infos = append(infos, envInfo{Name: b.Name(), BaseURL: b.BaseURL()})
			}

			f := formatter(cmd.Context())
			if handled, err := f.OutputAny(infos); handled {
				return err
			}
			if len(infos) == 0 {
				f.Empty("No environments configured.")
				return nil
			}
			f.StartTable([]string{"ENV", "BASE URL"})
			for _, info := range infos {
				f.Row(info.Name, info.BaseURL)
			}
			return f.EndTable()
		}),
	}
	cmd.AddCommand(newEnvsCheckCmd())
	return cmd
}

func newEnvsCheckCmd() *cobra.Command {
	var (
		operation   string
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Call a no-argument operation against every environment",
		Long: `Call a no-argument operation (default "version") against every configured
environment concurrently and report status and latency. Fails when any
environment is unreachable or answers with a non-2xx status.`,
		Args: cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			if concurrency < 1 {
				return fmt.Errorf("--concurrency must be >= 1")
			}
			res, err := loadResources()
			if err != nil {
				return err
			}
			bindings := res.Environments()
			for _, b := range bindings {
				op, err := b.Operation(operation)
				if err != nil {
					return err
				}
				if op.Arity() != 0 {
					return fmt.Errorf("operation %s takes arguments; pick one without (see: bubbles endpoints)", op.Usage())
				}
			}

			results := checkEnvironments(cmd.Context(), bindings, operation, concurrency)

			f := formatter(cmd.Context())
			if handled, err := f.OutputAny(results); handled {
				if err != nil {
					return err
				}
			} else {
				f.StartTable([]string{"ENV", "STATUS", "LATENCY", "DETAIL"})
				for _, r := range results {
					status := "-"
					if r.Status != 0 {
						status = strconv.Itoa(r.Status)
					}
					detail := "ok"
					if !r.OK {
						detail = r.Error
					}
					f.Row(r.Name, status, fmt.Sprintf("%dms", r.LatencyMS), detail)
				}
				if err := f.EndTable(); err != nil {
					return err
				}
			}

			failed := 0
			for _, r := range results {
				if !r.OK {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d environment(s) failed the %s check", failed, len(results), operation)
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&operation, "operation", "version", "Operation to call")
	cmd.Flags().IntVar(&concurrency, "concurrency", 3, "Maximum environments checked at once")
	return cmd
}

// checkEnvironments calls operation on every binding. Failures are recorded
// per environment rather than aborting the others.
func checkEnvironments(ctx context.Context, bindings []*resources.Binding, operation string, concurrency int) []envCheck {
	results := make([]envCheck, len(bindings))
	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, b := range bindings {
		g.Go(func() error {
			r := envCheck{Name: b.Name(), BaseURL: b.BaseURL(), Operation: operation}
			start := time.Now()
			result, err := b.Invoke(ctx, operation)
			r.LatencyMS = time.Since(start).Milliseconds()
			switch {
			case err != nil:
				r.Error = err.Error()
			case !result.OK():
				r.Status = result.Status
				r.Error = fmt.Sprintf("HTTP %d", result.Status)
			default:
				r.Status = result.Status
				r.OK = true
			}
			results[i] = r
			return nil
		})
	}
	_ = g.Wait()
	return results
}
