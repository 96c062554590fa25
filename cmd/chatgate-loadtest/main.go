package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hrygo/chatgate/loadtest"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		baseURL     string
		total       int
		concurrency int
		message     string
		rampUp      bool
		rampPhases  []int
		minSuccess  float64
	)

	cmd := &cobra.Command{
		Use:   "chatgate-loadtest",
		Short: "Load-test client for the chat gateway SSE endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			client := loadtest.NewClient(baseURL)
			if err := client.HealthCheck(ctx); err != nil {
				return err
			}

			if rampUp {
				reports, err := client.RunRampUp(ctx, rampPhases, total, message, minSuccess)
				for _, phase := range reports {
					fmt.Printf("--- concurrency %d ---\n%s\n", phase.Concurrency, phase.Metrics.Report())
				}
				return err
			}

			m := client.RunConcurrent(ctx, total, concurrency, message)
			fmt.Print(m.Report())
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&baseURL, "url", "http://localhost:8000", "gateway base URL")
	flags.IntVar(&total, "requests", 100, "requests per run (per phase in ramp-up mode)")
	flags.IntVar(&concurrency, "concurrency", 10, "concurrent requests")
	flags.StringVar(&message, "message", "Hello from the load tester", "chat message to send")
	flags.BoolVar(&rampUp, "ramp-up", false, "run ramp-up phases instead of a single run")
	flags.IntSliceVar(&rampPhases, "phases", []int{10, 50, 100, 200}, "concurrency per ramp-up phase")
	flags.Float64Var(&minSuccess, "min-success", 95, "ramp-up stops below this success rate (percent)")

	return cmd
}
