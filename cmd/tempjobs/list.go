package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rh-ecosystem-edge/tempjobs/pkg/tempjobs"
	"github.com/spf13/cobra"
)

type listedJob struct {
	ID      tempjobs.JobID `json:"id"`
	Name    string         `json:"name"`
	Image   string         `json:"image"`
	Host    string         `json:"host"`
	Created time.Time      `json:"created"`
	Ports   []string       `json:"ports"`
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List temporary jobs",
		Long: `List the temporary jobs of the namespace whose name starts with the prefix.

Examples:
  # List jobs created by the test suites
  tempjobs list

  # List jobs in JSON format
  tempjobs list --json`,
		RunE: runList,
	}
}

func runList(cmd *cobra.Command, _ []string) error {
	gateway, err := newGateway()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	jobs, err := gateway.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}

	listed := make([]listedJob, 0, len(jobs))

	for id, spec := range jobs {
		if prefix != "" && !strings.HasPrefix(spec.Name, prefix+"-") {
			continue
		}

		listed = append(listed, listedJob{
			ID:      id,
			Name:    spec.Name,
			Image:   spec.Image.String(),
			Host:    spec.Host,
			Created: spec.Created,
			Ports:   spec.PortNames(),
		})
	}

	sort.Slice(listed, func(i, j int) bool { return listed[i].ID < listed[j].ID })

	if jsonOutput {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")

		return encoder.Encode(listed)
	}

	if len(listed) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No jobs found")

		return nil
	}

	writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tIMAGE\tHOST\tAGE\tPORTS")

	for _, job := range listed {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n", job.ID, job.Image, job.Host,
			time.Since(job.Created).Round(time.Second), strings.Join(job.Ports, ","))
	}

	if err := writer.Flush(); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	return nil
}
