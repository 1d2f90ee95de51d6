package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"thoughtweb/application/services"
	"thoughtweb/domain/core/entities"
	"thoughtweb/infrastructure/config"
	"thoughtweb/infrastructure/di"
)

// AnalysisReport is what analyze prints.
type AnalysisReport struct {
	Thoughts    int                           `json:"thoughts"`
	Connections []*entities.Connection        `json:"connections"`
	Clusters    []*entities.ConnectionCluster `json:"clusters"`
	Patterns    []*entities.MemoryPattern     `json:"patterns"`
	Insights    []*entities.MemoryInsight     `json:"insights"`
	Stats       entities.ConnectionStats      `json:"stats"`
	Duration    time.Duration                 `json:"duration"`
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <thoughts.json>",
	Short: "Process a file of thoughts and report connections, clusters, patterns and insights",
	Long: `The file holds a JSON array of thoughts, or an object with a "thoughts" array.
Each thought has content and optionally id, tags, timestamp and wonderScore.
Use - to read standard input.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		inputs, err := readThoughts(args[0])
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		c, cleanup, err := openContainer(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		start := time.Now()
		result, err := c.Processor.ProcessThoughts(ctx, inputs)
		if err != nil {
			return fmt.Errorf("failed to process thoughts: %w", err)
		}
		clusters := c.Connections.DetectClusters(ctx)
		insights, err := c.Insights.GenerateInsights(ctx, services.InsightRequest{})
		if err != nil {
			return fmt.Errorf("failed to generate insights: %w", err)
		}

		report := AnalysisReport{
			Thoughts:    len(inputs),
			Connections: result.Connections,
			Clusters:    clusters,
			Patterns:    result.Patterns,
			Insights:    insights,
			Stats:       c.Connections.Stats(),
			Duration:    time.Since(start),
		}
		if dbPath != "" {
			if err := c.Persist(ctx); err != nil {
				return fmt.Errorf("failed to save state: %w", err)
			}
		}

		if outputJSON {
			return printJSON(cmd.OutOrStdout(), report)
		}
		printReport(cmd.OutOrStdout(), report)
		return nil
	},
}

var pathCmd = &cobra.Command{
	Use:   "path <from> <to>",
	Short: "Find the strongest short path between two items",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if dbPath == "" {
			return fmt.Errorf("--db is required: path reads a graph saved by analyze")
		}
		maxDepth, _ := cmd.Flags().GetInt("max-depth")

		c, cleanup, err := openContainer(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		path, ok := c.Connections.FindPath(args[0], args[1], maxDepth)
		if !ok {
			return fmt.Errorf("no path from %s to %s within %d hops", args[0], args[1], maxDepth)
		}

		if outputJSON {
			return printJSON(cmd.OutOrStdout(), path)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s (%d hops, weight %.3f)\n", strings.Join(path.Path, " -> "), path.Length, path.Weight)
		for _, conn := range path.Connections {
			fmt.Fprintf(out, "  %s -> %s  %-11s %.3f  %s\n", conn.SourceID, conn.TargetID, conn.Type, conn.Weight, conn.Reason)
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show memory and graph statistics of a saved database",
	RunE: func(cmd *cobra.Command, args []string) error {
		if dbPath == "" {
			return fmt.Errorf("--db is required")
		}
		c, cleanup, err := openContainer(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		stats := map[string]any{
			"memories": c.Memories.GetStats(),
			"graph":    c.Connections.Stats(),
		}
		if outputJSON {
			return printJSON(cmd.OutOrStdout(), stats)
		}
		graph := c.Connections.Stats()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Memories:     %s\n", humanize.Comma(int64(c.Memories.Count())))
		fmt.Fprintf(out, "Items:        %s\n", humanize.Comma(int64(graph.Nodes)))
		fmt.Fprintf(out, "Connections:  %s (%d confirmed, %d dismissed)\n",
			humanize.Comma(int64(graph.Connections)), graph.Confirmed, graph.Dismissed)
		fmt.Fprintf(out, "Clusters:     %d\n", graph.Clusters)
		fmt.Fprintf(out, "Avg weight:   %.3f\n", graph.AverageWeight)
		return nil
	},
}

// openContainer builds the services for one command run and restores any
// saved state.
func openContainer(ctx context.Context) (*di.Container, func(), error) {
	cfg, err := config.NewLoader(configPath, config.ParseEnvironment(os.Getenv("ENVIRONMENT"))).Load()
	if err != nil {
		return nil, nil, err
	}
	cfg.Logging.Level = "warn"
	if verbose {
		cfg.Logging.Level = "debug"
	}
	cfg.Events.Provider = "none"
	cfg.Tracing.Enabled = false
	cfg.Domain.Connection.EnableBackgroundDiscovery = false
	cfg.Storage.Provider = "memory"
	if dbPath != "" {
		cfg.Storage.Provider = "sqlite"
		cfg.Storage.SQLitePath = dbPath
	}

	c, cleanup, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := c.Start(ctx); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to restore state: %w", err)
	}
	return c, cleanup, nil
}

func readThoughts(path string) ([]services.ThoughtInput, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var inputs []services.ThoughtInput
	if err := json.Unmarshal(data, &inputs); err == nil {
		return inputs, nil
	}
	var wrapped struct {
		Thoughts []services.ThoughtInput `json:"thoughts"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return wrapped.Thoughts, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printReport(w io.Writer, r AnalysisReport) {
	fmt.Fprintf(w, "Processed %d thoughts in %s\n\n", r.Thoughts, r.Duration.Round(time.Millisecond))

	fmt.Fprintf(w, "Connections (%d new, %d total):\n", len(r.Connections), r.Stats.Connections)
	for _, c := range r.Connections {
		fmt.Fprintf(w, "  %s -> %s  %-11s %.3f  %s\n", c.SourceID, c.TargetID, c.Type, c.Weight, c.Reason)
	}

	fmt.Fprintf(w, "\nClusters (%d):\n", len(r.Clusters))
	for _, c := range r.Clusters {
		fmt.Fprintf(w, "  %-12s %d items, cohesion %.2f  [%s]\n", c.Theme, len(c.ItemIDs), c.Cohesion, strings.Join(c.ItemIDs, ", "))
	}

	fmt.Fprintf(w, "\nPatterns (%d):\n", len(r.Patterns))
	for _, p := range r.Patterns {
		fmt.Fprintf(w, "  %-10s %.2f  %d memories  %s\n", p.Type, p.Confidence, len(p.MemoryIDs), p.Description)
	}

	fmt.Fprintf(w, "\nInsights (%d):\n", len(r.Insights))
	for _, in := range r.Insights {
		fmt.Fprintf(w, "  [%s] %s (%s)\n", in.Type, in.Message, humanize.Time(in.GeneratedAt))
	}
}
