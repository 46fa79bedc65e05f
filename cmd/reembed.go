package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/camden-git/missingpersons/database"
	"github.com/camden-git/missingpersons/media"
	"github.com/camden-git/missingpersons/workers"
)

var reembedCmd = &cobra.Command{
	Use:   "reembed",
	Short: "Recompute every stored face embedding from the reference photos",
	Long: `Recompute the face embedding of every registered person from the stored
reference photo using the configured face backend.

Persons whose photo no longer contains a detectable face have their embedding
cleared. Persons whose photo is missing from storage are left untouched.
Running the command twice with the same backend changes nothing.

Examples:
  # Rebuild with the default backend
  missingpersons reembed

  # Switch the registry to the opencv backend
  FACE_BACKEND=opencv missingpersons reembed --workers 4

  # JSON output for scripting
  missingpersons reembed --json`,
	RunE: runReembed,
}

func init() {
	rootCmd.AddCommand(reembedCmd)

	reembedCmd.Flags().Int("workers", 0, "Number of parallel workers (default REEMBED_WORKERS)")
	reembedCmd.Flags().Bool("json", false, "Output as JSON instead of progress bar")
}

// ReembedResult is the JSON summary of a rebuild run
type ReembedResult struct {
	Success       bool           `json:"success"`
	Model         string         `json:"model"`
	Total         int            `json:"total"`
	Updated       int            `json:"updated"`
	Cleared       int            `json:"cleared"`
	MissingImage  int            `json:"missing_image"`
	Failed        int            `json:"failed"`
	Problems      []ReembedIssue `json:"problems,omitempty"`
	DurationMs    int64          `json:"duration_ms"`
	DurationHuman string         `json:"duration_human,omitempty"`
}

type ReembedIssue struct {
	PersonID int64                  `json:"person_id"`
	Name     string                 `json:"name"`
	Outcome  workers.RebuildOutcome `json:"outcome"`
	Error    string                 `json:"error,omitempty"`
}

func runReembed(cmd *cobra.Command, args []string) error {
	numWorkers := mustGetInt(cmd, "workers")
	jsonOutput := mustGetBool(cmd, "json")

	cfg, log, err := bootstrap("reembed")
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	if numWorkers <= 0 {
		numWorkers = cfg.ReembedWorkers
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	startTime := time.Now()

	_, sqlDB, err := openDatabase(cfg, log)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}

	extractor, err := newExtractor(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to load face backend %s: %w", cfg.FaceBackend, err)
	}
	defer extractor.Close()

	people, err := database.ListPersonImages(ctx, sqlDB)
	if err != nil {
		return fmt.Errorf("failed to count persons: %w", err)
	}
	if len(people) == 0 {
		if jsonOutput {
			return printJSON(ReembedResult{Success: true, Model: extractor.ModelName()})
		}
		fmt.Println("No registered persons, nothing to do.")
		return nil
	}

	var bar *progressbar.ProgressBar
	if !jsonOutput {
		fmt.Printf("Rebuilding %d embeddings with %s (%d workers)\n\n", len(people), extractor.ModelName(), numWorkers)
		bar = progressbar.NewOptions(len(people),
			progressbar.OptionSetDescription("Re-embedding"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("persons"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}

	rebuilder := workers.NewEmbeddingRebuilder(sqlDB, extractor, media.NewProcessor(store, log.Named("media")), numWorkers, log)
	summary, runErr := rebuilder.Run(ctx, func(workers.RebuildResult) {
		if bar != nil {
			_ = bar.Add(1)
		}
	})
	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}

	result := ReembedResult{
		Success:      runErr == nil && summary.Failed == 0,
		Model:        extractor.ModelName(),
		Total:        summary.Total,
		Updated:      summary.Updated,
		Cleared:      summary.Cleared,
		MissingImage: summary.MissingImage,
		Failed:       summary.Failed,
		DurationMs:   time.Since(startTime).Milliseconds(),
	}
	for _, r := range summary.Results {
		if r.Outcome == workers.OutcomeUpdated {
			continue
		}
		issue := ReembedIssue{PersonID: r.PersonID, Name: r.Name, Outcome: r.Outcome}
		if r.Err != nil {
			issue.Error = r.Err.Error()
		}
		result.Problems = append(result.Problems, issue)
	}

	if runErr != nil {
		log.Warn("embedding rebuild interrupted", zap.Error(runErr))
	}

	if jsonOutput {
		if err := printJSON(result); err != nil {
			return err
		}
	} else {
		result.DurationHuman = time.Since(startTime).Round(time.Millisecond).String()
		fmt.Printf("Updated: %d  Cleared: %d  Missing image: %d  Failed: %d  (%s)\n",
			result.Updated, result.Cleared, result.MissingImage, result.Failed, result.DurationHuman)
		for _, p := range result.Problems {
			if p.Error != "" {
				fmt.Printf("  #%d %s: %s (%s)\n", p.PersonID, p.Name, p.Outcome, p.Error)
			} else {
				fmt.Printf("  #%d %s: %s\n", p.PersonID, p.Name, p.Outcome)
			}
		}
	}

	if runErr != nil {
		return fmt.Errorf("rebuild interrupted: %w", runErr)
	}
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
