package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/ssanime/manga-nexus-hub/internal/app"
	"github.com/ssanime/manga-nexus-hub/internal/queue"
)

func newQueueCmd() *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Download queue commands",
		Long:  `Enqueue chapters, drain the download queue and recover stalled items.`,
	}

	queueCmd.AddCommand(newQueueRunCmd())
	queueCmd.AddCommand(newQueueEnqueueCmd())
	queueCmd.AddCommand(newQueueResetStaleCmd())
	queueCmd.AddCommand(newQueueStatsCmd())
	return queueCmd
}

func newQueueRunCmd() *cobra.Command {
	var (
		mangaID string
		drain   bool
		maxRuns int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process one batch of pending chapters",
		Long:  `Process one bounded batch of the download queue. With --drain, batches repeat until nothing is left or a batch makes no progress.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if maxRuns < 1 {
				return fmt.Errorf("--max-runs must be at least 1")
			}
			return withServices(cmd, func(services *app.Services) error {
				var total queue.Summary
				for run := 0; run < maxRuns; run++ {
					summary, err := services.QueueProcessor.Run(cmd.Context(), mangaID)
					if err != nil {
						return err
					}
					total.Processed += summary.Processed
					total.Failed += summary.Failed
					total.Recovered += summary.Recovered
					total.Remaining = summary.Remaining

					if !drain || summary.Remaining == 0 || summary.Processed+summary.Failed == 0 {
						break
					}
				}
				total.Message = fmt.Sprintf("Processed %d chapters, %d failed, %d remaining", total.Processed, total.Failed, total.Remaining)
				return printJSON(cmd.OutOrStdout(), total)
			})
		},
	}

	cmd.Flags().StringVar(&mangaID, "manga-id", "", "only process chapters of this manga")
	cmd.Flags().BoolVar(&drain, "drain", false, "repeat batches until the queue is empty")
	cmd.Flags().IntVar(&maxRuns, "max-runs", 50, "upper bound on batches when draining")
	return cmd
}

func newQueueEnqueueCmd() *cobra.Command {
	var (
		mangaID    string
		chapterIDs []string
		priority   int
	)

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Queue a manga's chapters for page scraping",
		RunE: func(cmd *cobra.Command, args []string) error {
			mangaID = strings.TrimSpace(mangaID)
			if mangaID == "" {
				return fmt.Errorf("--manga-id is required")
			}
			return withServices(cmd, func(services *app.Services) error {
				manga, err := services.Manga.GetByID(mangaID)
				if err != nil {
					return err
				}
				if manga == nil {
					return fmt.Errorf("manga %s not found", mangaID)
				}

				source := ""
				if manga.Source != nil {
					source = *manga.Source
				}
				queued, err := services.Queue.EnqueueChapters(manga.ID, chapterIDs, source, priority)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %d chapters of %s\n", queued, manga.Title)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&mangaID, "manga-id", "", "manga whose chapters are queued")
	cmd.Flags().StringSliceVar(&chapterIDs, "chapter-id", nil, "limit to these chapters (repeatable)")
	cmd.Flags().IntVar(&priority, "priority", 0, "higher priorities are processed first")
	return cmd
}

func newQueueResetStaleCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "reset-stale",
		Short: "Return stalled processing items to pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, func(services *app.Services) error {
				reset, err := services.Queue.ResetStale(time.Now().Add(-olderThan))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d stale items\n", reset)
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", queue.DefaultStaleAfter, "reset items processing for longer than this")
	return cmd
}

func newQueueStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count queue items by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, func(services *app.Services) error {
				counts, err := services.Queue.CountByStatus()
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), counts)
			})
		},
	}
}
