package main

import (
	"github.com/spf13/cobra"
	"github.com/ssanime/manga-nexus-hub/internal/app"
	"github.com/ssanime/manga-nexus-hub/internal/models"
	"github.com/ssanime/manga-nexus-hub/internal/scrape"
)

func newScrapeCmd() *cobra.Command {
	var req scrape.Request

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Run one scrape job",
		Long:  `Fetch a series, chapter list or chapter reader page and store the result, exactly like the scrape endpoint.`,
		Example: `  mangactl scrape --type manga_info --url https://lekmanga.net/manga/solo-leveling/
  mangactl scrape --type pages --chapter-id 3f0c...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, func(services *app.Services) error {
				result, err := services.Scraper.Run(cmd.Context(), req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}

	cmd.Flags().StringVar(&req.JobType, "type", models.JobTypeMangaInfo, "job type: manga_info, chapters or pages")
	cmd.Flags().StringVar(&req.URL, "url", "", "page to scrape")
	cmd.Flags().StringVar(&req.ChapterID, "chapter-id", "", "stored chapter to scrape pages for")
	cmd.Flags().StringVar(&req.Source, "source", "", "source profile name, detected from the url when empty")
	return cmd
}
