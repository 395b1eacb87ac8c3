package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/tokohwatch/internal/classify"
	"github.com/TobiSchelling/tokohwatch/internal/collect"
	"github.com/TobiSchelling/tokohwatch/internal/database"
	"github.com/TobiSchelling/tokohwatch/internal/pipeline"
	"github.com/TobiSchelling/tokohwatch/internal/report"
)

// --- search command ---

var (
	searchFrom  string
	searchTo    string
	searchToday bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search news sources for articles",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		searcher := collect.NewSearcher(cfg)
		articles, err := searcher.Search(context.Background(), collect.Query{
			Keyword:      strings.Join(args, " "),
			From:         searchFrom,
			To:           searchTo,
			IncludeToday: searchToday,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Found %d articles:\n\n", len(articles))
		for i, a := range articles {
			date := "-"
			if !a.PublishedAt.IsZero() {
				date = a.PublishedAt.Format("2006-01-02")
			}
			fmt.Printf("  %2d. [%s] %s (%s)\n      %s\n", i+1, date, a.Title, a.Source, a.URL)
		}
		return nil
	},
}

// --- analyze commands ---

var (
	articleTitle   string
	articleSource  string
	articleKeyword string
)

func articleFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&articleTitle, "title", "", "Article title (used when extraction fails)")
	cmd.Flags().StringVar(&articleSource, "source", "", "Article source name")
	cmd.Flags().StringVar(&articleKeyword, "keyword", "", "Search keyword that found the article")
}

func articleFromArgs(url string) pipeline.Article {
	return pipeline.Article{URL: url, Title: articleTitle, Source: articleSource, Keyword: articleKeyword}
}

var analyzePerson string

var analyzeCmd = &cobra.Command{
	Use:   "analyze [url]",
	Short: "Analyze an article for one person",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, pipe, closeAll, err := openPipeline()
		if err != nil {
			return err
		}
		defer closeAll()

		person, err := resolvePerson(db, analyzePerson)
		if err != nil {
			return err
		}

		an, err := pipe.AnalyzeOne(context.Background(), articleFromArgs(args[0]), person.ID)
		if err != nil {
			return err
		}
		printAnalysis(an)
		return nil
	},
}

var analyzeAllCmd = &cobra.Command{
	Use:   "analyze-all [url]",
	Short: "Analyze an article for every tracked person",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, pipe, closeAll, err := openPipeline()
		if err != nil {
			return err
		}
		defer closeAll()

		result, err := pipe.AnalyzeAll(context.Background(), articleFromArgs(args[0]))
		if err != nil {
			return err
		}
		printBatch(result)
		return nil
	},
}

var analyzeDocCmd = &cobra.Command{
	Use:   "analyze-doc [file]",
	Short: "Analyze a text document paragraph by paragraph (\"-\" reads stdin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var data []byte
		var err error
		if args[0] == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return fmt.Errorf("reading document: %w", err)
		}
		paragraphs := pipeline.SplitParagraphs(string(data))
		if len(paragraphs) == 0 {
			return fmt.Errorf("document has no paragraphs")
		}

		_, pipe, closeAll, err := openPipeline()
		if err != nil {
			return err
		}
		defer closeAll()

		fmt.Printf("Analyzing %d paragraphs...\n", len(paragraphs))
		result, err := pipe.AnalyzeDocument(context.Background(), paragraphs)
		if err != nil {
			return err
		}
		printBatch(result)
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchFrom, "from", "", "Start date (default: days_back before today)")
	searchCmd.Flags().StringVar(&searchTo, "to", "", "End date")
	searchCmd.Flags().BoolVar(&searchToday, "today", false, "Search up to and including today")

	articleFlags(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&analyzePerson, "person", "p", "", "Person ID or name")
	analyzeCmd.MarkFlagRequired("person")
	articleFlags(analyzeAllCmd)
}

func printAnalysis(an *pipeline.Analysis) {
	printRecord(an.Record)
	if an.Method != "" {
		fmt.Printf("  Extraction: %s\n", an.Method)
	}
	if an.Warning != "" {
		fmt.Printf("  Warning: %s\n", an.Warning)
	} else if an.RecordID != 0 {
		fmt.Printf("  Stored as record %d\n", an.RecordID)
	}
}

func printRecord(r *classify.Record) {
	fmt.Printf("\n%s (%s)\n", r.Name, r.Position)
	fmt.Printf("  Risk: %d (%s) %s, urgency %s\n", r.Score, r.Percentage, r.Category, r.Urgency)
	if r.Summary != "" {
		fmt.Printf("  Summary: %s\n", r.Summary)
	}
	for _, f := range r.Factors {
		fmt.Printf("  - %s\n", f)
	}
	if r.Recommendation != "" {
		fmt.Printf("  Recommendation: %s\n", r.Recommendation)
	}
}

func printBatch(result *pipeline.BatchResult) {
	for i := range result.Analyses {
		printAnalysis(&result.Analyses[i])
	}
	fmt.Printf("\nAnalyzed: %d, skipped: %d, errors: %d\n", len(result.Analyses), result.Skipped, result.Errors)
}

// --- export / report commands ---

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all analysis records as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		path := exportOut
		if path == "" {
			path = fmt.Sprintf("results_export_%s.json", time.Now().Format("20060102_150405"))
		}
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating export file: %w", err)
		}
		defer f.Close()

		n, err := db.ExportJSON(f)
		if err != nil {
			return err
		}
		fmt.Printf("Exported %d records to %s\n", n, path)
		return nil
	},
}

var reportOut string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write a Markdown risk report",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		records, err := db.ListRecords(database.RecordFilter{})
		if err != nil {
			return err
		}
		md := report.Compose(records, time.Now()).Markdown()
		if reportOut == "" {
			fmt.Print(md)
			return nil
		}
		if err := os.WriteFile(reportOut, []byte(md), 0o644); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		fmt.Printf("Report written to %s\n", reportOut)
		return nil
	},
}

var recomputeCmd = &cobra.Command{
	Use:   "recompute-urgency",
	Short: "Re-derive urgency from category for every stored record",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := db.RecomputeUrgency()
		if err != nil {
			return err
		}
		fmt.Printf("Updated urgency on %d records\n", n)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file")
	reportCmd.Flags().StringVarP(&reportOut, "out", "o", "", "Output file (default: stdout)")
}
