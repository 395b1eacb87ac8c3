package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/tokohwatch/internal/classify"
	"github.com/TobiSchelling/tokohwatch/internal/config"
	"github.com/TobiSchelling/tokohwatch/internal/database"
	"github.com/TobiSchelling/tokohwatch/internal/pipeline"
	"github.com/TobiSchelling/tokohwatch/internal/progress"
	"github.com/TobiSchelling/tokohwatch/internal/risk"
	"github.com/TobiSchelling/tokohwatch/internal/scheduler"
	"github.com/TobiSchelling/tokohwatch/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "tokohwatch",
	Short:   "Political risk monitoring for public figures",
	Long:    "tokohwatch searches Indonesian news, finds mentions of tracked public figures and scores the risk of what they say.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		config.LoadEnv()

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(peopleCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(analyzeAllCmd)
	rootCmd.AddCommand(analyzeDocCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(recomputeCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("tokohwatch", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/tokohwatch/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure news sources, API keys, and the classification backend.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.Stats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}
		people, err := db.CountPeople()
		if err != nil {
			return fmt.Errorf("counting people: %w", err)
		}
		active, err := db.ListTasks(database.TaskActive)
		if err != nil {
			return fmt.Errorf("listing tasks: %w", err)
		}

		fmt.Printf("Database: %s\n\n", db.Path())
		fmt.Printf("Tracked people: %d\n", people)
		fmt.Printf("Active tasks: %d\n\n", len(active))
		fmt.Println("Analyses:")
		fmt.Printf("  Total records: %d\n", stats.TotalRecords)
		fmt.Printf("  Distinct texts: %d\n", stats.UniqueTexts)
		fmt.Printf("  Distinct people: %d\n", stats.UniquePeople)
		fmt.Printf("  Average score: %.1f\n", stats.AverageScore)
		fmt.Println("\nBy category:")
		for i := len(risk.Categories) - 1; i >= 0; i-- {
			c := risk.Categories[i]
			fmt.Printf("  %-7s %4d (%.1f%%)\n", c, stats.CategoryCounts[c], stats.CategoryPercent[c])
		}
		return nil
	},
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard and the task scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		cache, closeCache, err := openCache()
		if err != nil {
			return err
		}
		defer closeCache()

		pipe := pipeline.New(cfg, db, cache, progress.New())
		srv, err := server.New(db, pipe, server.Options{AllowedOrigins: cfg.Server.AllowedOrigins})
		if err != nil {
			return err
		}

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return srv.Serve(ctx, fmt.Sprintf(":%d", port))
		})
		g.Go(func() error {
			return scheduler.New(cfg.Tasks.Schedule, db, pipe).Run(ctx)
		})
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "tokohwatch.db")
	return database.Open(dbPath)
}

// openCache returns the configured classification cache and its closer.
func openCache() (classify.Cache, func(), error) {
	if cfg.Classifier.Cache != "redis" {
		return classify.NewMemoryCache(), func() {}, nil
	}
	rc, err := classify.NewRedisCache(cfg.Classifier.RedisURL, cfg.CacheTTL())
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to classification cache: %w", err)
	}
	return rc, func() { rc.Close() }, nil
}

// openPipeline opens the database and wires a pipeline around it. The
// returned function releases both.
func openPipeline() (*database.DB, *pipeline.Pipeline, func(), error) {
	db, err := openDB()
	if err != nil {
		return nil, nil, nil, err
	}
	cache, closeCache, err := openCache()
	if err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	pipe := pipeline.New(cfg, db, cache, progress.New())
	return db, pipe, func() {
		closeCache()
		db.Close()
	}, nil
}

// resolvePerson accepts a numeric ID or a name.
func resolvePerson(db *database.DB, ref string) (*database.Person, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		p, err := db.GetPerson(id)
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("person %d not found", id)
		}
		return p, err
	}
	p, err := db.GetPersonByName(ref)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("person %q not found", ref)
	}
	return p, err
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid ID: %s", arg)
	}
	return id, nil
}
