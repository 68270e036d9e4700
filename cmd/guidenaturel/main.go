package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/TobiSchelling/GuideNaturel/internal/charts"
	"github.com/TobiSchelling/GuideNaturel/internal/chat"
	"github.com/TobiSchelling/GuideNaturel/internal/config"
	"github.com/TobiSchelling/GuideNaturel/internal/database"
	"github.com/TobiSchelling/GuideNaturel/internal/importer"
	"github.com/TobiSchelling/GuideNaturel/internal/jobs"
	"github.com/TobiSchelling/GuideNaturel/internal/logger"
	"github.com/TobiSchelling/GuideNaturel/internal/metrics"
	"github.com/TobiSchelling/GuideNaturel/internal/search"
	"github.com/TobiSchelling/GuideNaturel/internal/server"
	"github.com/TobiSchelling/GuideNaturel/internal/session"
	"github.com/TobiSchelling/GuideNaturel/internal/vocab"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
	log        zerolog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "guidenaturel",
	Short:   "Species observation guide for Bourgogne-Franche-Comté",
	Long:    "guidenaturel imports regional INPN observations and serves a dashboard and a guided species search.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			log = logger.Init(logger.Config{Level: "info", Pretty: true})
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

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		log = logger.Init(logger.Config{Level: level, Pretty: cfg.Logging.Pretty})
		log.Debug().Str("config", path).Msg("config loaded")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(analyticsCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("guidenaturel", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/guidenaturel/",
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
		fmt.Println("Then load observations with 'guidenaturel import --observations <csv>'.")
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

		stats, err := db.GetStats(cmd.Context())
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Database: %s (%s)\n\n", db.Path(), db.Driver())
		fmt.Println("Observations:")
		fmt.Printf("  Rows: %d\n", stats.Observations)
		fmt.Printf("  Species: %d\n", stats.Species)
		fmt.Printf("  Communes: %d\n", stats.Communes)
		fmt.Printf("  Departments: %d\n", stats.Departments)
		fmt.Println("\nAnalytics:")
		fmt.Printf("  Searches logged: %d\n", stats.SearchLogs)
		fmt.Printf("  Skipped questions: %d\n", stats.SkippedQuestions)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if p, _ := cmd.Flags().GetInt("port"); p != 0 {
			cfg.Server.Port = p
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		m := metrics.New()
		searcher := newSearcher(db, m)

		corrector, err := vocab.New(cfg.Search.FuzzyThreshold)
		if err != nil {
			return err
		}

		store := session.NewMemoryStore(cfg.Sessions.TTL, cfg.Sessions.CleanupInterval)
		store.OnEvicted(func(id string) {
			log.Debug().Str("conversation_id", id).Msg("conversation expired")
			m.ConversationsActive.Set(float64(store.Len()))
		})

		botOpts := []chat.Option{chat.WithMetrics(m)}
		if cfg.Analytics.Enabled {
			botOpts = append(botOpts, chat.WithAnalytics(chat.NewDBAnalytics(db)))
		}
		bot := chat.NewBot(store, corrector, searcher, logger.Component(log, "chat"), botOpts...)

		builder := charts.NewBuilder(db, nil, cfg.Charts.Departments, m, logger.Component(log, "charts"))

		srv, err := server.New(cfg.Server, server.Deps{
			Bot:     bot,
			Charts:  builder,
			DB:      db,
			Metrics: m,
			Logger:  logger.Component(log, "server"),
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if cfg.Analytics.Enabled {
			scheduler := jobs.NewScheduler(logger.Component(log, "jobs"))
			purge := jobs.NewAnalyticsPurge(db, cfg.Analytics.RetentionDays, logger.Component(log, "jobs"))
			if err := scheduler.Add(jobs.PurgeJobName, cfg.Analytics.PurgeSchedule, purge.Task()); err != nil {
				return err
			}
			scheduler.Start()
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
				defer cancel()
				scheduler.Stop(stopCtx)
			}()
		}

		return srv.Serve(ctx)
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import an INPN observation extract",
	RunE: func(cmd *cobra.Command, args []string) error {
		obsPath, _ := cmd.Flags().GetString("observations")
		statusPath, _ := cmd.Flags().GetString("statuses")
		replace, _ := cmd.Flags().GetBool("replace")

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		start := time.Now()
		im := importer.New(db, logger.Component(log, "importer"))
		report, err := im.ImportFiles(cmd.Context(), obsPath, statusPath, replace)
		if err != nil {
			return fmt.Errorf("importing: %w", err)
		}

		fmt.Printf("Import complete in %s\n", time.Since(start).Round(time.Millisecond))
		fmt.Printf("  Rows read: %d\n", report.Read)
		fmt.Printf("  Rows kept: %d\n", report.Kept)
		fmt.Printf("  With status: %d\n", report.WithStatus)
		for _, reason := range []string{importer.DropDepartment, importer.DropMissing, importer.DropKingdom, importer.DropDuplicate} {
			fmt.Printf("  Dropped (%s): %d\n", reason, report.Dropped[reason])
		}
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search species from the command line",
	Long: `Search species with the same filters as the guided chat.

Example:
  guidenaturel search --regne animalia --departement 21 --nom mesange
  guidenaturel search --filter codeStatut=VU --filter commune=Dijon`,
	RunE: func(cmd *cobra.Command, args []string) error {
		pairs, _ := cmd.Flags().GetStringArray("filter")
		filters, err := search.ParseFilters(pairs)
		if err != nil {
			return err
		}
		for _, field := range search.Fields {
			value, _ := cmd.Flags().GetString(searchFlags[field])
			if value == "" {
				continue
			}
			if err := filters.Set(field, value); err != nil {
				return err
			}
		}

		corrector, err := vocab.New(cfg.Search.FuzzyThreshold)
		if err != nil {
			return err
		}
		for _, field := range search.Fields {
			if v := filters.Get(field); v != "" {
				corrected := corrector.Correct(string(field), v)
				if corrected != v {
					fmt.Fprintf(os.Stderr, "%s: %q corrected to %q\n", field, v, corrected)
				}
				_ = filters.Set(field, corrected)
			}
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		page, _ := cmd.Flags().GetInt("page")
		result, err := newSearcher(db, nil).Search(cmd.Context(), filters, page)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		fmt.Println(result.Message)
		for _, s := range result.Items {
			fmt.Printf("\n  %s (%s)\n", s.VernacularName, s.ScientificName)
			fmt.Printf("    %s / %s, %d observations\n", s.Kingdom, s.SimpleGroup, s.TotalObservations)
			if len(s.Statuses) > 0 {
				fmt.Printf("    Statuts: %s\n", strings.Join(s.Statuses, ", "))
			}
			if len(s.Communes) > 0 {
				names := make([]string, 0, len(s.Communes))
				for _, c := range s.Communes {
					names = append(names, fmt.Sprintf("%s (%d)", c.Commune, c.Department))
				}
				fmt.Printf("    Communes: %s\n", strings.Join(names, ", "))
			}
		}
		return nil
	},
}

// searchFlags maps filter fields to CLI flag names.
var searchFlags = map[search.Field]string{
	search.FieldKingdom:     "regne",
	search.FieldSimpleGroup: "groupe",
	search.FieldDepartment:  "departement",
	search.FieldCommune:     "commune",
	search.FieldVernacular:  "nom",
	search.FieldStatus:      "statut",
}

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Inspect or purge usage analytics",
}

var analyticsSkipsCmd = &cobra.Command{
	Use:   "skips",
	Short: "Show how often each chat question was skipped",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		counts, err := db.GetSkipCounts(cmd.Context())
		if err != nil {
			return err
		}
		if len(counts) == 0 {
			fmt.Println("No skipped questions recorded.")
			return nil
		}
		for _, c := range counts {
			fmt.Printf("  %-16s %d\n", c.QuestionID, c.Count)
		}
		return nil
	},
}

var analyticsPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete analytics older than the retention period",
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")
		if days <= 0 {
			days = cfg.Analytics.RetentionDays
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := jobs.NewAnalyticsPurge(db, days, logger.Component(log, "jobs")).Run(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d analytics rows older than %d days\n", n, days)
		return nil
	},
}

func init() {
	serveCmd.Flags().IntP("port", "p", 0, "Port to listen on (overrides config)")

	importCmd.Flags().String("observations", "", "INPN observation extract (CSV)")
	importCmd.Flags().String("statuses", "", "Status reference with CD_NOM and CODE_STATUT (CSV)")
	importCmd.Flags().Bool("replace", false, "Replace existing observations")
	_ = importCmd.MarkFlagRequired("observations")

	for _, field := range search.Fields {
		searchCmd.Flags().String(searchFlags[field], "", fmt.Sprintf("Filter on %s", field))
	}
	searchCmd.Flags().StringArray("filter", nil, "Filter as name=value using API field names (repeatable)")
	searchCmd.Flags().Int("page", 1, "Result page")
	searchCmd.Flags().Bool("json", false, "Print the raw result as JSON")

	analyticsPurgeCmd.Flags().Int("days", 0, "Retention in days (default from config)")
	analyticsCmd.AddCommand(analyticsSkipsCmd)
	analyticsCmd.AddCommand(analyticsPurgeCmd)
}

func openDB() (*database.DB, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}
	return database.Open(database.Options{
		Driver:        cfg.Database.Driver,
		DSN:           dsn,
		Logger:        log,
		SlowThreshold: cfg.Database.SlowThreshold,
	})
}

func newSearcher(db *database.DB, m *metrics.Metrics) *search.Searcher {
	groupBy := database.GroupByVernacular
	if cfg.Search.GroupBy == "scientific" {
		groupBy = database.GroupByScientific
	}
	return search.New(db, search.Options{
		PageSize:     cfg.Search.PageSize,
		QueryTimeout: cfg.Search.QueryTimeout,
		GroupBy:      groupBy,
		Metrics:      m,
	}, logger.Component(log, "search"))
}
