package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/christopherklint97/whoopsheet/internal/config"
	"github.com/christopherklint97/whoopsheet/internal/github"
	"github.com/christopherklint97/whoopsheet/internal/metrics"
	"github.com/christopherklint97/whoopsheet/internal/notify"
	"github.com/christopherklint97/whoopsheet/internal/running"
	"github.com/christopherklint97/whoopsheet/internal/sheet"
	"github.com/christopherklint97/whoopsheet/internal/store"
	"github.com/christopherklint97/whoopsheet/internal/syncer"
	"github.com/christopherklint97/whoopsheet/internal/whoop"
)

var errDatesFailed = errors.New("some dates could not be written")

var rootCmd = &cobra.Command{
	Use:           "whoopsheet",
	Short:         "Sync WHOOP running time into a Google Sheets training log",
	Long:          "whoopsheet fetches running workouts from WHOOP, totals them per day, and writes each day's minutes into a weekly Google Sheets grid.",
	RunE:          runSync,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Write recent running totals to the sheet (default command)",
	RunE:  runSync,
}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize with WHOOP through a local HTTPS callback",
	RunE:  runAuth,
}

var uploadTokensCmd = &cobra.Command{
	Use:   "upload-tokens",
	Short: "Store the WHOOP token file as a GitHub Actions secret",
	RunE:  runUploadTokens,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent sync runs",
	RunE:  runStatus,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Open config file in your editor",
	RunE:  runConfig,
}

func addSyncFlags(cmd *cobra.Command) {
	cmd.Flags().Int("days-ago", 0, "Days back to sync (default from config, 14)")
	cmd.Flags().String("since", "", `Sync from this date ("2024-06-03", "last monday")`)
	cmd.Flags().String("sheet-name", "", "Spreadsheet title")
	cmd.Flags().String("worksheet", "", "Worksheet tab name")
	cmd.Flags().String("creds-path", "", "Google service account credentials file")
	cmd.Flags().String("token-file", "", "WHOOP token file")
	cmd.Flags().Bool("dry-run", false, "Resolve cells without writing")
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("config", "", "Config file path (default ~/.config/whoopsheet/config.toml)")

	addSyncFlags(rootCmd)
	addSyncFlags(syncCmd)

	authCmd.Flags().String("token-file", "", "WHOOP token file")
	authCmd.Flags().Int("port", 0, "Local callback port (default from config, 5000)")

	uploadTokensCmd.Flags().String("token-file", "", "WHOOP token file")
	uploadTokensCmd.Flags().String("repo", "", "GitHub repository (owner/name)")
	uploadTokensCmd.Flags().String("secret-name", "", "Actions secret name")

	statusCmd.Flags().Int("limit", 10, "Number of runs to show")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(uploadTokensCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errDatesFailed) {
			fmt.Fprintln(os.Stderr, errorStyle.Render("Error: ")+err.Error())
		}
		os.Exit(1)
	}
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// stringFlag returns the flag value when it was set on the command line.
func stringFlag(cmd *cobra.Command, name string, into *string) {
	if cmd.Flags().Changed(name) {
		*into, _ = cmd.Flags().GetString(name)
	}
}

func intFlag(cmd *cobra.Command, name string, into *int) {
	if cmd.Flags().Changed(name) {
		*into, _ = cmd.Flags().GetInt(name)
	}
}

func newAuth(cfg *config.Config, logger *slog.Logger) *whoop.Auth {
	return whoop.NewAuth(
		cfg.Whoop.ClientID,
		cfg.Whoop.ClientSecret,
		cfg.Whoop.BaseURL,
		whoop.NewTokenStore(cfg.Whoop.TokenFile),
		logger,
	)
}

func openHistory(cfg *config.Config) (*store.DB, error) {
	if cfg.History.Path != "" {
		return store.OpenPath(cfg.History.Path)
	}
	return store.Open()
}

func runSync(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd)
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	intFlag(cmd, "days-ago", &cfg.Sync.DaysAgo)
	stringFlag(cmd, "sheet-name", &cfg.Sheet.Name)
	stringFlag(cmd, "worksheet", &cfg.Sheet.Worksheet)
	stringFlag(cmd, "creds-path", &cfg.Sheet.CredsPath)
	stringFlag(cmd, "token-file", &cfg.Whoop.TokenFile)
	since, _ := cmd.Flags().GetString("since")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w; run 'whoopsheet config' to set it up", err)
	}

	window, err := config.SyncWindow(time.Now(), cfg.Sync.DaysAgo, since)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	auth := newAuth(cfg, logger)
	client := whoop.NewClient(cfg.Whoop.BaseURL, auth, logger)

	deps := syncer.Deps{
		Auth:    auth,
		Fetcher: running.NewFetcher(client, cfg.Sync.SportIDs, logger),
		OpenSheet: func(ctx context.Context) (syncer.Spreadsheet, error) {
			return sheet.NewClient(ctx, sheet.ClientConfig{
				CredsPath:     cfg.Sheet.CredsPath,
				SpreadsheetID: cfg.Sheet.SpreadsheetID,
				Name:          cfg.Sheet.Name,
			}, logger)
		},
		Notifier: notify.New(cfg.Notifications.Enabled, logger),
	}

	if cfg.History.Enabled {
		db, err := openHistory(cfg)
		if err != nil {
			logger.Warn("run history disabled", "error", err)
		} else {
			defer db.Close()
			deps.History = db
		}
	}
	if cfg.Metrics.PushgatewayURL != "" {
		deps.Metrics = metrics.NewPusher(cfg.Metrics.PushgatewayURL, cfg.Metrics.Job, logger)
	}

	s := syncer.New(deps, syncer.Options{
		Worksheet:      cfg.Sheet.Worksheet,
		DurationFormat: cfg.Sheet.DurationFormat,
		DryRun:         dryRun,
	}, logger)

	res, err := s.Run(ctx, window.Start, window.End)
	if err != nil {
		var authErr *whoop.AuthError
		if errors.As(err, &authErr) {
			return fmt.Errorf("%w; run 'whoopsheet auth' to authorize again", err)
		}
		return err
	}

	printResult(res)
	if res.HasFailures() {
		return errDatesFailed
	}
	return nil
}

func runAuth(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd)
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	stringFlag(cmd, "token-file", &cfg.Whoop.TokenFile)
	intFlag(cmd, "port", &cfg.Whoop.AuthPort)

	if cfg.Whoop.ClientID == "" || cfg.Whoop.ClientSecret == "" {
		return fmt.Errorf("WHOOP_CLIENT_ID and WHOOP_CLIENT_SECRET must be set")
	}

	ctx, cancel := signalContext()
	defer cancel()

	srv, err := whoop.NewCallbackServer(newAuth(cfg, logger), cfg.Whoop.AuthPort, logger)
	if err != nil {
		return err
	}

	tokens, err := srv.Run(ctx, func(url string) {
		fmt.Println(titleStyle.Render("WHOOP authorization"))
		fmt.Printf("Open %s in your browser and accept the certificate warning.\n", highlightStyle.Render(url))
		fmt.Println(dimStyle.Render("Redirect URI to register with WHOOP: " + srv.RedirectURL()))
	})
	if err != nil {
		return fmt.Errorf("authorizing: %w", err)
	}

	fmt.Println(successStyle.Render("Authorized.") + " Tokens saved to " + cfg.Whoop.TokenFile)
	if tokens != nil && !tokens.Expiry().IsZero() {
		fmt.Println(dimStyle.Render("Access token expires " + tokens.Expiry().Local().Format(time.RFC1123)))
	}
	return nil
}

func runUploadTokens(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd)
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	stringFlag(cmd, "token-file", &cfg.Whoop.TokenFile)
	stringFlag(cmd, "repo", &cfg.GitHub.Repo)
	stringFlag(cmd, "secret-name", &cfg.GitHub.SecretName)

	token, err := github.ResolveToken(cfg.GitHub.Token)
	if err != nil {
		return err
	}
	repo, err := github.ResolveRepo(cfg.GitHub.Repo)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	client := github.NewClient(token, logger)
	if err := client.UploadFile(ctx, repo, cfg.GitHub.SecretName, cfg.Whoop.TokenFile); err != nil {
		return fmt.Errorf("uploading tokens: %w", err)
	}

	fmt.Printf("%s %s to %s secret %s\n",
		successStyle.Render("Uploaded"), cfg.Whoop.TokenFile, repo, highlightStyle.Render(cfg.GitHub.SecretName))
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")

	db, err := openHistory(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	runs, err := db.RecentRuns(limit)
	if err != nil {
		return fmt.Errorf("fetching runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Println("No sync runs recorded yet.")
		return nil
	}

	last, err := db.GetState(store.KeyLastSuccessfulSync)
	if err != nil {
		return fmt.Errorf("reading state: %w", err)
	}

	fmt.Println(titleStyle.Render("Recent sync runs"))
	fmt.Println(runsTable(runs))
	if t, err := time.Parse(time.RFC3339, last); err == nil {
		fmt.Println(dimStyle.Render("Last successful sync: " + t.Local().Format("2006-01-02 15:04")))
	}

	if cells, err := db.CellsForRun(runs[0].ID); err == nil && len(cells) > 0 {
		fmt.Println()
		fmt.Println(subtitleStyle.Render("Cells written by the latest run"))
		for _, c := range cells {
			fmt.Printf("  %s  %-16s  %s\n", c.Date, c.Range, c.Value)
		}
	}
	return nil
}

func runConfig(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		if err := config.EnsureConfigDir(); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
		p, err := config.ConfigPath()
		if err != nil {
			return err
		}
		configPath = p
	}

	if err := config.WriteDefault(configPath); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}

	fmt.Printf("Opening %s with %s...\n", configPath, editor)

	proc := os.ProcAttr{
		Files: []*os.File{os.Stdin, os.Stdout, os.Stderr},
	}
	editorPath, err := exec.LookPath(editor)
	if err != nil {
		fmt.Printf("Could not find editor %q. Config file is at: %s\n", editor, configPath)
		return nil
	}
	process, err := os.StartProcess(editorPath, []string{editor, configPath}, &proc)
	if err != nil {
		fmt.Printf("Could not open editor. Config file is at: %s\n", configPath)
		return nil
	}
	_, err = process.Wait()
	return err
}
