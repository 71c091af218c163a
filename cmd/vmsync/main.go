package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"versemate-sync/internal/app"
	"versemate-sync/internal/config"
	"versemate-sync/internal/sync"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer
// a.Close(). operation identifies the CLI command being run.
func newApp(operation string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "vmsync",
	Short: "Offline content cache for the VerseMate content API",
}

// config command

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("getting defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("initializing config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		fmt.Printf("API URL:  %s\n", cfg.API.BaseURL)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("getting defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:  %s\n", cfg.LogDir)
		fmt.Printf("API URL:  %s\n", cfg.API.BaseURL)
		fmt.Printf("Database: %s (%s)\n", cfg.Database.Type, cfg.Database.DataDir)
		return nil
	},
}

// status command

var statusCmd = &cobra.Command{
	Use:   "status [bible|commentaries|topics]",
	Short: "Show download status of published content",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Status")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		if _, err := a.RefreshManifest(ctx); err != nil {
			return err
		}

		families := map[string]func() ([]sync.DownloadInfo, error){
			"bible":        func() ([]sync.DownloadInfo, error) { return a.BibleVersions(ctx) },
			"commentaries": func() ([]sync.DownloadInfo, error) { return a.Commentaries(ctx) },
			"topics":       func() ([]sync.DownloadInfo, error) { return a.Topics(ctx) },
		}
		order := []string{"bible", "commentaries", "topics"}
		if len(args) == 1 {
			if _, ok := families[args[0]]; !ok {
				return fmt.Errorf("unknown content family: %s", args[0])
			}
			order = []string{args[0]}
		}

		for _, name := range order {
			infos, err := families[name]()
			if err != nil {
				return err
			}
			fmt.Printf("%s:\n", name)
			if len(infos) == 0 {
				fmt.Println("  (nothing published)")
				continue
			}
			for _, info := range infos {
				fmt.Printf("  %-18s %-16s %s\n", info.Key, info.Status, formatSize(info.SizeBytes))
			}
		}
		return nil
	},
}

// download command

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download or update content",
}

func downloadRunE(operation string, t sync.ContentType) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(operation)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		key := args[0]
		onProgress := func(p sync.Progress) {
			fmt.Printf("\r  %s: %d/%d", p.Message, p.Current, p.Total)
		}

		var installErr error
		switch t {
		case sync.BibleVersion:
			installErr = a.DownloadBibleVersion(ctx, key, onProgress)
		case sync.Commentary:
			installErr = a.DownloadCommentaries(ctx, key, onProgress)
		default:
			installErr = a.DownloadTopics(ctx, key, onProgress)
		}
		fmt.Println()
		if installErr != nil {
			return installErr
		}

		fmt.Printf("Installed %s\n", sync.RecordKey(t, key))
		return nil
	}
}

var downloadBibleCmd = &cobra.Command{
	Use:   "bible KEY",
	Short: "Download a Bible version (e.g. NASB1995)",
	Args:  cobra.ExactArgs(1),
	RunE:  downloadRunE("DownloadBibleVersion", sync.BibleVersion),
}

var downloadCommentariesCmd = &cobra.Command{
	Use:   "commentaries LANGUAGE",
	Short: "Download a language's commentary set (e.g. en-US)",
	Args:  cobra.ExactArgs(1),
	RunE:  downloadRunE("DownloadCommentaries", sync.Commentary),
}

var downloadTopicsCmd = &cobra.Command{
	Use:   "topics LANGUAGE",
	Short: "Download a language's topic set (e.g. en)",
	Args:  cobra.ExactArgs(1),
	RunE:  downloadRunE("DownloadTopics", sync.Topics),
}

// delete command

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete installed content",
}

func deleteRunE(operation string, t sync.ContentType) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(operation)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		key := args[0]
		switch t {
		case sync.BibleVersion:
			err = a.DeleteBibleVersion(ctx, key)
		case sync.Commentary:
			err = a.DeleteCommentaries(ctx, key)
		default:
			err = a.DeleteTopics(ctx, key)
		}
		if err != nil {
			return err
		}

		fmt.Printf("Deleted %s\n", sync.RecordKey(t, key))
		return nil
	}
}

var deleteBibleCmd = &cobra.Command{
	Use:   "bible KEY",
	Short: "Delete an installed Bible version",
	Args:  cobra.ExactArgs(1),
	RunE:  deleteRunE("DeleteBibleVersion", sync.BibleVersion),
}

var deleteCommentariesCmd = &cobra.Command{
	Use:   "commentaries LANGUAGE",
	Short: "Delete an installed commentary set",
	Args:  cobra.ExactArgs(1),
	RunE:  deleteRunE("DeleteCommentaries", sync.Commentary),
}

var deleteTopicsCmd = &cobra.Command{
	Use:   "topics LANGUAGE",
	Short: "Delete an installed topic set",
	Args:  cobra.ExactArgs(1),
	RunE:  deleteRunE("DeleteTopics", sync.Topics),
}

var deleteAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Delete all installed content",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("DeleteAllData")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DeleteAllData(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("All content deleted")
		return nil
	},
}

// sync command

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Check for updates and refresh installed content",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("CheckForUpdates")
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.CheckForUpdates(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Checked %d published unit(s)\n", report.Checked)
		for _, key := range report.Updated {
			fmt.Printf("  updated %s\n", key)
		}
		for key, itemErr := range report.Failed {
			fmt.Printf("  failed  %s: %v\n", key, itemErr)
		}
		if len(report.Updated) == 0 && len(report.Failed) == 0 {
			fmt.Println("Everything up to date")
		}
		if len(report.Failed) > 0 {
			return fmt.Errorf("%d unit(s) failed to update", len(report.Failed))
		}
		return nil
	},
}

// storage command

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Show storage used by installed content",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("TotalStorageUsed")
		if err != nil {
			return err
		}
		defer a.Close()

		total, err := a.TotalStorageUsed(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Storage used: %s\n", formatSize(total))
		return nil
	},
}

// show command

var showCmd = &cobra.Command{
	Use:   "show KEY BOOK CHAPTER",
	Short: "Print an installed chapter",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		bookID, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid book id: %s", args[1])
		}
		chapter, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid chapter number: %s", args[2])
		}

		a, err := newApp("Verses")
		if err != nil {
			return err
		}
		defer a.Close()

		verses, err := a.Verses(cmd.Context(), args[0], bookID, chapter)
		if err != nil {
			return err
		}
		if len(verses) == 0 {
			fmt.Println("No verses installed for that chapter.")
			return nil
		}
		for _, v := range verses {
			fmt.Printf("%d  %s\n", v.VerseNumber, v.Text)
		}
		return nil
	},
}

// set command

var setCmd = &cobra.Command{
	Use:   "set",
	Short: "Change persisted settings",
}

func setRunE(operation, name string, apply func(ctx context.Context, a *app.App, enabled bool) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		var enabled bool
		switch args[0] {
		case "on":
			enabled = true
		case "off":
			enabled = false
		default:
			return fmt.Errorf("expected on or off, got %s", args[0])
		}

		a, err := newApp(operation)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := apply(cmd.Context(), a, enabled); err != nil {
			return err
		}
		fmt.Printf("%s: %s\n", name, args[0])
		return nil
	}
}

var setOfflineModeCmd = &cobra.Command{
	Use:   "offline-mode on|off",
	Short: "Toggle offline mode",
	Args:  cobra.ExactArgs(1),
	RunE: setRunE("SetOfflineMode", "offline mode", func(ctx context.Context, a *app.App, enabled bool) error {
		return a.SetOfflineMode(ctx, enabled)
	}),
}

var setAutoSyncCmd = &cobra.Command{
	Use:   "auto-sync on|off",
	Short: "Toggle unattended content updates",
	Args:  cobra.ExactArgs(1),
	RunE: setRunE("SetAutoSync", "auto-sync", func(ctx context.Context, a *app.App, enabled bool) error {
		return a.SetAutoSync(ctx, enabled)
	}),
}

func formatSize(n int64) string {
	const mb = 1024 * 1024
	if n >= mb {
		return fmt.Sprintf("%.1f MB", float64(n)/mb)
	}
	if n >= 1024 {
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	}
	return fmt.Sprintf("%d B", n)
}

func init() {
	configCmd.AddCommand(configInitCmd, configListCmd)
	downloadCmd.AddCommand(downloadBibleCmd, downloadCommentariesCmd, downloadTopicsCmd)
	deleteCmd.AddCommand(deleteBibleCmd, deleteCommentariesCmd, deleteTopicsCmd, deleteAllCmd)
	setCmd.AddCommand(setOfflineModeCmd, setAutoSyncCmd)

	rootCmd.AddCommand(configCmd, statusCmd, downloadCmd, deleteCmd, syncCmd, storageCmd, showCmd, setCmd)
}
