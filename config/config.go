package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "GMAIL_TO_MD"

	SourceMbox = "mbox"
	SourceIMAP = "imap"

	defaultLabel = "export"
)

// Config captures every option of an export or listing run.
type Config struct {
	MboxPath string

	IMAPHost           string
	IMAPPort           int
	IMAPUser           string
	IMAPPass           string
	UseTLS             bool
	InsecureSkipVerify bool
	Mailbox            string
	SinceDays          int

	Query     string
	MaxEmails int

	OutputDir      string
	Label          string
	RemoveQuotes   bool
	DownloadImages bool
	SizeLimitMB    int

	DryRun       bool
	Reexport     bool
	StateDir     string
	StateBackend string

	LogLevel string
	LogDir   string

	IncludeHeader []string
	IncludeBody   []string
	ExcludeHeader []string
	ExcludeBody   []string
}

// SourceKind reports which message source the run reads from.
func (c Config) SourceKind() string {
	if c.MboxPath != "" {
		return SourceMbox
	}
	return SourceIMAP
}

// SourceName identifies the source in state keys and manifests.
func (c Config) SourceName() string {
	if c.SourceKind() == SourceMbox {
		if abs, err := filepath.Abs(c.MboxPath); err == nil {
			return SourceMbox + ":" + abs
		}
		return SourceMbox + ":" + c.MboxPath
	}
	return fmt.Sprintf("%s:%s@%s/%s", SourceIMAP, c.IMAPUser, c.IMAPHost, c.Mailbox)
}

// FolderLabel names the folder documents are written under.
func (c Config) FolderLabel() string {
	switch {
	case strings.TrimSpace(c.Label) != "":
		return c.Label
	case strings.TrimSpace(c.Query) != "":
		return c.Query
	default:
		return defaultLabel
	}
}

func (c Config) SizeLimitBytes() int64 {
	return int64(c.SizeLimitMB) * 1024 * 1024
}

// RegisterFlags attaches all CLI flags to cmd. They are persistent so
// subcommands share the source and logging options.
func RegisterFlags(cmd *cobra.Command) error {
	defaultStateDir, err := defaultStateDir()
	if err != nil {
		return err
	}

	flags := cmd.PersistentFlags()
	flags.String("config", "", "Path to a YAML config file")

	flags.String("mbox", "", "Path to an .mbox archive to export from")
	flags.String("imap-host", "", "IMAP server hostname")
	flags.Int("imap-port", 993, "IMAP server port")
	flags.String("imap-user", "", "IMAP username")
	flags.String("imap-pass", "", "IMAP password (falls back to IMAP_PASS env var)")
	flags.Bool("use-tls", true, "Use TLS for the IMAP connection")
	flags.Bool("insecure-skip-verify", false, "Skip TLS certificate verification (not recommended)")
	flags.String("mailbox", "[Gmail]/All Mail", "IMAP mailbox to read from")
	flags.Int("since-days", 0, "Only consider IMAP messages newer than this many days (0 disables)")

	flags.StringP("query", "q", "", "Search query: IMAP TEXT search or a header regex for mbox")
	flags.IntP("max-emails", "n", 100, "Maximum number of messages to process (0 for no limit)")

	flags.StringP("output-dir", "o", "exports", "Root directory for exported documents")
	flags.String("label", "", "Folder name for this export (defaults to the query)")
	flags.Bool("no-quotes-removal", false, "Keep quoted replies in message bodies")
	flags.Bool("download-images", false, "Save attachments and inline images next to each document")
	flags.Int("size-limit-mb", 10, "Skip attachments larger than this many megabytes (negative disables)")

	flags.Bool("dry-run", false, "Render everything in memory without writing files or state")
	flags.Bool("reexport", false, "Export messages even if a previous run recorded them")
	flags.String("state-dir", defaultStateDir, "Directory for resumable export state")
	flags.String("state-backend", "jsonl", "State backend: jsonl or sqlite")

	flags.String("log-level", "info", "Logging level: debug, info, warn, error")
	flags.String("log-dir", "", "Directory for log files (stdout only when empty)")

	flags.StringArray("include-header", nil, "Regex allow-list applied to message headers (mutually exclusive with exclude flags)")
	flags.StringArray("include-body", nil, "Regex allow-list applied to message bodies (mutually exclusive with exclude flags)")
	flags.StringArray("exclude-header", nil, "Regex block-list applied to message headers (mutually exclusive with include flags)")
	flags.StringArray("exclude-body", nil, "Regex block-list applied to message bodies (mutually exclusive with include flags)")

	return nil
}

// LoadConfig merges flags, GMAIL_TO_MD_* environment variables, a .env file
// and an optional YAML config file into a validated Config. Explicit flags win.
func LoadConfig(cmd *cobra.Command) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	flags := cmd.Flags()
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return Config{}, fmt.Errorf("bind flags: %w", err)
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	includeHeader, err := patterns(v, flags, "include-header")
	if err != nil {
		return Config{}, err
	}
	includeBody, err := patterns(v, flags, "include-body")
	if err != nil {
		return Config{}, err
	}
	excludeHeader, err := patterns(v, flags, "exclude-header")
	if err != nil {
		return Config{}, err
	}
	excludeBody, err := patterns(v, flags, "exclude-body")
	if err != nil {
		return Config{}, err
	}

	imapPass := v.GetString("imap-pass")
	if imapPass == "" {
		imapPass = os.Getenv("IMAP_PASS")
	}

	stateDir := v.GetString("state-dir")
	if stateDir == "" {
		stateDir, err = defaultStateDir()
		if err != nil {
			return Config{}, err
		}
	}

	logLevel := strings.ToLower(v.GetString("log-level"))
	if logLevel == "warning" {
		logLevel = "warn"
	}

	cfg := Config{
		MboxPath:           v.GetString("mbox"),
		IMAPHost:           v.GetString("imap-host"),
		IMAPPort:           v.GetInt("imap-port"),
		IMAPUser:           v.GetString("imap-user"),
		IMAPPass:           imapPass,
		UseTLS:             v.GetBool("use-tls"),
		InsecureSkipVerify: v.GetBool("insecure-skip-verify"),
		Mailbox:            v.GetString("mailbox"),
		SinceDays:          v.GetInt("since-days"),
		Query:              v.GetString("query"),
		MaxEmails:          v.GetInt("max-emails"),
		OutputDir:          filepath.Clean(v.GetString("output-dir")),
		Label:              v.GetString("label"),
		RemoveQuotes:       !v.GetBool("no-quotes-removal"),
		DownloadImages:     v.GetBool("download-images"),
		SizeLimitMB:        v.GetInt("size-limit-mb"),
		DryRun:             v.GetBool("dry-run"),
		Reexport:           v.GetBool("reexport"),
		StateDir:           filepath.Clean(stateDir),
		StateBackend:       strings.ToLower(v.GetString("state-backend")),
		LogLevel:           logLevel,
		LogDir:             v.GetString("log-dir"),
		IncludeHeader:      includeHeader,
		IncludeBody:        includeBody,
		ExcludeHeader:      excludeHeader,
		ExcludeBody:        excludeBody,
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// patterns reads a regex list. Flag values are taken verbatim so patterns
// containing commas survive; config file and env values are lists.
func patterns(v *viper.Viper, flags *pflag.FlagSet, name string) ([]string, error) {
	if flag := flags.Lookup(name); flag != nil && flag.Changed {
		return flags.GetStringArray(name)
	}
	return v.GetStringSlice(name), nil
}

func validateConfig(cfg Config) error {
	hasMbox := cfg.MboxPath != ""
	hasIMAP := cfg.IMAPHost != ""
	if hasMbox == hasIMAP {
		return fmt.Errorf("exactly one of --mbox or --imap-host is required")
	}
	if hasIMAP {
		if cfg.IMAPUser == "" {
			return fmt.Errorf("--imap-user is required")
		}
		if cfg.IMAPPass == "" {
			return fmt.Errorf("IMAP password must be provided via --imap-pass or IMAP_PASS env var")
		}
		if cfg.IMAPPort <= 0 || cfg.IMAPPort > 65535 {
			return fmt.Errorf("--imap-port must be between 1 and 65535")
		}
		if cfg.Mailbox == "" {
			return fmt.Errorf("--mailbox must not be empty")
		}
	}
	if cfg.SinceDays < 0 {
		return fmt.Errorf("--since-days must not be negative")
	}
	if cfg.MaxEmails < 0 {
		return fmt.Errorf("--max-emails must not be negative")
	}

	includeActive := len(cfg.IncludeHeader) > 0 || len(cfg.IncludeBody) > 0
	excludeActive := len(cfg.ExcludeHeader) > 0 || len(cfg.ExcludeBody) > 0
	if includeActive && excludeActive {
		return fmt.Errorf("include and exclude flags are mutually exclusive")
	}

	switch cfg.StateBackend {
	case "jsonl", "sqlite":
	default:
		return fmt.Errorf("invalid --state-backend: %s", cfg.StateBackend)
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid --log-level: %s", cfg.LogLevel)
	}

	return nil
}

func defaultStateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".gmail-to-md", "state"), nil
}
