// Package config resolves the service settings from a .env file, the
// environment and command-line flags, in that order of precedence (flags
// win).
package config

import (
	"errors"
	"flag"
	"fmt"
	"net/mail"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Blob backends.
const (
	BlobSQLite = "sqlite"
	BlobNATS   = "nats"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Admins   []string
	Contact  string
	Images   ImageConfig
	Gemini   GeminiConfig
	Blob     BlobConfig
	Redis    RedisConfig
	Import   ImportConfig
}

type ServerConfig struct {
	Addr    string
	BaseURL string
	LogPath string
}

type DatabaseConfig struct {
	Path string
}

type ImageConfig struct {
	MaxImages    int
	MaxDimension int
	Quality      int
	Concurrency  int
}

type GeminiConfig struct {
	APIKey          string
	AnalysisModel   string
	ExtractionModel string
}

type BlobConfig struct {
	Backend string
	NATSURL string
	Bucket  string
}

// RedisConfig is optional; an empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

type ImportConfig struct {
	DraftTTL time.Duration
}

// Usage is printed for -h.
const Usage = `Usage: remarket [flags]

Flags:
  -d, -db <path>          SQLite database path (default: remarket.sqlite3)
  -a, -addr <host:port>   listen address (default: :8080)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
  -admins <emails>        comma separated admin allow-list (REMARKET_ADMINS)
  -contact <number>       WhatsApp contact number (REMARKET_CONTACT_NUMBER)
  -base-url <url>         public URL prefix for photo links (REMARKET_BASE_URL)
  -blob <sqlite|nats>     photo storage backend (REMARKET_BLOB_BACKEND)
  -h, -help               show this help and exit

Other settings are read from the environment or a .env file.
`

// Load reads .env (if present), the environment and args. It does not
// validate; call Validate before use. flag.ErrHelp is returned for -h.
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	var errs []error
	num := func(key string, def int) int {
		v, err := envInt(key, def)
		errs = append(errs, err)
		return v
	}
	dur := func(key string, def time.Duration) time.Duration {
		v, err := envDuration(key, def)
		errs = append(errs, err)
		return v
	}

	cfg := &Config{
		Server: ServerConfig{
			Addr:    getEnv("REMARKET_ADDR", ":8080"),
			BaseURL: getEnv("REMARKET_BASE_URL", ""),
			LogPath: getEnv("REMARKET_LOG", ""),
		},
		Database: DatabaseConfig{
			Path: getEnv("REMARKET_DB", "remarket.sqlite3"),
		},
		Contact: getEnv("REMARKET_CONTACT_NUMBER", ""),
		Images: ImageConfig{
			MaxImages:    num("REMARKET_MAX_IMAGES", 3),
			MaxDimension: num("REMARKET_MAX_DIMENSION", 1200),
			Quality:      num("REMARKET_JPEG_QUALITY", 80),
			Concurrency:  num("REMARKET_UPLOAD_CONCURRENCY", 3),
		},
		Gemini: GeminiConfig{
			APIKey:          getEnv("GEMINI_API_KEY", ""),
			AnalysisModel:   getEnv("REMARKET_ANALYSIS_MODEL", "gemini-2.5-flash"),
			ExtractionModel: getEnv("REMARKET_EXTRACTION_MODEL", "gemini-2.5-pro"),
		},
		Blob: BlobConfig{
			Backend: getEnv("REMARKET_BLOB_BACKEND", BlobSQLite),
			NATSURL: getEnv("NATS_URL", "nats://localhost:4222"),
			Bucket:  getEnv("REMARKET_BLOB_BUCKET", "remarket-photos"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       num("REDIS_DB", 0),
			Channel:  getEnv("REMARKET_REDIS_CHANNEL", "remarket:catalog:changed"),
		},
		Import: ImportConfig{
			DraftTTL: dur("REMARKET_IMPORT_TTL", time.Hour),
		},
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	admins := getEnv("REMARKET_ADMINS", "")

	fs := flag.NewFlagSet("remarket", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() { fmt.Fprint(os.Stdout, Usage) }

	fs.StringVar(&cfg.Database.Path, "db", cfg.Database.Path, "")
	fs.StringVar(&cfg.Database.Path, "d", cfg.Database.Path, "")
	fs.StringVar(&cfg.Server.Addr, "addr", cfg.Server.Addr, "")
	fs.StringVar(&cfg.Server.Addr, "a", cfg.Server.Addr, "")
	fs.StringVar(&cfg.Server.LogPath, "log", cfg.Server.LogPath, "")
	fs.StringVar(&cfg.Server.LogPath, "l", cfg.Server.LogPath, "")
	fs.StringVar(&admins, "admins", admins, "")
	fs.StringVar(&cfg.Contact, "contact", cfg.Contact, "")
	fs.StringVar(&cfg.Server.BaseURL, "base-url", cfg.Server.BaseURL, "")
	fs.StringVar(&cfg.Blob.Backend, "blob", cfg.Blob.Backend, "")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	cfg.Admins = splitEmails(admins)
	cfg.Server.BaseURL = strings.TrimRight(cfg.Server.BaseURL, "/")
	cfg.Blob.Backend = strings.ToLower(strings.TrimSpace(cfg.Blob.Backend))
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Admins) == 0 {
		errs = append(errs, errors.New("admin allow-list is empty"))
	}
	for _, a := range c.Admins {
		if addr, err := mail.ParseAddress(a); err != nil || addr.Address != a {
			errs = append(errs, fmt.Errorf("invalid admin email %q", a))
		}
	}
	if c.Contact != "" && ContactDigits(c.Contact) == "" {
		errs = append(errs, fmt.Errorf("contact number %q has no digits", c.Contact))
	}
	if strings.Trim(c.Contact, "+0123456789 -().") != "" {
		errs = append(errs, fmt.Errorf("contact number %q is not a phone number", c.Contact))
	}

	errs = append(errs,
		inRange("max images", c.Images.MaxImages, 1, 10),
		inRange("max image dimension", c.Images.MaxDimension, 64, 8192),
		inRange("JPEG quality", c.Images.Quality, 1, 100),
		inRange("upload concurrency", c.Images.Concurrency, 1, 16),
		inRange("Redis DB", c.Redis.DB, 0, 15),
	)
	if c.Import.DraftTTL <= 0 {
		errs = append(errs, errors.New("import draft TTL must be positive"))
	}

	switch c.Blob.Backend {
	case BlobSQLite:
	case BlobNATS:
		if c.Blob.NATSURL == "" || c.Blob.Bucket == "" {
			errs = append(errs, errors.New("nats blob backend needs NATS_URL and a bucket"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown blob backend %q", c.Blob.Backend))
	}
	return errors.Join(errs...)
}

// ContactDigits strips everything but digits from a phone number.
func ContactDigits(number string) string {
	var b strings.Builder
	for _, r := range number {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func splitEmails(csv string) []string {
	var out []string
	for _, e := range strings.Split(csv, ",") {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			out = append(out, e)
		}
	}
	return out
}

func inRange(name string, v, lo, hi int) error {
	if v < lo || v > hi {
		return fmt.Errorf("%s must be between %d and %d, got %d", name, lo, hi, v)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func envInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a number", key, val)
	}
	return n, nil
}

func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
