package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/docker/go-units"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"

	docgen "github.com/itakecare/leazr-docgen"
)

// DatabaseConfig selects and configures the template store backend.
type DatabaseConfig struct {
	Type            string        `mapstructure:"type"` // sqlite | postgres | mysql
	DSN             string        `mapstructure:"dsn"`  // overrides the discrete fields when set
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	Path            string        `mapstructure:"path"` // sqlite file
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DataSourceName returns the driver-specific connection string.
func (c DatabaseConfig) DataSourceName() string {
	if c.DSN != "" {
		return c.DSN
	}
	switch c.Type {
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			c.User, url.QueryEscape(c.Password), c.Host, c.Port, c.Name)
	default:
		return c.Path
	}
}

func (c DatabaseConfig) validate() error {
	switch c.Type {
	case "sqlite":
		if c.DSN == "" && c.Path == "" {
			return fmt.Errorf("path required for sqlite")
		}
	case "postgres", "mysql":
		if c.DSN == "" && c.Host == "" {
			return fmt.Errorf("host required for %s", c.Type)
		}
	default:
		return fmt.Errorf("unsupported type %q", c.Type)
	}
	return nil
}

// StorageConfig configures the filesystem blob store.
type StorageConfig struct {
	BasePath         string `mapstructure:"base_path"`
	MaxUploadSize    string `mapstructure:"max_upload_size"` // human size, e.g. "25MB"
	maxUploadSizeVal int64
}

// MaxUploadSizeBytes returns the parsed upload limit. Valid after Finalize.
func (c *StorageConfig) MaxUploadSizeBytes() int64 {
	return c.maxUploadSizeVal
}

// Finalize applies defaults and validates the storage configuration.
func (c *StorageConfig) Finalize() error {
	if c.BasePath == "" {
		c.BasePath = ".data/blobs"
	}
	if c.MaxUploadSize == "" {
		c.MaxUploadSize = "25MB"
	}

	size, err := units.FromHumanSize(c.MaxUploadSize)
	if err != nil {
		return fmt.Errorf("invalid max_upload_size: %w", err)
	}
	if size <= 0 {
		return fmt.Errorf("max_upload_size must be positive")
	}
	c.maxUploadSizeVal = size
	return nil
}

// RenderConfig configures the rendering backends.
type RenderConfig struct {
	Locale             string        `mapstructure:"locale"`
	DefaultCurrency    string        `mapstructure:"default_currency"`
	FetchTimeout       time.Duration `mapstructure:"fetch_timeout"`
	ConvertTimeout     time.Duration `mapstructure:"convert_timeout"`
	FontDir            string        `mapstructure:"font_dir"`
	SpecimenText       string        `mapstructure:"specimen_text"`
	Compress           bool          `mapstructure:"compress"`
	ReferenceSymbology string        `mapstructure:"reference_symbology"` // "", "qr" or "pdf417"
}

func (c RenderConfig) validate() error {
	if _, err := language.Parse(c.Locale); err != nil {
		return fmt.Errorf("locale %q: %w", c.Locale, err)
	}
	if _, err := currency.ParseISO(c.DefaultCurrency); err != nil {
		return fmt.Errorf("default_currency %q: %w", c.DefaultCurrency, err)
	}
	if c.FetchTimeout <= 0 || c.ConvertTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	switch c.ReferenceSymbology {
	case "", "qr", "pdf417":
	default:
		return fmt.Errorf("reference_symbology %q not supported", c.ReferenceSymbology)
	}
	return nil
}

// Options converts the section into generation options.
func (c RenderConfig) Options() []docgen.Option {
	return []docgen.Option{
		docgen.WithLocale(c.Locale),
		docgen.WithDefaultCurrency(c.DefaultCurrency),
		docgen.WithTimeouts(c.FetchTimeout, c.ConvertTimeout),
		docgen.WithFontDir(c.FontDir),
		docgen.WithSpecimenText(c.SpecimenText),
		docgen.WithCompression(c.Compress),
		docgen.WithReferenceStamp(c.ReferenceSymbology),
	}
}
