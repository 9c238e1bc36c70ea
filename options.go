package docgen

import "time"

// Option is a functional option for configuring document generation.
type Option func(*Settings)

// Settings holds the knobs shared by the rendering backends.
type Settings struct {
	Locale          string        // BCP 47 tag used for number and date formatting
	DefaultCurrency string        // ISO 4217 code used when a field has none
	FetchTimeout    time.Duration // budget for loading a background document
	ConvertTimeout  time.Duration // budget for markup-to-document conversion
	FontDir         string        // directory holding TrueType files for non-core families
	SpecimenText    string        // watermark drawn when sample data is used
	Compress        bool          // compress PDF content streams
	Symbology       string        // "qr" or "pdf417" for the reference stamp, empty to disable
}

// DefaultSettings returns the settings used when no option is given.
func DefaultSettings() Settings {
	return Settings{
		Locale:          "fr",
		DefaultCurrency: "EUR",
		FetchTimeout:    15 * time.Second,
		ConvertTimeout:  30 * time.Second,
		SpecimenText:    "SPECIMEN",
		Compress:        true,
	}
}

// NewSettings applies opts on top of DefaultSettings.
func NewSettings(opts ...Option) Settings {
	s := DefaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithLocale sets the formatting locale, e.g. "fr" or "en-GB".
func WithLocale(tag string) Option {
	return func(s *Settings) {
		s.Locale = tag
	}
}

// WithDefaultCurrency sets the currency used by currency fields without a format.
func WithDefaultCurrency(code string) Option {
	return func(s *Settings) {
		s.DefaultCurrency = code
	}
}

// WithTimeouts sets the background fetch and conversion budgets.
// A zero value keeps the current setting.
func WithTimeouts(fetch, convert time.Duration) Option {
	return func(s *Settings) {
		if fetch > 0 {
			s.FetchTimeout = fetch
		}
		if convert > 0 {
			s.ConvertTimeout = convert
		}
	}
}

// WithFontDir sets the directory where TrueType font files are located.
func WithFontDir(dir string) Option {
	return func(s *Settings) {
		s.FontDir = dir
	}
}

// WithSpecimenText sets the watermark used for sample-data documents.
// An empty string disables the watermark.
func WithSpecimenText(text string) Option {
	return func(s *Settings) {
		s.SpecimenText = text
	}
}

// WithCompression toggles content stream compression.
func WithCompression(on bool) Option {
	return func(s *Settings) {
		s.Compress = on
	}
}

// WithReferenceStamp enables a machine-readable reference stamp on overlay
// pages. Use "qr" or "pdf417".
func WithReferenceStamp(symbology string) Option {
	return func(s *Settings) {
		s.Symbology = symbology
	}
}
