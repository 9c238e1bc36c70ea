package overlay

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// coreFamilies maps lower-cased family names to the PDF core fonts.
var coreFamilies = map[string]string{
	"helvetica":   "Helvetica",
	"arial":       "Helvetica",
	"sans-serif":  "Helvetica",
	"times":       "Times",
	"times-roman": "Times",
	"serif":       "Times",
	"courier":     "Courier",
	"monospace":   "Courier",
}

// fontSet tracks the fonts registered on one document.
type fontSet struct {
	pdf    *gofpdf.Fpdf
	dir    string
	tr     func(string) string
	loaded map[string]bool
	failed map[string]error
}

func newFontSet(pdf *gofpdf.Fpdf, dir string) *fontSet {
	return &fontSet{
		pdf:    pdf,
		dir:    dir,
		tr:     pdf.UnicodeTranslatorFromDescriptor(""),
		loaded: make(map[string]bool),
		failed: make(map[string]error),
	}
}

// use selects family in the given weight and returns the function that
// prepares text for it: core fonts need cp1252, embedded fonts take UTF-8.
func (fs *fontSet) use(family string, bold bool, size float64) (func(string) string, error) {
	style := ""
	if bold {
		style = "B"
	}

	if core, ok := coreFamilies[strings.ToLower(family)]; ok {
		fs.pdf.SetFont(core, style, size)
		return fs.tr, nil
	}

	key := strings.ToLower(family) + "/" + style
	if err := fs.failed[key]; err != nil {
		return nil, err
	}
	if !fs.loaded[key] {
		if err := fs.embed(family, style); err != nil {
			fs.failed[key] = err
			return nil, err
		}
		fs.loaded[key] = true
	}
	fs.pdf.SetFont(family, style, size)
	return identity, nil
}

// embed registers <family>.ttf or <family>-Bold.ttf from the font directory.
func (fs *fontSet) embed(family, style string) (err error) {
	if fs.dir == "" {
		return fmt.Errorf("font %q: no font directory configured", family)
	}
	file := family + ".ttf"
	if style == "B" {
		file = family + "-Bold.ttf"
	}
	if _, err := os.Stat(filepath.Join(fs.dir, file)); err != nil {
		return fmt.Errorf("font %q: %w", family, err)
	}

	defer func() {
		if r := recover(); r != nil {
			fs.pdf.ClearError()
			err = fmt.Errorf("font %q: %v", family, r)
		}
	}()
	fs.pdf.AddUTF8Font(family, style, file)
	if fs.pdf.Err() {
		err = fmt.Errorf("font %q: %w", family, fs.pdf.Error())
		fs.pdf.ClearError()
	}
	return err
}

func identity(s string) string { return s }
