package overlay

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	docgen "github.com/itakecare/leazr-docgen"
	"github.com/itakecare/leazr-docgen/model"
)

var pdfcpuInit sync.Once

func pdfcpuConfig() *pdfmodel.Configuration {
	pdfcpuInit.Do(api.DisableConfigDir)
	return pdfmodel.NewDefaultConfiguration()
}

// Analyze reads the page tree of a background document and returns one Page
// per physical page, numbered from 1, with its media box in points.
func Analyze(data []byte) ([]model.Page, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty document", docgen.ErrBackgroundUnavailable)
	}
	dims, err := api.PageDims(bytes.NewReader(data), pdfcpuConfig())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", docgen.ErrBackgroundUnavailable, err)
	}
	if len(dims) == 0 {
		return nil, fmt.Errorf("%w: document has no pages", docgen.ErrBackgroundUnavailable)
	}

	pages := make([]model.Page, len(dims))
	for i, d := range dims {
		pages[i] = model.Page{Number: i + 1, Width: d.Width, Height: d.Height}
	}
	return pages, nil
}

// PageCount returns the number of pages of a PDF document.
func PageCount(data []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(data), pdfcpuConfig())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", docgen.ErrBackgroundUnavailable, err)
	}
	return n, nil
}
