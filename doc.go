// Package docgen is the template-driven document generation core of the
// leasing platform. It turns a stored template plus a data record into a
// finished PDF through one of two backends: an overlay renderer that draws
// positioned fields on top of an uploaded background document, and a markup
// renderer that compiles an HTML template against a flattened record.
//
// The root package holds the error kinds and rendering settings shared by
// the subpackages:
//
//   - units: millimetre, pixel and point conversion
//   - model: templates, pages, fields, styles
//   - resolve: field value lookup and formatting
//   - editor: drag-positioning state machine for the template editor
//   - selection: which template serves a request
//   - overlay, markup, htmlpdf: the rendering pipelines
//   - generate: the generation entry point
//   - store, blob: template persistence and background storage
//   - config, logger: settings and structured logging
//   - service: wiring of the above for the commands
//   - api, mcp: HTTP and tool-server surfaces
package docgen
