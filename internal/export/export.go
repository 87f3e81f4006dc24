// Package export renders a stored site record for offline use.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/JakeFAU/site-analyzer/internal/analyzer"
)

// Format selects the output encoding.
type Format string

// Supported formats.
const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatXLSX     Format = "xlsx"
)

// ParseFormat accepts a format name or its common file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json", "":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: unknown export format %q", analyzer.ErrInput, s)
	}
}

// Extension returns the file extension for f, without the dot.
func (f Format) Extension() string {
	if f == FormatMarkdown {
		return "md"
	}
	return string(f)
}

// Write renders record to w in the requested format.
func Write(w io.Writer, record analyzer.SiteRecord, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if record.Links == nil {
			record.Links = []analyzer.Link{}
		}
		return enc.Encode(record)
	case FormatMarkdown:
		return writeMarkdown(w, record)
	case FormatXLSX:
		return writeXLSX(w, record)
	default:
		return fmt.Errorf("%w: unknown export format %q", analyzer.ErrInput, format)
	}
}
