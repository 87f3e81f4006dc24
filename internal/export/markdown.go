package export

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"

	"github.com/JakeFAU/site-analyzer/internal/analyzer"
)

func writeMarkdown(w io.Writer, record analyzer.SiteRecord) error {
	md := markdown.NewMarkdown(w)

	title := record.Title
	if title == "" {
		title = record.Domain
	}
	md.H1(title)
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"URL", record.URL},
			{"Domain", "`" + record.Domain + "`"},
			{"Description", cell(record.Description)},
			{"Last Updated", record.LastUpdated.UTC().Format("2006-01-02 15:04:05 MST")},
			{"Links", strconv.Itoa(len(record.Links))},
		},
	})
	md.PlainText("")

	md.H2("Links")
	md.PlainText("")
	if len(record.Links) == 0 {
		md.Note("No links were collected for this site.")
		return md.Build()
	}
	rows := make([][]string, 0, len(record.Links))
	for _, l := range record.Links {
		rows = append(rows, []string{cell(l.Title), cell(l.Description), l.URL})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Title", "Description", "URL"},
		Rows:   rows,
	})
	return md.Build()
}

// cell keeps table rows on one line and escapes column separators.
func cell(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
