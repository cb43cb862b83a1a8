// package formatter exports boards to Markdown, plain text, CSV, JSON and YAML and reads JSON and YAML back
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/desertthunder/kbx/internal/models"
	"github.com/desertthunder/kbx/internal/shared"
)

// Format names an export format.
type Format string

const (
	FormatMarkdown Format = "md"
	FormatText     Format = "txt"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
)

const dateLayout = "2006-01-02"

// ParseFormat accepts a format name or a common alias.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "md", "markdown":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q (want md, txt, csv, json or yaml)", shared.ErrInvalidFlag, s)
	}
}

// FormatFromPath guesses the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	i := strings.LastIndex(path, ".")
	if i < 0 {
		return "", fmt.Errorf("%w: %s has no extension", shared.ErrInvalidArgument, path)
	}
	return ParseFormat(path[i+1:])
}

// Export renders export in format.
func Export(export *models.BoardExport, format Format) ([]byte, error) {
	switch format {
	case FormatMarkdown:
		return ExportToMarkdown(export)
	case FormatText:
		return ExportToText(export)
	case FormatCSV:
		return ExportToCSV(export)
	case FormatJSON:
		return ExportToJSON(export)
	case FormatYAML:
		return ExportToYAML(export)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, format)
	}
}

// ExportToCSV writes one row per card with columns: List, Position, Title, Description, Due, Labels
func ExportToCSV(export *models.BoardExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"List", "Position", "Title", "Description", "Due", "Labels"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, list := range export.Lists {
		for i, card := range list.Cards {
			record := []string{
				list.Title,
				strconv.Itoa(i),
				card.Title,
				card.Description,
				formatDue(card.DueDate),
				strings.Join(card.Labels, ";"),
			}
			if err := writer.Write(record); err != nil {
				return nil, fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders the board as a heading per list with a task item per card
func ExportToMarkdown(export *models.BoardExport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", export.Board.Title)
	if export.Board.Description != "" {
		fmt.Fprintf(&buf, "%s\n\n", export.Board.Description)
	}
	fmt.Fprintf(&buf, "**Lists**: %d\n", len(export.Lists))
	fmt.Fprintf(&buf, "**Cards**: %d\n", export.CardCount())

	for _, list := range export.Lists {
		fmt.Fprintf(&buf, "\n## %s\n\n", list.Title)
		if len(list.Cards) == 0 {
			buf.WriteString("_No cards_\n")
			continue
		}
		for _, card := range list.Cards {
			fmt.Fprintf(&buf, "- [ ] %s", card.Title)
			if card.DueDate != nil {
				fmt.Fprintf(&buf, " (due %s)", formatDue(card.DueDate))
			}
			for _, l := range card.Labels {
				fmt.Fprintf(&buf, " `%s`", l)
			}
			buf.WriteString("\n")
			if card.Description != "" {
				for _, line := range strings.Split(card.Description, "\n") {
					fmt.Fprintf(&buf, "  > %s\n", line)
				}
			}
		}
	}

	return buf.Bytes(), nil
}

// ExportToText renders the board as numbered cards under each list
func ExportToText(export *models.BoardExport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Board: %s\n", export.Board.Title)
	if export.Board.Description != "" {
		fmt.Fprintf(&buf, "Description: %s\n", export.Board.Description)
	}
	fmt.Fprintf(&buf, "Cards: %d\n", export.CardCount())

	for _, list := range export.Lists {
		fmt.Fprintf(&buf, "\n%s (%d)\n", list.Title, len(list.Cards))
		for i, card := range list.Cards {
			fmt.Fprintf(&buf, "  %d. %s\n", i+1, card.Title)
		}
	}

	return buf.Bytes(), nil
}

// ExportToJSON renders the snapshot as indented JSON. [ParseExport] reads it back.
func ExportToJSON(export *models.BoardExport) ([]byte, error) {
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// ExportToYAML renders the snapshot as YAML. [ParseExport] reads it back.
func ExportToYAML(export *models.BoardExport) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(export); err != nil {
		return nil, fmt.Errorf("failed to encode YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode YAML: %w", err)
	}
	return buf.Bytes(), nil
}

// ParseExport decodes a JSON or YAML snapshot and validates it.
func ParseExport(data []byte, format Format) (*models.BoardExport, error) {
	var export models.BoardExport
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &export); err != nil {
			return nil, fmt.Errorf("%w: malformed JSON export: %v", shared.ErrInvalidInput, err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &export); err != nil {
			return nil, fmt.Errorf("%w: malformed YAML export: %v", shared.ErrInvalidInput, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s exports cannot be imported", shared.ErrInvalidFlag, format)
	}

	if err := export.Validate(); err != nil {
		return nil, err
	}
	return &export, nil
}

// ReadExport loads a snapshot file, picking the decoder from its extension.
func ReadExport(path string) (*models.BoardExport, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read export: %w", err)
	}
	return ParseExport(data, format)
}

// WriteExport writes export to path in format.
//
// Defaults to {board-title-slug}.{format} as the filename.
func WriteExport(export *models.BoardExport, format Format, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("%s.%s", Slug(export.Board.Title), format)
	}

	data, err := Export(export, format)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s: %w", format, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}

	return path, nil
}

// Slug lowercases s and replaces runs of anything but letters and digits with a dash.
func Slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "board"
	}
	return out
}

func formatDue(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(dateLayout)
}
