// package formatter renders saved stat snapshots for the terminal and for export (table, CSV, Markdown, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/desertthunder/statify/internal/models"
	"github.com/desertthunder/statify/internal/shared"
)

// Format names an output format accepted by [Write].
type Format string

const (
	FormatTable    Format = "table"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// ParseFormat accepts table, csv, markdown (or md) and json. Empty means table.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "table":
		return FormatTable, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
}

// Entry is one ranked item of a snapshot.
type Entry struct {
	Rank   int
	Name   string
	Detail string
}

// Entries decodes a snapshot's data into ranked entries according to its data type.
func Entries(s models.StatSnapshot) ([]Entry, error) {
	var entries []Entry
	add := func(name, detail string) {
		entries = append(entries, Entry{Rank: len(entries) + 1, Name: name, Detail: detail})
	}

	switch s.DataType {
	case models.DataArtists:
		var top models.TopArtists
		if err := json.Unmarshal(s.Data, &top); err != nil {
			return nil, fmt.Errorf("failed to decode artists: %w", err)
		}
		for _, a := range top.Items {
			add(a.Name, strings.Join(a.Genres, ", "))
		}
	case models.DataTracks:
		var top models.TopTracks
		if err := json.Unmarshal(s.Data, &top); err != nil {
			return nil, fmt.Errorf("failed to decode tracks: %w", err)
		}
		for _, t := range top.Items {
			add(t.Name, fmt.Sprintf("%s [%s]", strings.Join(t.ArtistNames(), ", "), FormatDuration(t.DurationMs)))
		}
	case models.DataGenres:
		var top models.TopGenres
		if err := json.Unmarshal(s.Data, &top); err != nil {
			return nil, fmt.Errorf("failed to decode genres: %w", err)
		}
		for _, g := range top.Items {
			add(g.Name, pluralize(g.Count, "artist"))
		}
	case models.DataAlbums:
		var top models.TopAlbums
		if err := json.Unmarshal(s.Data, &top); err != nil {
			return nil, fmt.Errorf("failed to decode albums: %w", err)
		}
		for _, a := range top.Items {
			add(a.Name, fmt.Sprintf("%s (%s)", strings.Join(a.Artists, ", "), pluralize(len(a.Tracks), "track")))
		}
	default:
		return nil, fmt.Errorf("%w: unknown data type %q", shared.ErrInvalidInput, s.DataType)
	}
	return entries, nil
}

// FormatDuration formats milliseconds as m:ss.
func FormatDuration(ms int) string {
	secs := ms / 1000
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// ExportToCSV writes one row per entry with columns: snapshot_id, data_type, time_range, created_at, rank, name, detail
func ExportToCSV(snapshots []models.StatSnapshot) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"snapshot_id", "data_type", "time_range", "created_at", "rank", "name", "detail"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, s := range snapshots {
		entries, err := Entries(s)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			record := []string{s.ID, s.DataType, s.TimeRange, s.CreatedAt, strconv.Itoa(e.Rank), e.Name, e.Detail}
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

// ExportToMarkdown renders each snapshot as a heading followed by a numbered list.
func ExportToMarkdown(snapshots []models.StatSnapshot) ([]byte, error) {
	var buf bytes.Buffer

	for i, s := range snapshots {
		entries, err := Entries(s)
		if err != nil {
			return nil, err
		}

		if i > 0 {
			buf.WriteString("\n")
		}
		fmt.Fprintf(&buf, "## %s\n\n", Title(s))
		fmt.Fprintf(&buf, "**Saved**: %s\n\n", s.CreatedAt)

		if len(entries) == 0 {
			buf.WriteString("_No items_\n")
			continue
		}
		for _, e := range entries {
			if e.Detail != "" {
				fmt.Fprintf(&buf, "%d. %s - %s\n", e.Rank, e.Name, e.Detail)
			} else {
				fmt.Fprintf(&buf, "%d. %s\n", e.Rank, e.Name)
			}
		}
	}

	return buf.Bytes(), nil
}

// ExportToJSON returns the snapshots as indented JSON, matching the stats endpoint.
func ExportToJSON(snapshots []models.StatSnapshot) ([]byte, error) {
	if snapshots == nil {
		snapshots = []models.StatSnapshot{}
	}
	data, err := json.MarshalIndent(snapshots, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshots: %w", err)
	}
	return append(data, '\n'), nil
}

// Title describes a snapshot, e.g. "Top artists (last 6 months)".
func Title(s models.StatSnapshot) string {
	return fmt.Sprintf("Top %s (%s)", s.DataType, RangeLabel(s.TimeRange))
}

// RangeLabel returns the human name of a time range.
func RangeLabel(tr string) string {
	switch models.TimeRange(tr) {
	case models.ShortTerm:
		return "last 4 weeks"
	case models.MediumTerm:
		return "last 6 months"
	case models.LongTerm:
		return "all time"
	}
	return tr
}

// Write renders snapshots to w in format.
func Write(w io.Writer, format Format, snapshots []models.StatSnapshot) error {
	var (
		data []byte
		err  error
	)

	switch format {
	case FormatTable, "":
		var out string
		out, err = RenderTable(snapshots)
		data = []byte(out)
	case FormatCSV:
		data, err = ExportToCSV(snapshots)
	case FormatMarkdown:
		data, err = ExportToMarkdown(snapshots)
	case FormatJSON:
		data, err = ExportToJSON(snapshots)
	default:
		return fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}
	if err != nil {
		return err
	}

	_, err = w.Write(data)
	return err
}

// WriteFile renders snapshots in format to path, creating parent directories.
func WriteFile(path string, format Format, snapshots []models.StatSnapshot) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := Write(f, format, snapshots); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
