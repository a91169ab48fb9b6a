package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/statify/internal/models"
	"github.com/desertthunder/statify/internal/services"
	"github.com/desertthunder/statify/internal/shared"
	th "github.com/desertthunder/statify/internal/testing"
)

func snapshot(t *testing.T, id, dataType string, tr models.TimeRange, v any) models.StatSnapshot {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal %s: %v", dataType, err)
	}
	return models.StatSnapshot{
		ID:        id,
		DataType:  dataType,
		TimeRange: string(tr),
		Data:      data,
		CreatedAt: "2025-01-02T03:04:05Z",
	}
}

func sampleSnapshots(t *testing.T) []models.StatSnapshot {
	t.Helper()
	artists := th.SampleArtists()
	tracks := th.SampleTracks()
	return []models.StatSnapshot{
		snapshot(t, "stat-1", models.DataArtists, models.MediumTerm, models.TopArtists{Items: artists, Total: len(artists)}),
		snapshot(t, "stat-2", models.DataTracks, models.ShortTerm, models.TopTracks{Items: tracks, Total: len(tracks)}),
		snapshot(t, "stat-3", models.DataGenres, models.LongTerm, models.TopGenres{Items: services.CountGenres(artists)}),
		snapshot(t, "stat-4", models.DataAlbums, models.MediumTerm, models.TopAlbums{Items: services.GroupAlbums(tracks)}),
	}
}

func TestEntries(t *testing.T) {
	snapshots := sampleSnapshots(t)

	t.Run("Artists", func(t *testing.T) {
		entries, err := Entries(snapshots[0])
		if err != nil {
			t.Fatalf("Entries failed: %v", err)
		}
		if len(entries) != len(th.SampleArtists()) {
			t.Fatalf("expected %d entries, got %d", len(th.SampleArtists()), len(entries))
		}
		if entries[0].Rank != 1 || entries[0].Name != th.SampleArtists()[0].Name {
			t.Errorf("unexpected first entry %+v", entries[0])
		}
		if !strings.Contains(entries[0].Detail, "indie rock") {
			t.Errorf("expected genres in detail, got %q", entries[0].Detail)
		}
	})

	t.Run("Tracks", func(t *testing.T) {
		entries, err := Entries(snapshots[1])
		if err != nil {
			t.Fatalf("Entries failed: %v", err)
		}
		if len(entries) != len(th.SampleTracks()) {
			t.Fatalf("expected %d entries, got %d", len(th.SampleTracks()), len(entries))
		}
		if !strings.Contains(entries[0].Detail, "[") {
			t.Errorf("expected duration in detail, got %q", entries[0].Detail)
		}
	})

	t.Run("Genres", func(t *testing.T) {
		entries, err := Entries(snapshots[2])
		if err != nil {
			t.Fatalf("Entries failed: %v", err)
		}
		if entries[0].Name != "indie rock" || entries[0].Detail != "3 artists" {
			t.Errorf("unexpected first genre %+v", entries[0])
		}
	})

	t.Run("Albums", func(t *testing.T) {
		entries, err := Entries(snapshots[3])
		if err != nil {
			t.Fatalf("Entries failed: %v", err)
		}
		found := false
		for _, e := range entries {
			if strings.Contains(e.Detail, "2 tracks") {
				found = true
			}
		}
		if !found {
			t.Errorf("expected an album with 2 tracks, got %+v", entries)
		}
	})

	t.Run("Unknown Type", func(t *testing.T) {
		_, err := Entries(models.StatSnapshot{DataType: "podcasts", Data: []byte(`{}`)})
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Malformed Data", func(t *testing.T) {
		if _, err := Entries(models.StatSnapshot{DataType: models.DataArtists, Data: []byte(`[`)}); err == nil {
			t.Error("expected decode error")
		}
	})
}

func TestExporters(t *testing.T) {
	snapshots := sampleSnapshots(t)

	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(snapshots)
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
		if err != nil {
			t.Fatalf("output is not valid CSV: %v", err)
		}

		if strings.Join(records[0], ",") != "snapshot_id,data_type,time_range,created_at,rank,name,detail" {
			t.Errorf("unexpected headers %v", records[0])
		}

		total := 0
		for _, s := range snapshots {
			entries, _ := Entries(s)
			total += len(entries)
		}
		if len(records) != total+1 {
			t.Errorf("expected %d records, got %d", total+1, len(records))
		}

		if records[1][0] != "stat-1" || records[1][4] != "1" {
			t.Errorf("unexpected first record %v", records[1])
		}
	})

	t.Run("ExportToCSV Empty", func(t *testing.T) {
		data, err := ExportToCSV(nil)
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}
		if strings.Count(string(data), "\n") != 1 {
			t.Errorf("expected only headers, got %q", string(data))
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		data, err := ExportToMarkdown(snapshots)
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{
			"## Top artists (last 6 months)",
			"## Top tracks (last 4 weeks)",
			"## Top genres (all time)",
			"**Saved**: 2025-01-02T03:04:05Z",
			"1. indie rock - 3 artists",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("Markdown missing %q", want)
			}
		}
	})

	t.Run("ExportToMarkdown Without Items", func(t *testing.T) {
		empty := snapshot(t, "stat-5", models.DataGenres, models.ShortTerm, models.TopGenres{})
		data, err := ExportToMarkdown([]models.StatSnapshot{empty})
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}
		if !strings.Contains(string(data), "_No items_") {
			t.Errorf("expected placeholder, got %q", string(data))
		}
	})

	t.Run("ExportToJSON", func(t *testing.T) {
		data, err := ExportToJSON(snapshots)
		if err != nil {
			t.Fatalf("ExportToJSON failed: %v", err)
		}

		var decoded []models.StatSnapshot
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if len(decoded) != len(snapshots) || decoded[2].DataType != models.DataGenres {
			t.Errorf("unexpected decoded snapshots %+v", decoded)
		}

		empty, err := ExportToJSON(nil)
		if err != nil {
			t.Fatalf("ExportToJSON failed: %v", err)
		}
		if strings.TrimSpace(string(empty)) != "[]" {
			t.Errorf("expected empty array, got %q", string(empty))
		}
	})

	t.Run("RenderTable", func(t *testing.T) {
		output, err := RenderTable(snapshots[:1])
		if err != nil {
			t.Fatalf("RenderTable failed: %v", err)
		}
		for _, want := range []string{"Top artists (last 6 months)", "NAME", th.SampleArtists()[0].Name} {
			if !strings.Contains(output, want) {
				t.Errorf("table missing %q:\n%s", want, output)
			}
		}

		output, err = RenderTable(nil)
		if err != nil {
			t.Fatalf("RenderTable failed: %v", err)
		}
		if !strings.Contains(output, "No saved stats") {
			t.Errorf("expected empty message, got %q", output)
		}
	})
}

func TestFormats(t *testing.T) {
	t.Run("ParseFormat", func(t *testing.T) {
		cases := map[string]Format{
			"":         FormatTable,
			"table":    FormatTable,
			"CSV":      FormatCSV,
			"md":       FormatMarkdown,
			"markdown": FormatMarkdown,
			" json ":   FormatJSON,
		}
		for in, want := range cases {
			got, err := ParseFormat(in)
			if err != nil || got != want {
				t.Errorf("ParseFormat(%q) = %q, %v; want %q", in, got, err, want)
			}
		}

		if _, err := ParseFormat("xml"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("Write", func(t *testing.T) {
		snapshots := sampleSnapshots(t)
		for _, format := range []Format{FormatTable, FormatCSV, FormatMarkdown, FormatJSON} {
			var buf bytes.Buffer
			if err := Write(&buf, format, snapshots); err != nil {
				t.Errorf("Write(%s) failed: %v", format, err)
			}
			if buf.Len() == 0 {
				t.Errorf("Write(%s) produced no output", format)
			}
		}

		if err := Write(&bytes.Buffer{}, Format("yaml"), snapshots); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("Write Error", func(t *testing.T) {
		w := &th.FWriter{}
		if err := Write(w, FormatJSON, sampleSnapshots(t)); err == nil {
			t.Error("expected writer error to propagate")
		}
	})

	t.Run("WriteFile", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "exports", "stats.md")

		if err := WriteFile(path, FormatMarkdown, sampleSnapshots(t)); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}

		th.AssertDirExists(t, filepath.Join(dir, "exports"))
		th.AssertFileExists(t, path)
		if content := th.MustReadFile(t, path); !strings.HasPrefix(content, "## Top artists") {
			t.Errorf("unexpected file content %q", content)
		}
	})

	t.Run("FormatDuration", func(t *testing.T) {
		cases := map[int]string{0: "0:00", 59_999: "0:59", 200_000: "3:20", 3_600_000: "60:00"}
		for ms, want := range cases {
			if got := FormatDuration(ms); got != want {
				t.Errorf("FormatDuration(%d) = %q, want %q", ms, got, want)
			}
		}
	})
}
