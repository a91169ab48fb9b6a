package main

import (
	"context"
	"fmt"
	"slices"

	"github.com/desertthunder/statify/internal/formatter"
	"github.com/desertthunder/statify/internal/models"
	"github.com/desertthunder/statify/internal/shared"
	"github.com/urfave/cli/v3"
)

var dataTypes = []string{models.DataArtists, models.DataTracks, models.DataGenres, models.DataAlbums}

func parseDataType(s string) (string, error) {
	if !slices.Contains(dataTypes, s) {
		return "", fmt.Errorf("%w: type %q must be one of artists, tracks, genres, albums", shared.ErrInvalidArgument, s)
	}
	return s, nil
}

// render writes snapshots to --output, or to the runner's output when it is empty.
func (r *Runner) render(cmd *cli.Command, snapshots []models.StatSnapshot) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	if path := cmd.String("output"); path != "" {
		if err := formatter.WriteFile(path, format, snapshots); err != nil {
			return err
		}
		r.logger.Info("stats exported", "path", path, "format", format, "snapshots", len(snapshots))
		return r.writePlain("✓ Wrote %d snapshots to %s\n", len(snapshots), path)
	}

	return formatter.Write(r.output, format, snapshots)
}

func snapshots(stats []*models.UserStat) []models.StatSnapshot {
	out := make([]models.StatSnapshot, 0, len(stats))
	for _, s := range stats {
		out = append(out, s.Snapshot())
	}
	return out
}

// StatsShow prints saved snapshots for a user.
func (r *Runner) StatsShow(ctx context.Context, cmd *cli.Command) error {
	filter := models.StatsFilter{Limit: cmd.Int("limit")}
	if t := cmd.String("type"); t != "" {
		dt, err := parseDataType(t)
		if err != nil {
			return err
		}
		filter.DataType = dt
	}
	if tr := cmd.String("time-range"); tr != "" {
		parsed, err := models.ParseTimeRange(tr)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
		}
		filter.TimeRange = parsed.String()
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	s, err := r.openStore(config)
	if err != nil {
		return err
	}
	defer s.Close()

	user, err := s.users.GetBySpotifyID(ctx, cmd.String("spotify-id"))
	if err != nil {
		return err
	}

	stats, err := s.stats.List(ctx, user.ID(), filter)
	if err != nil {
		return err
	}

	return r.render(cmd, snapshots(stats))
}

// StatsTop fetches top items from Spotify for a stored user, which saves a snapshot, and prints it.
func (r *Runner) StatsTop(ctx context.Context, cmd *cli.Command) error {
	dataType, err := parseDataType(cmd.String("type"))
	if err != nil {
		return err
	}
	timeRange, err := models.ParseTimeRange(cmd.String("time-range"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	limit := cmd.Int("limit")

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	a, err := r.openApp(config)
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := a.users.GetBySpotifyID(ctx, cmd.String("spotify-id"))
	if err != nil {
		return err
	}

	switch dataType {
	case models.DataArtists:
		_, err = a.stats.TopArtists(ctx, user, timeRange, limit)
	case models.DataTracks:
		_, err = a.stats.TopTracks(ctx, user, timeRange, limit)
	case models.DataGenres:
		_, err = a.stats.TopGenres(ctx, user, timeRange)
	case models.DataAlbums:
		_, err = a.stats.TopAlbums(ctx, user, timeRange, limit)
	}
	if err != nil {
		return err
	}

	saved, err := a.store.stats.List(ctx, user.ID(), models.StatsFilter{
		DataType:  dataType,
		TimeRange: timeRange.String(),
		Limit:     1,
	})
	if err != nil {
		return err
	}

	return r.render(cmd, snapshots(saved))
}
