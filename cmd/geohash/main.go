package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/samirrijal/murmur/internal/adapters/location"
	natsadapter "github.com/samirrijal/murmur/internal/adapters/nats"
	"github.com/samirrijal/murmur/internal/adapters/postgres"
	"github.com/samirrijal/murmur/internal/core/domain"
	"github.com/samirrijal/murmur/internal/core/ports"
	"github.com/samirrijal/murmur/internal/core/usecases"
	"github.com/samirrijal/murmur/internal/pkg/config"
	"github.com/samirrijal/murmur/internal/pkg/geohash"
	"github.com/samirrijal/murmur/internal/pkg/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "geohash",
		Short:        "Geohash cells and location tracking for Murmur",
		SilenceUsage: true,
	}
	cmd.AddCommand(encodeCmd(), decodeCmd(), trackCmd())
	return cmd
}

func encodeCmd() *cobra.Command {
	var precision int

	c := &cobra.Command{
		Use:   "encode <lat> <lon>",
		Short: "Print the cell containing a coordinate",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lat, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("lat: %w", err)
			}
			lon, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("lon: %w", err)
			}
			cell, err := geohash.Encode(lat, lon, precision)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cell)
			return nil
		},
	}

	c.Flags().IntVarP(&precision, "precision", "p", geohash.DefaultPrecision, "Cell length (1-12)")
	return c
}

func decodeCmd() *cobra.Command {
	var asJSON bool

	c := &cobra.Command{
		Use:   "decode <cell>",
		Short: "Print the bounding box and centre of a cell",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			box, err := geohash.Decode(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return json.NewEncoder(out).Encode(box)
			}
			lat, lon := box.Center()
			fmt.Fprintf(out, "center %.6f,%.6f\n", lat, lon)
			fmt.Fprintf(out, "lat    [%.6f, %.6f]\n", box.MinLat, box.MaxLat)
			fmt.Fprintf(out, "lon    [%.6f, %.6f]\n", box.MinLon, box.MaxLon)
			return nil
		},
	}

	c.Flags().BoolVar(&asJSON, "json", false, "Print the box as JSON")
	return c
}

// trackCmd records pings for one user from a fixed point or a replayed
// track, the way the app does on imprint and every tracking interval.
func trackCmd() *cobra.Command {
	var (
		user      string
		nickname  string
		lat, lon  float64
		trackPath string
		loop      bool
		once      bool
		interval  time.Duration
	)

	c := &cobra.Command{
		Use:   "track",
		Short: "Record pings into the location log from a point or a CSV track",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load("murmur-tracker")
			if err != nil {
				return err
			}
			logging.Setup(cfg.Log.Level, cfg.Log.Format)
			ctx := cmd.Context()

			source, err := buildSource(cmd, trackPath, loop, lat, lon)
			if err != nil {
				return err
			}

			db, err := postgres.New(ctx, cfg.Database.DSN())
			if err != nil {
				return err
			}
			defer db.Close()

			var publisher ports.EventPublisher
			if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
				logging.FromContext(ctx).Warn("nats unavailable, pings will not be broadcast", "error", err)
			} else {
				defer pub.Close()
				publisher = pub
			}

			density := usecases.NewDensityService(postgres.NewLocationRepo(db), nil, publisher,
				usecases.WithWindow(cfg.Density.Window),
				usecases.WithPrecision(cfg.Density.Precision),
			)
			if interval <= 0 {
				interval = cfg.Tracking.Interval
			}
			tracker := usecases.NewTracker(density, source,
				domain.Session{UserID: user, Nickname: nickname}, interval, nil)

			if once {
				ping, err := tracker.Imprint(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", ping.Cell, ping.Time.Format(time.RFC3339))
				return nil
			}
			return ignoreCanceled(tracker.Run(ctx))
		},
	}

	c.Flags().StringVarP(&user, "user", "u", "", "User ID to record as (required)")
	c.Flags().StringVar(&nickname, "nickname", "", "Display name")
	c.Flags().Float64Var(&lat, "lat", 0, "Latitude of a fixed position")
	c.Flags().Float64Var(&lon, "lon", 0, "Longitude of a fixed position")
	c.Flags().StringVarP(&trackPath, "track", "t", "", "CSV track with lat,lon columns to replay")
	c.Flags().BoolVar(&loop, "loop", false, "Restart the track when it ends")
	c.Flags().BoolVar(&once, "once", false, "Record a single ping and exit")
	c.Flags().DurationVar(&interval, "interval", 0, "Sampling interval (default tracking.interval)")

	_ = c.MarkFlagRequired("user")
	return c
}

func buildSource(cmd *cobra.Command, trackPath string, loop bool, lat, lon float64) (ports.LocationSource, error) {
	if trackPath != "" {
		points, err := location.LoadTrack(trackPath)
		if err != nil {
			return nil, err
		}
		return location.NewReplay(points, loop), nil
	}
	if !cmd.Flags().Changed("lat") || !cmd.Flags().Changed("lon") {
		return nil, fmt.Errorf("either --track or both --lat and --lon are required")
	}
	static, err := location.NewStatic(lat, lon)
	if err != nil {
		return nil, err
	}
	return static, nil
}

// ignoreCanceled treats an interrupt as a clean exit.
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
