package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ryanm101/romcatalog/internal/library"
	"github.com/ryanm101/romcatalog/internal/match"
	"github.com/ryanm101/romcatalog/internal/metrics"
	"github.com/ryanm101/romcatalog/internal/refresh"
)

func newNormalizeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize <title>...",
		Short: "Print the comparison key for titles",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows := make([][]string, 0, len(args))
			for _, title := range args {
				rows = append(rows, []string{title, match.Normalize(title)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Title", "Key"}, rows, nil))
			return nil
		},
	}
}

func newClassifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <path>...",
		Short: "Show the platform each path belongs to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(args))
			for _, path := range args {
				id, ok := a.Resolver.PlatformOf(path)
				if !ok {
					rows = append(rows, []string{path, "-", ""})
					continue
				}
				def, _ := a.Classifier.Definition(id)
				rows = append(rows, []string{path, id, def.DisplayName})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Path", "Platform", "Name"}, rows, nil))
			return nil
		},
	}
}

func newPlatformsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "platforms",
		Short: "List known platforms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			var rows [][]string
			for _, def := range a.Platforms.All() {
				gamesDB := ""
				if def.GamesDBID != 0 {
					gamesDB = strconv.Itoa(def.GamesDBID)
				}
				rows = append(rows, []string{
					def.ID,
					def.DisplayName,
					strings.Join(def.PathAliases, ", "),
					strings.Join(def.Extensions, " "),
					gamesDB,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Name", "Aliases", "Extensions", "GamesDB"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}
}

func newResolveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <path>",
		Short: "Build the library entity for a directory or archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			path := args[0]
			out := cmd.OutOrStdout()

			if p, ok := a.Resolver.ResolvePlatformFolder(path); ok {
				fmt.Fprintln(out, renderTable([]string{"Platform folder", "Platform", "Name"},
					[][]string{{p.Path, p.PlatformID, p.Name}}, nil))
				return nil
			}

			g, err := resolveGame(a.Resolver, path)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, renderGames([]*library.GameEntity{g}))
			return nil
		},
	}
}

func newScanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scan [root]",
		Short: "Walk a collection and list the entities found",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			root, err := collectionRoot(a.Config.CollectionRoot, args)
			if err != nil {
				return err
			}

			res, err := a.Scanner.Walk(cmd.Context(), root)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(res.Platforms) > 0 {
				rows := make([][]string, 0, len(res.Platforms))
				for _, p := range res.Platforms {
					rows = append(rows, []string{p.PlatformID, p.Name, p.Path})
				}
				fmt.Fprintln(out, renderTable([]string{"Platform", "Name", "Path"}, rows, nil))
			}
			fmt.Fprintln(out, renderGames(res.Games))
			fmt.Fprintf(out, "%d games, %d platform folders, %d directories visited", len(res.Games), len(res.Platforms), res.DirsVisited)
			if res.Unreadable > 0 {
				fmt.Fprintf(out, ", %d unreadable", res.Unreadable)
			}
			fmt.Fprintln(out)
			return nil
		},
	}
}

func newRefreshCommand(ctx *commandContext) *cobra.Command {
	var (
		withImages      bool
		metricsAddr     string
		metricsTextfile string
	)

	cmd := &cobra.Command{
		Use:   "refresh [root]",
		Short: "Scan a collection and refresh metadata for every entity",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			root, err := collectionRoot(a.Config.CollectionRoot, args)
			if err != nil {
				return err
			}

			if metricsAddr == "" {
				metricsAddr = a.Config.Metrics.Addr
			}
			if metricsTextfile == "" {
				metricsTextfile = a.Config.Metrics.Textfile
			}
			if metricsAddr != "" {
				srv, err := metrics.Serve(metricsAddr, a.Logger)
				if err != nil {
					return err
				}
				a.Logger.Info("serving metrics", "addr", srv.Addr())
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
			}

			res, err := a.Scanner.Walk(cmd.Context(), root)
			if err != nil {
				return err
			}

			for _, p := range res.Platforms {
				if _, err := a.Refresher.RefreshPlatform(cmd.Context(), p); err != nil {
					a.Logger.Warn("platform refresh failed", "path", p.Path, "error", err)
				}
			}

			summary, passErr := a.Refresher.RefreshAll(cmd.Context(), res.Games)
			if metricsTextfile != "" {
				if err := metrics.WriteTextfile(metricsTextfile); err != nil {
					a.Logger.Warn("metrics export failed", "path", metricsTextfile, "error", err)
				}
			}

			if withImages && passErr == nil {
				for _, g := range res.Games {
					if _, err := a.Refresher.Images(cmd.Context(), g); err != nil {
						a.Logger.Warn("image lookup failed", "path", g.Path, "error", err)
					}
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderGames(res.Games))
			fmt.Fprintln(out, renderTable(
				[]string{"Pass", "Updated", "No data", "Failed", "Skipped", "Duration"},
				[][]string{{
					summary.PassID,
					strconv.Itoa(summary.Updated),
					strconv.Itoa(summary.NoData),
					strconv.Itoa(summary.Failed),
					strconv.Itoa(summary.Skipped),
					summary.Duration.Round(time.Millisecond).String(),
				}},
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
			))
			for _, f := range summary.Failures {
				fmt.Fprintf(cmd.ErrOrStderr(), "failed: %s: %v\n", f.Path, f.Err)
			}
			return passErr
		},
	}

	cmd.Flags().BoolVar(&withImages, "images", false, "Also collect image candidates")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the pass")
	cmd.Flags().StringVar(&metricsTextfile, "metrics-file", "", "Write Prometheus metrics to this file after the pass")
	return cmd
}

func newImagesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "images <path>",
		Short: "Identify a game and list its image candidates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			g, err := resolveGame(a.Resolver, args[0])
			if err != nil {
				return err
			}

			outcome, err := a.Refresher.RefreshGame(refresh.WithPassID(cmd.Context(), "images"), g)
			if err != nil {
				return err
			}
			if outcome == refresh.OutcomeNoData {
				return fmt.Errorf("no catalog record for %q", g.Name)
			}

			refs, err := a.Refresher.Images(cmd.Context(), g)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(refs))
			for _, r := range refs {
				size := ""
				if r.Width > 0 && r.Height > 0 {
					size = fmt.Sprintf("%dx%d", r.Width, r.Height)
				}
				rows = append(rows, []string{string(r.Category), size, r.Provider, r.URL})
			}
			sort.SliceStable(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Category", "Size", "Provider", "URL"}, rows, nil))
			return nil
		},
	}
}

// resolveGame builds the game entity for a directory or a single file.
// A file outside a bulk folder resolves through its directory.
func resolveGame(r *library.Resolver, path string) (*library.GameEntity, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		if g, ok := r.ResolveFile(path); ok {
			return g, nil
		}
		path = filepath.Dir(path)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var children []string
	for _, e := range entries {
		if !e.IsDir() {
			children = append(children, e.Name())
		}
	}
	g, ok := r.ResolveDirectory(path, children)
	if !ok {
		return nil, fmt.Errorf("%s is not a game", path)
	}
	return g, nil
}

func collectionRoot(configured string, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if configured == "" {
		return "", errors.New("no root given and collection_root is not configured")
	}
	return configured, nil
}

func renderGames(games []*library.GameEntity) string {
	rows := make([][]string, 0, len(games))
	for _, g := range games {
		year := ""
		if g.ProductionYear != 0 {
			year = strconv.Itoa(g.ProductionYear)
		}
		parts := "1"
		if g.IsMultiPart() {
			parts = strconv.Itoa(len(g.MultiPartFiles))
		}
		ids := make([]string, 0, len(g.ExternalIDs))
		for k, v := range g.ExternalIDs {
			ids = append(ids, k+"="+v)
		}
		sort.Strings(ids)
		rows = append(rows, []string{g.Name, g.PlatformID, year, parts, strings.Join(ids, " "), g.Path})
	}
	return renderTable(
		[]string{"Name", "Platform", "Year", "Parts", "IDs", "Path"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
	)
}
