package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"

	"github.com/b1naryth1ef/isocarto"
	"github.com/b1naryth1ef/isocarto/build"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:        "isocarto",
		Description: "incremental chunk renderer for McRegion worlds",
		Commands: []*cli.Command{
			{
				Name:   "render",
				Usage:  "render a world from a config file or from flags",
				Action: commandRender,
				Flags: []cli.Flag{
					&cli.PathFlag{
						Name:  "config",
						Usage: "path to the configuration file (.hcl or .yaml)",
					},
					&cli.PathFlag{
						Name:  "world",
						Usage: "world directory, or the name/number of a local save",
					},
					&cli.PathFlag{
						Name:  "cache",
						Usage: "directory holding rendered chunk images",
					},
					&cli.IntFlag{
						Name:    "procs",
						Aliases: []string{"p"},
						Usage:   "number of render workers, 0 uses every CPU",
					},
					&cli.StringFlag{
						Name:  "store",
						Usage: "where POI state is kept: file or sqlite",
						Value: isocarto.StoreFile,
					},
					&cli.PathFlag{
						Name:  "chunklist",
						Usage: "only re-render the chunks listed in this file",
					},
					&cli.BoolFlag{Name: "lighting", Usage: "shade by terrain height"},
					&cli.BoolFlag{Name: "night", Usage: "render a night variant"},
					&cli.BoolFlag{Name: "spawn", Usage: "render with spawn lighting"},
					&cli.BoolFlag{Name: "biomes", Usage: "request biome tinting"},
					&cli.BoolFlag{Name: "caves", Usage: "render the cave variant"},
					&cli.BoolFlag{
						Name:  "clean",
						Usage: "force a clean build ignoring previously rendered images",
						Value: false,
					},
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
						Usage:   "log debug output",
					},
				},
			},
			{
				Name:   "worlds",
				Usage:  "list the worlds in the local save directory",
				Action: commandWorlds,
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

func resolveWorld(arg string) (string, error) {
	if _, err := os.Stat(arg); err == nil {
		return arg, nil
	}

	worlds, err := isocarto.ListWorlds()
	if err != nil {
		return "", err
	}
	if info, ok := worlds[arg]; ok {
		return info.Path, nil
	}
	return "", fmt.Errorf("world %q not found", arg)
}

func configFromFlags(ctx *cli.Context) (*isocarto.Config, error) {
	if ctx.Path("world") == "" || ctx.Path("cache") == "" {
		return nil, fmt.Errorf("either --config or both --world and --cache are required")
	}

	worldDir, err := resolveWorld(ctx.Path("world"))
	if err != nil {
		return nil, err
	}

	return &isocarto.Config{
		Concurrency: ctx.Int("procs"),
		Store:       ctx.String("store"),
		Verbose:     ctx.Bool("verbose"),
		Maps: []*isocarto.MapConfigBlock{
			{
				Name:      "world",
				World:     worldDir,
				Cache:     ctx.Path("cache"),
				Lighting:  ctx.Bool("lighting"),
				Night:     ctx.Bool("night"),
				Spawn:     ctx.Bool("spawn"),
				Biomes:    ctx.Bool("biomes"),
				Caves:     ctx.Bool("caves"),
				ChunkList: ctx.Path("chunklist"),
			},
		},
	}, nil
}

func commandRender(ctx *cli.Context) error {
	var (
		config *isocarto.Config
		err    error
	)
	if path := ctx.Path("config"); path != "" {
		config, err = isocarto.LoadConfig(path)
		if err == nil && ctx.IsSet("procs") {
			config.Concurrency = ctx.Int("procs")
		}
		if err == nil && ctx.IsSet("verbose") {
			config.Verbose = ctx.Bool("verbose")
		}
	} else {
		config, err = configFromFlags(ctx)
	}
	if err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	_, err = build.Build(sigCtx, config, build.BuildOpts{
		ForceClean: ctx.Bool("clean"),
	})
	return err
}

func commandWorlds(ctx *cli.Context) error {
	worlds, err := isocarto.ListWorlds()
	if err != nil {
		return err
	}
	if worlds == nil {
		return fmt.Errorf("no save directory found, looked in %v", isocarto.SaveDirCandidates())
	}

	names := make([]string, 0, len(worlds))
	for name := range worlds {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		info := worlds[name]
		fmt.Printf("%s\t%s\tversion=%d\n", name, info.Path, info.Level.Version)
	}
	return nil
}
