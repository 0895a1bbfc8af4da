package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func init() {
	// -v is taken by --verbose.
	cli.VersionFlag = &cli.BoolFlag{Name: "version", Usage: "print the version"}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "cvforge",
		Usage:   "render tagged CV data through HTML templates into HTML or PDF",
		Version: fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildDate),
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Value: "./config.json",
				Usage: "path to the JSON config file, created with defaults if missing",
			},
		}, renderFlags()...),
		Action: renderAction,
		Commands: []*cli.Command{
			{
				Name:   "render",
				Usage:  "render a template with (optionally filtered) data",
				Flags:  renderFlags(),
				Action: renderAction,
			},
			{
				Name:   "watch",
				Usage:  "render once, then again whenever the template or data changes",
				Flags:  renderFlags(),
				Action: watchAction,
			},
			{
				Name:  "filter",
				Usage: "print the data filtered by tags as YAML",
				Flags: []cli.Flag{
					dataFlag(),
					tagsFlag(),
				},
				Action: filterAction,
			},
			{
				Name:   "tags",
				Usage:  "list every tag used in the data",
				Flags:  []cli.Flag{dataFlag()},
				Action: tagsAction,
			},
			{
				Name:  "serve",
				Usage: "start the preview server",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Usage: "listen address, overrides server_addr"},
					&cli.StringFlag{Name: "data", Aliases: []string{"d"}, Usage: "data file, overrides data_file"},
					&cli.StringFlag{Name: "templates", Usage: "template directory, overrides template_dir"},
					&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "enable debug logging"},
				},
				Action: serveAction,
			},
			{
				Name:  "history",
				Usage: "list archived renders",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20, Usage: "number of renders to show"},
					&cli.IntFlag{Name: "prune", Value: -1, Usage: "keep only the newest N renders before listing"},
				},
				Action: historyAction,
			},
		},
	}
}

func dataFlag() cli.Flag {
	return &cli.StringFlag{Name: "data", Aliases: []string{"d"}, Usage: "path to the YAML or JSON data file"}
}

func tagsFlag() cli.Flag {
	return &cli.StringSliceFlag{Name: "tags", Usage: "tags to filter by; prefix with ! to exclude"}
}

// renderFlags are shared by the root command, render and watch.
func renderFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "template", Aliases: []string{"t"}, Usage: "path to the HTML or Markdown template"},
		dataFlag(),
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Value: "output.pdf", Usage: "output file, or directory with --iterate"},
		&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: formatPDF, Usage: "output format: pdf or html"},
		tagsFlag(),
		&cli.BoolFlag{Name: "iterate", Usage: "render once per tag into <output>/<tag>.<format> (excludes --tags)"},
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "enable debug logging"},
	}
}
