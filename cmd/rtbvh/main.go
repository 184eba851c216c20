package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:    "rtbvh",
		Usage:   "build, trace and upload ray tracing hierarchies",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML config file",
			},
			&cli.BoolFlag{
				Name:  "v",
				Usage: "enable debug logging",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "also write logs to this file, rotated",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "build",
				Usage: "build every object of a scene and assemble the TLAS",
				Description: `
Load a Wavefront OBJ file, build one BLAS per object (in parallel) with the
compressed GPU variant, assemble the TLAS and report export sizes.`,
				ArgsUsage: "scene.obj",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "save-config",
						Usage: "write the effective config to this path",
					},
				},
				Action: buildScene,
			},
			{
				Name:      "trace",
				Usage:     "render a depth image of a scene through the TLAS",
				ArgsUsage: "scene.obj",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "width",
						Value: 512,
						Usage: "image width",
					},
					&cli.IntFlag{
						Name:  "height",
						Value: 512,
						Usage: "image height",
					},
					&cli.Float64Flag{
						Name:  "fov",
						Value: 60,
						Usage: "vertical field of view in degrees",
					},
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Value:   "depth.png",
						Usage:   "output PNG",
					},
				},
				Action: traceScene,
			},
			{
				Name:      "upload",
				Usage:     "pack a scene and upload it to a headless WebGPU device",
				ArgsUsage: "scene.obj",
				Action:    uploadScene,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
