package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/seantiz/estimator/internal/config"
)

func layersCommand() *cli.Command {
	return &cli.Command{
		Name:  "layers",
		Usage: "List the registered calculation layers",
		Action: func(c *cli.Context) error {
			reg := newRegistry(config.NewLogger(io.Discard, slog.LevelInfo))
			for _, name := range reg.List() {
				fmt.Fprintln(c.App.Writer, name)
			}
			return nil
		},
	}
}
