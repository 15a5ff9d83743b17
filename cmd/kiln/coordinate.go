// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kiln-build/kiln/pkg/coordinate"
	"github.com/kiln-build/kiln/pkg/version"
)

func newCoordinateCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	coordCmd := &cobra.Command{
		Use:   "coordinate",
		Short: "Work with module coordinates",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	coordCmd.AddCommand(&cobra.Command{
		Use:   "parse <coordinate>",
		Short: "Explain a coordinate such as group:name:classifiers:type:version",
		Args:  cobra.ExactArgs(1),
		RunE: app.run(rootFlags, func(_ *cobra.Command, args []string) error {
			c, err := coordinate.Parse(args[0])
			if err != nil {
				return err
			}
			printCoordinate(app, c)
			return nil
		}),
	})
	return coordCmd
}

func printCoordinate(app *App, c coordinate.Coordinate) {
	row := func(key, value string) {
		fmt.Fprintf(app.stdout, "%s %s\n", KeyStyle.Render(fmt.Sprintf("%-10s", key+":")), value)
	}

	row("module", c.Module().String())
	row("version", describeVersion(c.Version()))

	specs := c.EffectiveArtifactSpecs()
	names := make([]string, 0, len(specs))
	for _, spec := range specs {
		names = append(names, spec.String())
	}
	row("artifacts", strings.Join(names, ", "))

	if c.Version().IsUnspecified() {
		return
	}
	for _, spec := range specs {
		if name, err := c.CacheFileName(spec); err == nil {
			row("file", name)
		}
	}
}

func describeVersion(v version.Version) string {
	switch {
	case v.IsUnspecified():
		return SubtitleStyle.Render("(unspecified)")
	case v.IsSnapshot():
		return v.String() + " " + SubtitleStyle.Render("(snapshot)")
	case v.IsDynamic():
		return v.String() + " " + SubtitleStyle.Render("(dynamic)")
	default:
		return v.String()
	}
}
