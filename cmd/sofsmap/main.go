// The SOFS14 allocation map renderer. It draws the data zone as a grid
// of cells, one per cluster, coloured by allocation state, and writes
// the result as a PNG image.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/fogleman/gg"
	"github.com/urfave/cli/v2"
	"github.com/veronicapr/sofs14/common"
	"github.com/veronicapr/sofs14/device"
	"github.com/veronicapr/sofs14/sofs"
)

const (
	cellSize = 12
	cellGap  = 2
	columns  = 64
	margin   = 16
)

func main() {
	app := &cli.App{
		Name:      "sofsmap",
		Usage:     "render the data zone allocation map of a SOFS14 volume",
		ArgsUsage: "supp-file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   "sofsmap.png",
				Usage:   "image file to write",
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatalf("sofsmap: %s", common.ErrorMessage(err))
	}
}

func run(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("sofsmap: wrong number of mandatory arguments", 1)
	}

	dev, err := device.NewFileDevice(c.Args().Get(0))
	if err != nil {
		return fmt.Errorf("opening support file: %w", err)
	}

	vol, err := sofs.Mount(dev, sofs.CurrentUser())
	if err != nil {
		dev.Close()
		return err
	}
	usage, err := vol.ClusterUsage()
	if err != nil {
		vol.Unmount()
		return err
	}
	name := vol.SuperBlock().VolumeName()
	if err := vol.Unmount(); err != nil {
		return err
	}

	out := c.String("output")
	if err := render(usage, name, out); err != nil {
		return err
	}
	fmt.Printf("%d clusters mapped to %s\n", len(usage), out)
	return nil
}

func render(usage []sofs.ClusterClass, name, out string) error {
	rows := (len(usage) + columns - 1) / columns
	width := margin*2 + columns*(cellSize+cellGap)
	height := margin*3 + rows*(cellSize+cellGap)

	dc := gg.NewContext(width, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	dc.SetRGB(0, 0, 0)
	dc.DrawString(fmt.Sprintf("%s: %d clusters", name, len(usage)), margin, margin)

	for i, class := range usage {
		col := i % columns
		row := i / columns
		x := float64(margin + col*(cellSize+cellGap))
		y := float64(margin*2 + row*(cellSize+cellGap))

		switch class {
		case sofs.ClusterFreeClean:
			dc.SetRGB(0.85, 0.85, 0.85)
		case sofs.ClusterFreeDirty:
			dc.SetRGB(0.95, 0.75, 0.35)
		case sofs.ClusterData:
			dc.SetRGB(0.30, 0.55, 0.90)
		case sofs.ClusterReference:
			dc.SetRGB(0.55, 0.35, 0.75)
		}
		dc.DrawRectangle(x, y, cellSize, cellSize)
		dc.Fill()
	}

	return dc.SavePNG(out)
}
