// The SOFS14 consistency walker. It verifies the superblock totals
// against the real lengths of the free lists, and for every inode in
// use the whole reference index, the cluster associations and the
// directory shapes.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
	"github.com/veronicapr/sofs14/common"
	"github.com/veronicapr/sofs14/debug"
	"github.com/veronicapr/sofs14/device"
	"github.com/veronicapr/sofs14/sofs"
)

func main() {
	app := &cli.App{
		Name:      "sofsck",
		Usage:     "check a SOFS14 volume for structural consistency",
		ArgsUsage: "supp-file",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "summary",
				Aliases: []string{"s"},
				Usage:   "print the superblock summary before checking",
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatalf("sofsck: %s", common.ErrorMessage(err))
	}
}

func run(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("sofsck: wrong number of mandatory arguments", 1)
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
	if !vol.WasCleanlyUnmounted() {
		fmt.Println("warning: volume was not properly unmounted")
	}
	if c.Bool("summary") {
		debug.PrintSuperBlock(vol.SuperBlock())
	}

	problems := vol.CheckVolume()
	if err := vol.Unmount(); err != nil {
		return err
	}

	if len(problems) == 0 {
		fmt.Println("volume is consistent")
		return nil
	}
	for _, p := range problems {
		fmt.Println(p)
	}
	return cli.Exit(fmt.Sprintf("%d problems found", len(problems)), 2)
}
