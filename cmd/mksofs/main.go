// The SOFS14 formatting tool. It writes the file system metadata onto
// predefined blocks of a support file: the superblock, the table of
// inodes, the root directory content and the general repository of
// free data clusters.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
	"github.com/veronicapr/sofs14/common"
	"github.com/veronicapr/sofs14/device"
	"github.com/veronicapr/sofs14/mkfs"
	"gopkg.in/yaml.v2"
)

func main() {
	app := &cli.App{
		Name:      "mksofs",
		Usage:     "format a support file as a SOFS14 volume",
		ArgsUsage: "supp-file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "name",
				Aliases: []string{"n"},
				Usage:   "volume name (default: generated)",
			},
			&cli.UintFlag{
				Name:    "inodes",
				Aliases: []string{"i"},
				Usage:   "number of inodes (default: one per eight blocks)",
			},
			&cli.BoolFlag{
				Name:    "zero",
				Aliases: []string{"z"},
				Usage:   "zero the information content of all free clusters",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "issue no messages",
			},
			&cli.StringFlag{
				Name:    "profile",
				Aliases: []string{"p"},
				Usage:   "YAML format profile to take defaults from",
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatalf("mksofs: %s", common.ErrorMessage(err))
	}
}

func run(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("mksofs: wrong number of mandatory arguments", 1)
	}
	suppFile := c.Args().Get(0)

	var opts mkfs.Options
	if profile := c.String("profile"); profile != "" {
		buf, err := os.ReadFile(profile)
		if err != nil {
			return fmt.Errorf("reading format profile: %w", err)
		}
		if err := yaml.Unmarshal(buf, &opts); err != nil {
			return fmt.Errorf("parsing format profile: %w", err)
		}
	}
	if c.IsSet("name") {
		opts.Name = c.String("name")
	}
	if c.IsSet("inodes") {
		opts.Inodes = uint32(c.Uint("inodes"))
	}
	if c.IsSet("zero") {
		opts.Zero = c.Bool("zero")
	}
	opts.Uid = os.Getuid()
	opts.Gid = os.Getgid()

	dev, err := device.NewFileDevice(suppFile)
	if err != nil {
		return fmt.Errorf("opening support file: %w", err)
	}
	defer dev.Close()

	if err := mkfs.Format(dev, opts); err != nil {
		return err
	}

	if !c.Bool("quiet") {
		ntotal := dev.Size() / common.BLOCK_SIZE
		geo, _ := mkfs.ComputeGeometry(uint32(ntotal), opts.Inodes)
		fmt.Printf("%d blocks: %d inodes in %d blocks, %d data clusters\n",
			geo.NTotal, geo.ITotal, geo.ITableSize, geo.DZoneTotal)
		fmt.Println("Formating concluded.")
	}
	return nil
}
