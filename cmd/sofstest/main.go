// The SOFS14 operation exercise shell: a menu driven driver for every
// core operation of the storage engine, used to poke at a volume one
// call at a time. In batch mode it consumes the same answers from
// stdin without prompting.
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/urfave/cli/v2"
	"github.com/veronicapr/sofs14/common"
	"github.com/veronicapr/sofs14/debug"
	"github.com/veronicapr/sofs14/device"
	"github.com/veronicapr/sofs14/sofs"
)

// Config holds the environment defaults, read from SOFSTEST_* vars.
type Config struct {
	Device string `envconfig:"DEVICE"`
	Batch  bool   `envconfig:"BATCH"`
	Probe  bool   `envconfig:"PROBE"`
}

type shell struct {
	vol   *sofs.Volume
	in    *bufio.Scanner
	batch bool
}

func main() {
	var cfg Config
	if err := envconfig.Process("sofstest", &cfg); err != nil {
		log.Fatalf("sofstest: %s", err)
	}

	app := &cli.App{
		Name:      "sofstest",
		Usage:     "exercise the SOFS14 internal operations one call at a time",
		ArgsUsage: "[supp-file]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "batch",
				Aliases: []string{"b"},
				Value:   cfg.Batch,
				Usage:   "batch mode: no prompts",
			},
			&cli.BoolFlag{
				Name:  "probe",
				Value: cfg.Probe,
				Usage: "enable operation probes",
			},
		},
		Action: func(c *cli.Context) error {
			supp := cfg.Device
			if c.NArg() == 1 {
				supp = c.Args().Get(0)
			}
			if supp == "" {
				return cli.Exit("sofstest: no support file given", 1)
			}
			debug.SetProbe(c.Bool("probe"))
			return runShell(supp, c.Bool("batch"))
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatalf("sofstest: %s", common.ErrorMessage(err))
	}
}

func runShell(supp string, batch bool) error {
	dev, err := device.NewFileDevice(supp)
	if err != nil {
		return fmt.Errorf("opening support file: %w", err)
	}
	vol, err := sofs.Mount(dev, sofs.CurrentUser())
	if err != nil {
		dev.Close()
		return err
	}

	sh := &shell{
		vol:   vol,
		in:    bufio.NewScanner(os.Stdin),
		batch: batch,
	}
	sh.loop()

	if err := vol.Unmount(); err != nil {
		return err
	}
	if !batch {
		fmt.Println("Bye!")
	}
	return nil
}

func (sh *shell) loop() {
	for {
		if !sh.batch {
			printMenu()
			fmt.Print("\nYour command: ")
		}
		cmd, ok := sh.readLine()
		if !ok {
			return
		}
		if cmd == "0" || cmd == "q" {
			return
		}
		sh.dispatch(cmd)
	}
}

func printMenu() {
	fmt.Print(`
 1 - alloc inode          2 - free inode           3 - clean inode
 4 - read inode           5 - alloc data cluster   6 - free data cluster
 7 - handle file cluster  8 - handle file clusters 9 - read file cluster
10 - write file cluster  11 - get dir entry (name) 12 - get dir entry (path)
13 - add/attach entry    14 - rem/detach entry     15 - rename entry
16 - check emptiness     17 - access granted        0 - quit
`)
}

func (sh *shell) dispatch(cmd string) {
	switch cmd {
	case "1":
		typ := sh.askUint("Inode type (1 - dir, 2 - file, 3 - symlink): ")
		types := map[uint32]uint16{
			1: common.INODE_DIR, 2: common.INODE_FILE, 3: common.INODE_SYMLINK,
		}
		nInode, err := sh.vol.AllocInode(types[typ])
		sh.report(err, "Inode no. %d allocated.", nInode)
	case "2":
		nInode := sh.askUint("Inode number: ")
		sh.report(sh.vol.FreeInode(nInode), "Inode no. %d freed.", nInode)
	case "3":
		nInode := sh.askUint("Inode number: ")
		sh.report(sh.vol.CleanInode(nInode), "Inode no. %d cleaned.", nInode)
	case "4":
		nInode := sh.askUint("Inode number: ")
		status := sh.askUint("Inode status (in use = 0, free in dirty state = 1): ")
		ip, err := sh.vol.ReadInode(nInode, status)
		if err == nil {
			debug.PrintInode(nInode, &ip)
		}
		sh.report(err, "Inode no. %d read.", nInode)
	case "5":
		nInode := sh.askUint("Inode number: ")
		nClust, err := sh.vol.AllocDataCluster(nInode)
		sh.report(err, "Cluster no. %d allocated.", nClust)
	case "6":
		nClust := sh.askUint("Logical cluster number: ")
		sh.report(sh.vol.FreeDataCluster(nClust), "Cluster no. %d freed.", nClust)
	case "7":
		nInode := sh.askUint("Inode number: ")
		clustInd := sh.askUint("Cluster index: ")
		op := sh.askUint("Operation (0-GET 1-ALLOC 2-FREE 3-FREE_CLEAN 4-CLEAN): ")
		out, err := sh.vol.HandleFileCluster(nInode, clustInd, op)
		sh.report(err, "Result: cluster no. %d.", out)
	case "8":
		nInode := sh.askUint("Inode number: ")
		clustIndIn := sh.askUint("Starting cluster index: ")
		op := sh.askUint("Operation (2-FREE 3-FREE_CLEAN 4-CLEAN): ")
		sh.report(sh.vol.HandleFileClusters(nInode, clustIndIn, op), "Done.")
	case "9":
		nInode := sh.askUint("Inode number: ")
		clustInd := sh.askUint("Cluster index: ")
		var dc common.DataClust
		err := sh.vol.ReadFileCluster(nInode, clustInd, &dc)
		if err == nil {
			fmt.Printf("First bytes: % x\n", dc.Info[:32])
		}
		sh.report(err, "Cluster read.")
	case "10":
		nInode := sh.askUint("Inode number: ")
		clustInd := sh.askUint("Cluster index: ")
		text, _ := sh.ask("Content: ")
		var dc common.DataClust
		copy(dc.Info[:], text)
		sh.report(sh.vol.WriteFileCluster(nInode, clustInd, &dc), "Cluster written.")
	case "11":
		nInodeDir := sh.askUint("Directory inode number: ")
		name, _ := sh.ask("Entry name: ")
		nInodeEnt, idx, err := sh.vol.GetDirEntryByName(nInodeDir, name)
		sh.report(err, "Entry at index %d references inode %d.", idx, nInodeEnt)
	case "12":
		path, _ := sh.ask("Path: ")
		nInodeDir, nInodeEnt, err := sh.vol.GetDirEntryByPath(path)
		sh.report(err, "Directory inode %d, entry inode %d.", nInodeDir, nInodeEnt)
	case "13":
		nInodeDir := sh.askUint("Directory inode number: ")
		name, _ := sh.ask("Entry name: ")
		nInodeEnt := sh.askUint("Entry inode number: ")
		op := sh.askUint("Operation (0-ADD 1-ATTACH): ")
		sh.report(sh.vol.AddAttDirEntry(nInodeDir, name, nInodeEnt, op), "Entry bound.")
	case "14":
		nInodeDir := sh.askUint("Directory inode number: ")
		name, _ := sh.ask("Entry name: ")
		op := sh.askUint("Operation (0-REM 1-DETACH): ")
		sh.report(sh.vol.RemDetachDirEntry(nInodeDir, name, op), "Entry unbound.")
	case "15":
		nInodeDir := sh.askUint("Directory inode number: ")
		oldName, _ := sh.ask("Old name: ")
		newName, _ := sh.ask("New name: ")
		sh.report(sh.vol.RenameDirEntry(nInodeDir, oldName, newName), "Entry renamed.")
	case "16":
		nInodeDir := sh.askUint("Directory inode number: ")
		sh.report(sh.vol.CheckDirectoryEmptiness(nInodeDir), "Directory is empty.")
	case "17":
		nInode := sh.askUint("Inode number: ")
		mask := sh.askUint("Operation mask (R=4 W=2 X=1): ")
		sh.report(sh.vol.AccessGranted(nInode, mask), "Access granted.")
	default:
		fmt.Fprintf(os.Stderr, "\x1b[02;41m==>\x1b[0m Invalid option. Try again!\n")
	}
}

func (sh *shell) readLine() (string, bool) {
	if !sh.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(sh.in.Text()), true
}

func (sh *shell) ask(prompt string) (string, bool) {
	if !sh.batch {
		fmt.Print(prompt)
	}
	return sh.readLine()
}

func (sh *shell) askUint(prompt string) uint32 {
	text, ok := sh.ask(prompt)
	if !ok {
		return 0
	}
	n, err := strconv.ParseUint(text, 10, 32)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bad number %q, using 0\n", text)
		return 0
	}
	return uint32(n)
}

func (sh *shell) report(err error, format string, args ...interface{}) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "\x1b[02;41m==>\x1b[0m %s\n", common.ErrorMessage(err))
		return
	}
	fmt.Printf("\x1b[07;32m==>\x1b[0m "+format+"\n", args...)
}
