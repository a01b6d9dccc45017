// The host-side driver: builds a machine around a disk image and exposes
// the file system as subcommands.
package main

import (
	"fmt"
	"os"

	"nachos/filesys"
	"nachos/machine"
	"nachos/threads"

	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
	"github.com/tchajed/goose/machine/disk"
	"github.com/urfave/cli/v2"
)

type Config struct {
	Disk    string `envconfig:"NACHOS_DISK"`
	Sectors int    `envconfig:"NACHOS_SECTORS" default:"1024"`
	Debug   string `envconfig:"NACHOS_DEBUG" default:"warning"`
}

func boot(cfg *Config, format bool) (*filesys.FileSystem, error) {
	level, err := log.ParseLevel(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("parsing debug level %q: %w", cfg.Debug, err)
	}
	log.SetLevel(level)

	var backing disk.Disk
	if cfg.Disk == "" {
		backing = disk.NewMemDisk(uint64(cfg.Sectors))
	} else {
		fd, err := disk.NewFileDisk(cfg.Disk, uint64(cfg.Sectors))
		if err != nil {
			return nil, fmt.Errorf("opening disk image %q: %w", cfg.Disk, err)
		}
		backing = fd
	}

	ints := machine.NewInterrupts()
	k := threads.NewKernel(ints)
	dev := machine.NewDisk(ints, backing)
	sd := filesys.NewSynchDisk(k, dev)
	return filesys.NewFileSystem(k, sd, format), nil
}

func main() {
	var cfg Config
	if err := envconfig.Process("nachos", &cfg); err != nil {
		log.Fatal(err)
	}

	app := &cli.App{
		Name:  "nachos",
		Usage: "operate on a nachos disk image",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "disk", Aliases: []string{"d"}, Usage: "disk image path (default: in-memory)"},
			&cli.IntFlag{Name: "sectors", Usage: "disk size in sectors"},
			&cli.StringFlag{Name: "debug", Usage: "log level"},
		},
		Before: func(c *cli.Context) error {
			if c.IsSet("disk") {
				cfg.Disk = c.String("disk")
			}
			if c.IsSet("sectors") {
				cfg.Sectors = c.Int("sectors")
			}
			if c.IsSet("debug") {
				cfg.Debug = c.String("debug")
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "format",
				Usage: "write an empty file system onto the disk",
				Action: func(c *cli.Context) error {
					_, err := boot(&cfg, true)
					return err
				},
			},
			{
				Name:      "ls",
				Usage:     "list a directory",
				ArgsUsage: "[PATH]",
				Action: func(c *cli.Context) error {
					fs, err := boot(&cfg, false)
					if err != nil {
						return err
					}
					path := c.Args().Get(0)
					if path == "" {
						path = "/"
					}
					names, ok := fs.List(path)
					if !ok {
						return fmt.Errorf("no such directory: %s", path)
					}
					for _, name := range names {
						fmt.Println(name)
					}
					return nil
				},
			},
			{
				Name:      "cp",
				Usage:     "copy a host file into the file system",
				ArgsUsage: "HOSTFILE PATH",
				Action: func(c *cli.Context) error {
					fs, err := boot(&cfg, false)
					if err != nil {
						return err
					}
					data, err := os.ReadFile(c.Args().Get(0))
					if err != nil {
						return err
					}
					path := c.Args().Get(1)
					if !fs.Create(path, len(data)) {
						return fmt.Errorf("cannot create %s", path)
					}
					f := fs.Open(path)
					if f == nil {
						return fmt.Errorf("cannot open %s", path)
					}
					defer f.Close()
					if n := f.WriteAt(data, 0); n != len(data) {
						return fmt.Errorf("wrote %d of %d bytes", n, len(data))
					}
					return nil
				},
			},
			{
				Name:      "cat",
				Usage:     "print a file",
				ArgsUsage: "PATH",
				Action: func(c *cli.Context) error {
					fs, err := boot(&cfg, false)
					if err != nil {
						return err
					}
					f := fs.Open(c.Args().Get(0))
					if f == nil {
						return fmt.Errorf("no such file: %s", c.Args().Get(0))
					}
					defer f.Close()
					data := make([]byte, f.Length())
					f.ReadAt(data, 0)
					os.Stdout.Write(data)
					return nil
				},
			},
			{
				Name:      "rm",
				Usage:     "remove a file or directory",
				ArgsUsage: "PATH",
				Action: func(c *cli.Context) error {
					fs, err := boot(&cfg, false)
					if err != nil {
						return err
					}
					if !fs.Remove(c.Args().Get(0)) {
						return fmt.Errorf("cannot remove %s", c.Args().Get(0))
					}
					return nil
				},
			},
			{
				Name:      "mkdir",
				Usage:     "create a directory",
				ArgsUsage: "PATH",
				Action: func(c *cli.Context) error {
					fs, err := boot(&cfg, false)
					if err != nil {
						return err
					}
					if !fs.MakeDir(c.Args().Get(0)) {
						return fmt.Errorf("cannot create %s", c.Args().Get(0))
					}
					return nil
				},
			},
			{
				Name:      "rmdir",
				Usage:     "remove a directory tree",
				ArgsUsage: "PATH",
				Action: func(c *cli.Context) error {
					fs, err := boot(&cfg, false)
					if err != nil {
						return err
					}
					if !fs.RemoveDir(c.Args().Get(0)) {
						return fmt.Errorf("cannot remove %s", c.Args().Get(0))
					}
					return nil
				},
			},
			{
				Name:  "df",
				Usage: "report free space",
				Action: func(c *cli.Context) error {
					fs, err := boot(&cfg, false)
					if err != nil {
						return err
					}
					free := fs.FreeSectors()
					fmt.Printf("%d of %d sectors free (%d bytes)\n",
						free, fs.NumSectors(), free*machine.SectorSize)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
