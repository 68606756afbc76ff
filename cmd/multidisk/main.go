package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/MikhailWahib/multidisk"
	"github.com/MikhailWahib/multidisk/internal/logger"
	"github.com/spf13/afero"
)

const usage = `usage: multidisk [flags] <command> [args]

commands:
  init              create every file at its final length
  alloc             preallocate requested files
  exists            report whether any file is present
  size              print on-disk and virtual sizes
  read OFFSET LEN   copy LEN bytes at OFFSET to stdout
  write OFFSET      copy stdin to OFFSET

flags:
`

func main() {
	envFile := flag.String("env", ".env", "dotenv file with MULTIDISK_* settings")
	manifest := flag.String("manifest", "files.json", "JSON list of {path, length, requested}")
	topDir := flag.String("top", "", "session directory below the store directory")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := multidisk.DefaultConfig()
	if err := cfg.LoadEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.LogLevel, os.Stderr)

	fs := afero.NewOsFs()
	files, err := multidisk.LoadManifest(fs, *manifest)
	if err != nil {
		logger.Error("unable to load manifest", "path", *manifest, "error", err)
		os.Exit(1)
	}

	d, err := multidisk.OpenFs(fs, files, *topDir, cfg)
	if err != nil {
		logger.Error("unable to open disk", "error", err)
		os.Exit(1)
	}

	err = run(d, flag.Arg(0), flag.Args()[1:])
	if cerr := d.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		logger.Error("command failed", "command", flag.Arg(0), "error", err)
		os.Exit(1)
	}
}

func run(d *multidisk.Disk, cmd string, args []string) error {
	switch cmd {
	case "init":
		return d.Initialize()

	case "alloc":
		it := d.AllocationIterator()
		for !it.Finished() {
			if err := it.AllocateChunk(); err != nil {
				return err
			}
			logger.Debug("allocated", "current", it.CurrentLength(), "total", it.TotalLength())
		}
		logger.Info("allocation finished", "bytes", it.TotalLength())
		return nil

	case "exists":
		ok, err := d.Exists()
		if err != nil {
			return err
		}
		fmt.Println(ok)
		return nil

	case "size":
		size, err := d.Size()
		if err != nil {
			return err
		}
		fmt.Printf("on-disk %d\nvirtual %d\n", size, d.Length())
		return nil

	case "read":
		if len(args) != 2 {
			return fmt.Errorf("read needs OFFSET and LEN")
		}
		offset, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid offset: %w", err)
		}
		length, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid length: %w", err)
		}
		out := bufio.NewWriter(os.Stdout)
		if _, err := io.Copy(out, io.NewSectionReader(d, offset, length)); err != nil {
			return err
		}
		return out.Flush()

	case "write":
		if len(args) != 1 {
			return fmt.Errorf("write needs OFFSET")
		}
		offset, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid offset: %w", err)
		}
		n, err := io.Copy(io.NewOffsetWriter(d, offset), os.Stdin)
		if err != nil {
			return err
		}
		logger.Info("wrote", "bytes", n, "offset", offset)
		return nil
	}
	return fmt.Errorf("unknown command %q", cmd)
}
