package main

import (
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli"

	"github.com/valerio/go-dotmatrix/dotmatrix"
	"github.com/valerio/go-dotmatrix/dotmatrix/memory"
	"github.com/valerio/go-dotmatrix/dotmatrix/render"
	"github.com/valerio/go-dotmatrix/dotmatrix/save"
)

func main() {
	app := cli.NewApp()
	app.Name = "dotmatrix"
	app.Description = "A Game Boy (DMG) emulator"
	app.Usage = "dotmatrix [options] <ROM file>"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "rom",
			Usage: "Path to the ROM file",
		},
		cli.StringFlag{
			Name:  "boot-rom",
			Usage: "Path to a 256 byte boot ROM image",
		},
		cli.BoolFlag{
			Name:  "headless",
			Usage: "Run without a display",
		},
		cli.IntFlag{
			Name:  "frames",
			Usage: "Number of frames to run in headless mode (required for headless)",
		},
		cli.IntFlag{
			Name:  "snapshot-interval",
			Usage: "Dump the frame as text every N frames in headless mode (0 = disabled)",
		},
		cli.StringFlag{
			Name:  "snapshot-dir",
			Usage: "Directory for frame dumps (default: temp directory)",
		},
		cli.StringFlag{
			Name:  "save-state",
			Usage: "Write the machine state to this file on exit",
		},
		cli.StringFlag{
			Name:  "load-state",
			Usage: "Restore the machine state from this file before running",
		},
		cli.BoolFlag{
			Name:  "no-save",
			Usage: "Disable battery RAM persistence",
		},
		cli.BoolFlag{
			Name:  "debug",
			Usage: "Enable debug logging",
		},
	}
	app.Action = run
	app.Commands = []cli.Command{
		{
			Name:      "info",
			Usage:     "Print cartridge header information and verify checksums",
			ArgsUsage: "<ROM file>",
			Flags: []cli.Flag{
				cli.BoolFlag{
					Name:  "verbose",
					Usage: "Also dump the raw header bytes",
				},
			},
			Action: info,
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("exiting with error", "error", err)
		os.Exit(1)
	}
}

func romPathFromContext(c *cli.Context) (string, error) {
	if path := c.String("rom"); path != "" {
		return path, nil
	}
	if c.NArg() > 0 {
		return c.Args().Get(0), nil
	}
	cli.ShowAppHelp(c)
	return "", errors.New("no ROM path provided")
}

func run(c *cli.Context) error {
	level := slog.LevelInfo
	if c.Bool("debug") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))

	romPath, err := romPathFromContext(c)
	if err != nil {
		return err
	}

	var opts []dotmatrix.Option
	if bootPath := c.String("boot-rom"); bootPath != "" {
		boot, err := os.ReadFile(bootPath)
		if err != nil {
			return fmt.Errorf("read boot ROM: %w", err)
		}
		opts = append(opts, dotmatrix.WithBootROM(boot))
	}

	emu, err := dotmatrix.NewWithFile(romPath, opts...)
	if err != nil {
		return err
	}
	slog.Info("loaded cartridge", "cart", emu.Cartridge().String())

	var manager *save.Manager
	if !c.Bool("no-save") && emu.Cartridge().HasBattery() {
		manager = save.NewManager(emu, romPath, slog.Default())
		if err := manager.Load(); err != nil {
			return err
		}
		defer func() {
			if err := manager.Close(); err != nil {
				slog.Error("final save flush failed", "error", err)
			}
		}()
	}

	if statePath := c.String("load-state"); statePath != "" {
		if err := loadState(emu, statePath); err != nil {
			return err
		}
		slog.Info("restored state", "path", statePath)
	}

	if statePath := c.String("save-state"); statePath != "" {
		defer func() {
			if err := saveState(emu, statePath); err != nil {
				slog.Error("state save failed", "error", err)
			} else {
				slog.Info("saved state", "path", statePath)
			}
		}()
	}

	if c.Bool("headless") {
		return runHeadless(c, emu, manager, romPath)
	}

	hook := func() {}
	if manager != nil {
		hook = manager.TickFrame
	}
	renderer, err := render.NewTerminalRenderer(emu, render.WithFrameHook(hook))
	if err != nil {
		return err
	}
	return renderer.Run()
}

func runHeadless(c *cli.Context, emu *dotmatrix.DMG, manager *save.Manager, romPath string) error {
	frames := c.Int("frames")
	if frames <= 0 {
		return errors.New("headless mode requires --frames with a positive value")
	}

	interval := c.Int("snapshot-interval")
	dir := c.String("snapshot-dir")
	if interval > 0 {
		if dir == "" {
			tempDir, err := os.MkdirTemp("", "dotmatrix-frames-*")
			if err != nil {
				return fmt.Errorf("create snapshot directory: %w", err)
			}
			dir = tempDir
		} else if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot directory: %w", err)
		}
	}

	romName := strings.TrimSuffix(filepath.Base(romPath), filepath.Ext(romPath))
	slog.Info("running headless", "frames", frames, "snapshot_interval", interval)

	for i := 1; i <= frames; i++ {
		if err := emu.RunUntilFrame(); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		if manager != nil {
			manager.TickFrame()
		}
		if interval > 0 && i%interval == 0 {
			path := filepath.Join(dir, fmt.Sprintf("%s_frame_%d.txt", romName, i))
			if err := dumpFrame(emu, path); err != nil {
				slog.Error("frame dump failed", "frame", i, "error", err)
			} else {
				slog.Debug("dumped frame", "frame", i, "path", path)
			}
		}
	}

	slog.Info("headless run complete",
		"frames", frames, "instructions", emu.InstructionCount())
	return nil
}

// dumpFrame writes the current frame as text, one glyph per pixel.
func dumpFrame(emu *dotmatrix.DMG, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Fprintf(f, "# frame %d, %d instructions\n",
		emu.FrameCount(), emu.InstructionCount())
	if _, err := f.WriteString(emu.GetCurrentFrame().String()); err != nil {
		return err
	}
	return nil
}

func saveState(emu *dotmatrix.DMG, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return emu.CaptureSnapshot().Encode(f)
}

func loadState(emu *dotmatrix.DMG, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	snapshot, err := dotmatrix.DecodeSnapshot(f)
	if err != nil {
		return err
	}
	return emu.RestoreSnapshot(snapshot)
}

func info(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("info requires a ROM path")
	}
	romPath := c.Args().Get(0)

	data, err := os.ReadFile(romPath)
	if err != nil {
		return err
	}

	cart, err := memory.LoadCartridge(data)
	if err != nil {
		return fmt.Errorf("parse cartridge: %w", err)
	}
	header := cart.Header()

	// FNV-1a over the whole image gives a stable short identifier.
	hasher := fnv.New64a()
	hasher.Write(data)

	fmt.Printf("file:             %s\n", filepath.Base(romPath))
	fmt.Printf("rom id:           %016x\n", hasher.Sum64())
	fmt.Printf("title:            %s\n", header.Title)
	fmt.Printf("type:             %s (0x%02X)\n", header.MBC, header.TypeCode)
	fmt.Printf("rom:              %d KiB (%d banks)\n", len(data)/1024, header.ROMBanks)
	fmt.Printf("ram:              %d KiB\n", cart.RAMSize()/1024)
	fmt.Printf("battery:          %v\n", cart.HasBattery())
	fmt.Printf("rtc:              %v\n", cart.HasRTC())
	fmt.Printf("cgb flag:         0x%02X\n", header.CGBFlag)
	fmt.Printf("version:          %d\n", header.Version)
	fmt.Printf("header checksum:  0x%02X (ok)\n", header.HeaderChecksum)
	fmt.Printf("global checksum:  0x%04X (%s)\n",
		header.GlobalChecksum, okString(header.GlobalChecksumOK))
	fmt.Printf("logo:             %s\n", okString(header.LogoOK))

	if c.Bool("verbose") {
		fmt.Println()
		dumpHeaderBytes(data)
	}
	return nil
}

func okString(ok bool) string {
	if ok {
		return "ok"
	}
	return "MISMATCH"
}

// dumpHeaderBytes prints the 0x100-0x14F header region as a hex dump.
func dumpHeaderBytes(data []byte) {
	for offset := 0x100; offset < 0x150 && offset < len(data); offset += 16 {
		end := min(offset+16, len(data))
		fmt.Printf("%04X:", offset)
		for _, b := range data[offset:end] {
			fmt.Printf(" %02X", b)
		}
		fmt.Println()
	}
}
