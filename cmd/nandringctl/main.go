// Command nandringctl is an interactive shell for exercising a ring log
// against a simulated NAND device, the counterpart to the teacher's
// cmd/repl for tinySQL: a bufio.Scanner read loop dispatching on a
// small set of dot-commands instead of SQL statements.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"nandring/internal/nand"
	"nandring/internal/ring"
)

var (
	flagConfig   = flag.String("config", "", "ring config YAML file (start_block, length); if empty, uses -blocks/-start/-len")
	flagBlocks   = flag.Int("blocks", 128, "simulated device block count (ignored with -config)")
	flagStart    = flag.Int("start", 0, "ring start block (ignored with -config)")
	flagLen      = flag.Int("len", 64, "ring length in blocks (ignored with -config)")
	flagPPB      = flag.Int("ppb", 64, "simulated device pages per block")
	flagDataSize = flag.Int("data-size", 2048, "simulated device page data size")
	flagSpare    = flag.Int("spare-size", 64, "simulated device page spare size")
)

func main() {
	flag.Parse()

	sim := nand.NewSim(*flagBlocks, *flagPPB, *flagDataSize, *flagSpare)

	var cfg ring.Config
	var err error
	if *flagConfig != "" {
		cfg, err = ring.LoadConfigFile(*flagConfig, sim)
	} else {
		cfg = ring.Config{Nand: sim, StartBlk: ring.BlockIndex(*flagStart), Len: *flagLen}
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	r := ring.New(nand.NewSystemClock())
	if err := r.Start(cfg); err != nil {
		fmt.Fprintln(os.Stderr, "start error:", err)
		os.Exit(1)
	}

	runShell(r)
}

func runShell(r *ring.Ring) {
	sc := bufio.NewScanner(os.Stdin)
	sc.Buffer(make([]byte, 1024), 1024*1024)

	interactive := false
	if fi, err := os.Stdin.Stat(); err == nil {
		interactive = (fi.Mode() & os.ModeCharDevice) != 0
	}

	if interactive {
		fmt.Println("nandringctl shell. '.help' for commands, '.quit' to exit.")
	}

	ctx := context.Background()

	for {
		if interactive {
			fmt.Printf("ring[%s]> ", r.State())
		}
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				fmt.Fprintln(os.Stderr, "read error:", err)
			}
			return
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !handleCommand(ctx, r, line) {
			fmt.Println("unknown command, try .help")
		}
	}
}

func handleCommand(ctx context.Context, r *ring.Ring, line string) bool {
	fields := strings.Fields(line)
	cmd := fields[0]
	args := fields[1:]

	switch cmd {
	case ".help":
		printHelp()
	case ".quit", ".exit":
		os.Exit(0)
	case ".mount":
		ok, err := r.Mount(ctx)
		if err != nil {
			fmt.Println("ERR:", err)
			return true
		}
		if !ok {
			fmt.Println("mount refused: too few good blocks")
			return true
		}
		fmt.Printf("mounted cur_blk=%d cur_page=%d cur_id=%d\n", r.CurBlk(), r.CurPage(), r.CurID())
	case ".umount":
		r.Umount()
		fmt.Println("unmounted")
	case ".append":
		doAppend(ctx, r, strings.Join(args, " "))
	case ".stats":
		doStats(ctx, r)
	case ".total-good":
		good, err := r.TotalGood()
		if err != nil {
			fmt.Println("ERR:", err)
			return true
		}
		fmt.Println("total_good:", good)
	case ".read":
		doRead(ctx, r, args)
	case ".utc":
		doUTC(r, args)
	default:
		return false
	}
	return true
}

func printHelp() {
	fmt.Println(`commands:
  .mount                  mount the ring (mkfs on a blank device)
  .umount                 unmount the ring
  .append <text>          append text as one page's worth of data
  .stats                  print a full health scan
  .total-good             print the number of good blocks
  .read <block> <page>    print the spare header at (block, page)
  .utc <seconds>          set the UTC correction value
  .quit                   exit`)
}

func doAppend(ctx context.Context, r *ring.Ring, text string) {
	if text == "" {
		fmt.Println("ERR: .append needs text")
		return
	}
	if len(text) > *flagDataSize {
		fmt.Printf("ERR: text is %d bytes, a page holds %d\n", len(text), *flagDataSize)
		return
	}
	// Zero-pad to a full page; WritePage takes exactly one page of data.
	data := make([]byte, *flagDataSize)
	copy(data, text)
	if err := r.WritePage(ctx, data); err != nil {
		fmt.Println("ERR:", err)
		return
	}
	fmt.Printf("wrote cur_blk=%d cur_page=%d cur_id=%d\n", r.CurBlk(), r.CurPage(), r.CurID())
}

func doStats(ctx context.Context, r *ring.Ring) {
	rep, err := r.Scan(ctx)
	if err != nil {
		fmt.Println("ERR:", err)
		return
	}
	fmt.Printf("total_blocks=%d good_blocks=%d bad_blocks=%d wasted_pages=%d cur_blk=%d cur_page=%d\n",
		rep.TotalBlocks, rep.GoodBlocks, rep.BadBlocks, rep.WastedPages, rep.CurBlk, rep.CurPage)
}

func doRead(ctx context.Context, r *ring.Ring, args []string) {
	if len(args) != 2 {
		fmt.Println("ERR: .read needs <block> <page>")
		return
	}
	blk, err1 := strconv.Atoi(args[0])
	page, err2 := strconv.Atoi(args[1])
	if err1 != nil || err2 != nil {
		fmt.Println("ERR: block and page must be integers")
		return
	}
	h, res, err := r.ReadPageHeaderRaw(ctx, blk, page)
	if err != nil {
		fmt.Println("ERR:", err)
		return
	}
	if res.Wasted() {
		fmt.Println("wasted")
		return
	}
	id, _ := res.Valid()
	fmt.Printf("id=%d utc_correction=%d time_boot_us=%d ecc=%d\n", id, h.UTCCorrection, h.TimeBootUS, h.PageECC)
}

func doUTC(r *ring.Ring, args []string) {
	if len(args) != 1 {
		fmt.Println("ERR: .utc needs <seconds>")
		return
	}
	v, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		fmt.Println("ERR: not a uint32:", err)
		return
	}
	r.SetUTCCorrection(uint32(v))
	fmt.Println("ok")
}
