// Command nandringd mounts a ring log and serves its diagnostics over
// gRPC, with a cron-scheduled health-snapshot job running alongside it.
// It stands in for a host process bound to a real NAND part over a
// serial/SPI bridge; here it mounts internal/nand.Sim instead, since no
// physical device is available in this repository.
package main

import (
	"context"
	"flag"
	"log"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"nandring/internal/housekeeping"
	"nandring/internal/nand"
	"nandring/internal/ring"
	"nandring/internal/telemetry"
)

var (
	flagConfig   = flag.String("config", "", "ring config YAML file (start_block, length); if empty, uses -blocks/-start/-len against a fresh simulated device")
	flagGRPC     = flag.String("grpc", ":9191", "gRPC listen address (empty to disable)")
	flagSchedule = flag.String("schedule", "*/5 * * * *", "cron schedule for the housekeeping health snapshot")
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
		log.Fatalf("nandringd: invalid ring config: %v", err)
	}

	r := ring.New(nand.NewSystemClock())
	if err := r.Start(cfg); err != nil {
		log.Fatalf("nandringd: start: %v", err)
	}

	sessionID := ring.NewSessionID()
	ok, err := r.Mount(context.Background())
	if err != nil {
		log.Fatalf("nandringd: mount: %v", err)
	}
	if !ok {
		log.Fatalf("nandringd: mount refused — too few good blocks")
	}
	log.Printf("nandringd: mounted session=%s cur_blk=%d cur_page=%d cur_id=%d",
		sessionID, r.CurBlk(), r.CurPage(), r.CurID())

	sched := housekeeping.NewScheduler(r)
	if err := sched.Start(*flagSchedule); err != nil {
		log.Fatalf("nandringd: scheduler: %v", err)
	}
	defer sched.Stop()

	if *flagGRPC == "" {
		select {}
	}

	encoding.RegisterCodec(telemetry.JSONCodec{})
	lis, err := net.Listen("tcp", *flagGRPC)
	if err != nil {
		log.Fatalf("nandringd: grpc listen: %v", err)
	}
	gs := grpc.NewServer()
	telemetry.RegisterRingServer(gs, telemetry.NewService(r))
	log.Printf("nandringd: gRPC listening on %s", *flagGRPC)
	if err := gs.Serve(lis); err != nil {
		log.Fatalf("nandringd: grpc serve: %v", err)
	}
}
