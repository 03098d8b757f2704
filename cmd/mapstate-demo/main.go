package main

import (
	"bytes"
	"fmt"
	"log/slog"
	"math/rand"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/faithfuldb/colstate/bitset"
	"github.com/faithfuldb/colstate/mapstate"
	"github.com/faithfuldb/colstate/ordinalstore"
	"github.com/faithfuldb/colstate/typewrite"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "mapstate-demo",
		Usage: "stage a synthetic Map type and run a snapshot/delta encode cycle",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "num-records",
				Value: 1000,
				Usage: "number of map records to stage in the initial cycle",
			},
			&cli.IntFlag{
				Name:  "num-added",
				Value: 100,
				Usage: "number of additional records staged before the delta cycle",
			},
			&cli.Int64Flag{
				Name:  "target-shard-bytes",
				Value: 16 << 10,
				Usage: "target maximum projected bytes per shard",
			},
			&cli.Float64Flag{
				Name:  "load-factor",
				Value: mapstate.DefaultLoadFactor,
				Usage: "hash table load factor",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("mapstate-demo failed", "error", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	numRecords := c.Int("num-records")
	numAdded := c.Int("num-added")
	loadFactor := c.Float64("load-factor")

	om := ordinalstore.New()
	prev := bitset.New(numRecords + numAdded)
	curr := bitset.New(numRecords + numAdded)

	rng := rand.New(rand.NewSource(1))
	for ord := 0; ord < numRecords; ord++ {
		om.PutRecord(ord, randomRecord(rng, ord))
		curr.Set(ord)
	}

	cfg := typewrite.Config{TargetMaxShardBytes: c.Int64("target-shard-bytes")}
	state := mapstate.New(cfg, "demo.Account", om, prev, curr)
	state.LoadFactor = loadFactor

	state.PrepareForWrite(true)
	slog.Info("snapshot cycle", "numRecords", numRecords, "numShards", state.NumShards)

	if err := state.CalculateSnapshot(); err != nil {
		return fmt.Errorf("calculate snapshot: %w", err)
	}
	var snapshot bytes.Buffer
	if err := state.WriteSnapshot(&snapshot); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	fmt.Printf("snapshot: %s across %d shard(s)\n", humanize.Bytes(uint64(snapshot.Len())), state.NumShards)

	snapshotPrev := curr
	curr = bitset.New(numRecords + numAdded)
	for ord := 0; ord < numRecords; ord++ {
		if snapshotPrev.Get(ord) {
			curr.Set(ord)
		}
	}
	for ord := numRecords; ord < numRecords+numAdded; ord++ {
		om.PutRecord(ord, randomRecord(rng, ord))
		curr.Set(ord)
	}

	state = mapstate.New(cfg, "demo.Account", om, snapshotPrev, curr)
	state.LoadFactor = loadFactor
	state.PrepareForWrite(true)
	slog.Info("delta cycle", "numAdded", numAdded, "numShards", state.NumShards)

	if err := state.CalculateDelta(snapshotPrev, curr, false); err != nil {
		return fmt.Errorf("calculate delta: %w", err)
	}
	var delta bytes.Buffer
	maxShardOrdinal := make([]int, state.NumShards)
	if err := state.WriteCalculatedDelta(&delta, false, maxShardOrdinal); err != nil {
		return fmt.Errorf("write delta: %w", err)
	}
	fmt.Printf("delta: %s across %d shard(s)\n", humanize.Bytes(uint64(delta.Len())), state.NumShards)

	return nil
}

// randomRecord builds a small synthetic map record of a pseudo-random size
// (1 to 4 entries) with keys and values ord*8+i, large enough to exercise
// more than one bucket per map.
func randomRecord(rng *rand.Rand, ord int) ordinalstore.Record {
	size := 1 + rng.Intn(4)
	entries := make([]ordinalstore.Entry, size)
	for i := range entries {
		entries[i] = ordinalstore.Entry{
			KeyOrdinal: uint64(ord*8 + i),
			ValueOrd:   uint32(ord*8 + i),
			BucketHint: uint32(i),
		}
	}
	return ordinalstore.Record{Size: size, Entries: entries}
}
