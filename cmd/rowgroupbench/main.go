// Copyright (C) 2024 Darrenzzy, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Command rowgroupbench drives a rowgroup.Grouper over a synthetic
// workload described by a YAML file, for local benchmarking. It is not
// part of the rowgroup library's public API.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"sigs.k8s.io/yaml"

	"github.com/Darrenzzy/rowgroup"
	"github.com/Darrenzzy/rowgroup/internal/keyrow"
	"github.com/Darrenzzy/rowgroup/internal/pool"
)

// arenaPages sizes the benchmark's MemoryPool generously relative to one
// workload batch, so a batch's worth of row buffers and row-table growth
// stay arena-backed instead of falling back to the heap mid-run.
const arenaPages = 256

// columnSpec describes one key column of the synthetic schema.
type columnSpec struct {
	Name      string `json:"name"`
	Type      string `json:"type"` // "bool", "fixed", "dictionary", "binary", "largebinary", "null"
	ByteWidth int    `json:"byteWidth,omitempty"`
	Nullable  bool   `json:"nullable,omitempty"`
}

// workloadSpec describes the synthetic batch stream to feed the grouper.
type workloadSpec struct {
	BatchCount  int `json:"batchCount"`
	BatchSize   int `json:"batchSize"`
	Cardinality int `json:"cardinality"`
}

// benchConfig is the top-level YAML document rowgroupbench reads.
type benchConfig struct {
	Schema   []columnSpec `json:"schema"`
	Workload workloadSpec `json:"workload"`
}

func exitf(f string, args ...any) {
	fmt.Fprintf(os.Stderr, f+"\n", args...)
	os.Exit(1)
}

func loadConfig(path string) (*benchConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg benchConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(cfg.Schema) == 0 {
		return nil, fmt.Errorf("%s: schema must name at least one column", path)
	}
	return &cfg, nil
}

func keyTypeOf(c columnSpec) (rowgroup.KeyType, error) {
	switch c.Type {
	case "null":
		return rowgroup.KeyType{Kind: rowgroup.KindNull, Nullable: c.Nullable}, nil
	case "bool":
		return rowgroup.KeyType{Kind: rowgroup.KindBool, Nullable: c.Nullable}, nil
	case "fixed":
		w := c.ByteWidth
		if w == 0 {
			w = 4
		}
		return rowgroup.KeyType{Kind: rowgroup.KindFixedWidth, ByteWidth: w, Nullable: c.Nullable}, nil
	case "dictionary":
		w := c.ByteWidth
		if w == 0 {
			w = 4
		}
		return rowgroup.KeyType{Kind: rowgroup.KindDictionary, ByteWidth: w, Nullable: c.Nullable}, nil
	case "binary":
		return rowgroup.KeyType{Kind: rowgroup.KindBinary, Nullable: c.Nullable}, nil
	case "largebinary":
		return rowgroup.KeyType{Kind: rowgroup.KindLargeBinary, Nullable: c.Nullable}, nil
	default:
		return rowgroup.KeyType{}, fmt.Errorf("unrecognized column type %q", c.Type)
	}
}

// randomBatch builds one synthetic batch of keyTypes with batchSize rows
// drawn from [0, cardinality), using rng for key selection; fixed-width
// and dictionary columns get the drawn value as a ByteWidth-byte
// little-endian payload.
func randomBatch(keyTypes []rowgroup.KeyType, batchSize, cardinality int, rng *rand.Rand) rowgroup.SliceBatch {
	cols := make([]rowgroup.ColumnView, len(keyTypes))
	for ci, t := range keyTypes {
		t := t
		cols[ci] = rowgroup.NewSliceColumn(t, batchSize, nil, func(i int) []byte {
			v := rng.Intn(cardinality)
			switch t.Kind {
			case rowgroup.KindBool:
				if v%2 == 0 {
					return []byte{0}
				}
				return []byte{1}
			case rowgroup.KindFixedWidth, rowgroup.KindDictionary:
				buf := make([]byte, t.ByteWidth)
				for b := 0; b < t.ByteWidth && b < 8; b++ {
					buf[b] = byte(v >> (8 * b))
				}
				return buf
			case rowgroup.KindBinary, rowgroup.KindLargeBinary:
				return []byte(fmt.Sprintf("key-%d", v))
			default:
				return nil
			}
		})
	}
	return rowgroup.SliceBatch{Cols: cols, N: batchSize}
}

func main() {
	cfgPath := flag.String("c", "", "path to workload YAML config")
	flag.Parse()
	if *cfgPath == "" {
		exitf("usage: rowgroupbench -c <config.yaml>")
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		exitf("%s", err)
	}

	keyTypes := make([]rowgroup.KeyType, len(cfg.Schema))
	for i, c := range cfg.Schema {
		kt, err := keyTypeOf(c)
		if err != nil {
			exitf("schema column %d (%s): %s", i, c.Name, err)
		}
		keyTypes[i] = kt
	}

	arena := pool.NewArena(arenaPages)
	g, err := rowgroup.NewGrouper(keyTypes, arena, keyrow.HostCPUInfo{})
	if err != nil {
		exitf("constructing grouper: %s", err)
	}
	log.Printf("rowgroupbench: grouper %s ready for %d key columns", g.ID(), len(keyTypes))

	rng := rand.New(rand.NewSource(1))
	start := time.Now()
	var totalRows int
	for b := 0; b < cfg.Workload.BatchCount; b++ {
		batch := randomBatch(keyTypes, cfg.Workload.BatchSize, cfg.Workload.Cardinality, rng)
		ids, err := g.Consume(batch, 0, batch.N)
		if err != nil {
			exitf("consume batch %d: %s", b, err)
		}
		totalRows += len(ids)
	}
	elapsed := time.Since(start)

	log.Printf("rowgroupbench: consumed %d rows across %d batches in %s (%d distinct groups)",
		totalRows, cfg.Workload.BatchCount, elapsed, g.NumGroups())
}
