package cmd

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"github.com/zhengshuai-xiao/SplitterS/internal"
	"github.com/zhengshuai-xiao/SplitterS/pkg/dedup"
)

func cmdSplit() *cli.Command {
	return &cli.Command{
		Name:      "split",
		Action:    split,
		Category:  "TOOL",
		Usage:     "Chunk a local file and print the cut points",
		ArgsUsage: "FILE",
		Description: `
			Runs the content-defined chunker over a file without touching any
			store, printing one line per chunk plus the whole-stream digests.

			Examples:
			$ splitters split --avg-bits 13 /tmp/disk.img`,
		Flags: expandFlags(chunkFlags(), []cli.Flag{
			&cli.BoolFlag{
				Name:  "fp",
				Usage: "also print the SHA256 fingerprint of every chunk",
			},
		}),
	}
}

func split(c *cli.Context) error {
	setupLogging(c)
	if c.Args().Len() != 1 {
		return fmt.Errorf("split expects exactly one FILE argument")
	}
	path := c.Args().Get(0)
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	cdc := &dedup.RabinCDC{
		MinChunkSize: c.Int("min-chunk"),
		MaxChunkSize: c.Int("max-chunk"),
		AvgChunkBits: c.Uint("avg-bits"),
		CalcDigests:  !c.Bool("no-digests"),
	}
	chunker, err := cdc.NewChunker(file)
	if err != nil {
		return err
	}

	start := time.Now()
	var total uint64
	var count int
	for {
		chunk, err := chunker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if c.Bool("fp") {
			dedup.CalcFP(&chunk)
			fmt.Printf("%12d %10d %s\n", chunk.Off, chunk.Len, internal.StringToHex(chunk.FP))
		} else {
			fmt.Printf("%12d %10d\n", chunk.Off, chunk.Len)
		}
		total += chunk.Len
		count++
	}

	fmt.Printf("%d chunks, %s, elapsed %s\n", count, internal.FormatBytes(total), time.Since(start))
	if dc, ok := chunker.(dedup.DigestChunker); ok {
		md5Sum, sha256Sum := dc.Sums()
		if md5Sum != nil {
			fmt.Printf("md5:    %s\n", hex.EncodeToString(md5Sum))
		}
		if sha256Sum != nil {
			fmt.Printf("sha256: %s\n", hex.EncodeToString(sha256Sum))
		}
	}
	return nil
}
