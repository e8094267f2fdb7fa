package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"
	"github.com/zhengshuai-xiao/SplitterS/internal"
)

func cmdBackup() *cli.Command {
	return &cli.Command{
		Name:      "backup",
		Action:    backup,
		Category:  "STORE",
		Usage:     "Deduplicate a local file into the store",
		ArgsUsage: "FILE [NAME]",
		Description: `
			Chunks FILE, deduplicates it against the namespace's fingerprint
			index and stores the new chunks in data containers. NAME defaults
			to the file's base name.

			Examples:
			$ splitters backup /var/backups/db.dump
			$ splitters backup --compression snappy /tmp/disk.img vm-42`,
		Flags: expandFlags(chunkFlags(), storeFlags()),
	}
}

func backup(c *cli.Context) error {
	setupLogging(c)
	if c.Args().Len() < 1 {
		return fmt.Errorf("backup expects a FILE argument")
	}
	path := c.Args().Get(0)
	name := c.Args().Get(1)
	if name == "" {
		name = filepath.Base(path)
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	ctx := context.Background()
	store, err := createStore(ctx, c)
	if err != nil {
		return err
	}
	defer store.Shutdown()

	cacheDir := c.String("cache-dir")
	if err := os.MkdirAll(cacheDir, 0750); err != nil {
		return fmt.Errorf("failed to create cache dir %s: %w", cacheDir, err)
	}
	if fi, err := file.Stat(); err == nil {
		if free, _, duErr := internal.DiskUsage(cacheDir); duErr == nil && free < uint64(fi.Size()) {
			logger.Warnf("free space in %s (%s) is below the input size (%s); backup may fail",
				cacheDir, internal.FormatBytes(free), internal.FormatBytes(uint64(fi.Size())))
		}
	}

	objInfo, err := store.Backup(ctx, name, file)
	if err != nil {
		return err
	}

	fmt.Printf("stored %s: %s, %d chunks\n", objInfo.Name, internal.FormatBytes(objInfo.Size), objInfo.Chunks)
	if objInfo.Checksum != "" {
		fmt.Printf("sha256: %s\n", objInfo.Checksum)
	}
	return nil
}
