package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func cmdRestore() *cli.Command {
	return &cli.Command{
		Name:      "restore",
		Action:    restore,
		Category:  "STORE",
		Usage:     "Reassemble a stored object into a local file",
		ArgsUsage: "NAME FILE",
		Description: `
			Reads the object's manifest and rebuilds the original byte stream
			from its data containers.

			Examples:
			$ splitters restore vm-42 /tmp/disk.img`,
		Flags: expandFlags(chunkFlags(), storeFlags()),
	}
}

func restore(c *cli.Context) error {
	setupLogging(c)
	if c.Args().Len() != 2 {
		return fmt.Errorf("restore expects NAME and FILE arguments")
	}
	name := c.Args().Get(0)
	path := c.Args().Get(1)

	ctx := context.Background()
	store, err := createStore(ctx, c)
	if err != nil {
		return err
	}
	defer store.Shutdown()

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	if err = store.Restore(ctx, name, file); err != nil {
		os.Remove(path)
		return err
	}
	fmt.Printf("restored %s to %s\n", name, path)
	return nil
}
