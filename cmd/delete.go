package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"
)

func cmdDelete() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Action:    del,
		Category:  "STORE",
		Usage:     "Remove a stored object's record and manifest",
		ArgsUsage: "NAME",
		Description: `
			Drops the object's metadata and manifest. Data containers are not
			collected; their chunks may be shared with other objects.

			Examples:
			$ splitters delete vm-42`,
		Flags: storeFlags(),
	}
}

func del(c *cli.Context) error {
	setupLogging(c)
	if c.Args().Len() != 1 {
		return fmt.Errorf("delete expects a NAME argument")
	}
	name := c.Args().Get(0)

	ctx := context.Background()
	store, err := createStore(ctx, c)
	if err != nil {
		return err
	}
	defer store.Shutdown()

	if err = store.Delete(ctx, name); err != nil {
		return err
	}
	fmt.Printf("deleted %s\n", name)
	return nil
}
