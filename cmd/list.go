package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/urfave/cli/v2"
	"github.com/zhengshuai-xiao/SplitterS/internal"
)

func cmdList() *cli.Command {
	return &cli.Command{
		Name:      "list",
		Action:    list,
		Category:  "STORE",
		Usage:     "List stored objects",
		ArgsUsage: "[PREFIX]",
		Description: `
			Prints the objects recorded in the namespace, optionally filtered
			by a name prefix.

			Examples:
			$ splitters list
			$ splitters list db/`,
		Flags: storeFlags(),
	}
}

func list(c *cli.Context) error {
	setupLogging(c)
	prefix := c.Args().Get(0)

	ctx := context.Background()
	store, err := createStore(ctx, c)
	if err != nil {
		return err
	}
	defer store.Shutdown()

	objs, err := store.List(ctx, prefix)
	if err != nil {
		return err
	}
	sort.Slice(objs, func(i, j int) bool { return objs[i].Name < objs[j].Name })

	for _, obj := range objs {
		fmt.Printf("%-40s %16s %8d chunks  %s\n",
			obj.Name, internal.FormatBytes(obj.Size), obj.Chunks, obj.Created.Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("%d objects\n", len(objs))
	return nil
}
