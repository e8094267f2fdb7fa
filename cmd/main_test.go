package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/urfave/cli/v2"
)

func testApp() *cli.App {
	return &cli.App{
		Name:  "splitters",
		Flags: globalFlags(),
		Commands: []*cli.Command{
			cmdSplit(),
			cmdBackup(),
		},
	}
}

func TestReorderOptions(t *testing.T) {
	app := testApp()

	// Global flags given after the command move ahead of it.
	args := reorderOptions(app, []string{"splitters", "split", "--loglevel", "trace", "file.img"})
	assert.Equal(t, []string{"splitters", "--loglevel", "trace", "split", "file.img"}, args)

	// Command flags stay with the command.
	args = reorderOptions(app, []string{"splitters", "split", "--avg-bits", "12", "file.img"})
	assert.Equal(t, []string{"splitters", "split", "--avg-bits", "12", "file.img"}, args)

	// No command at all.
	args = reorderOptions(app, []string{"splitters", "--loglevel", "debug"})
	assert.Equal(t, []string{"splitters", "--loglevel", "debug"}, args)

	// Unknown command is passed through untouched.
	args = reorderOptions(app, []string{"splitters", "frobnicate", "x"})
	assert.Equal(t, []string{"splitters", "frobnicate", "x"}, args)
}

func TestIsFlag(t *testing.T) {
	flags := []cli.Flag{
		&cli.StringFlag{Name: "loglevel"},
		&cli.BoolFlag{Name: "no-digests"},
	}

	ok, hasValue := isFlag(flags, "--loglevel")
	assert.True(t, ok)
	assert.True(t, hasValue)

	ok, hasValue = isFlag(flags, "--loglevel=info")
	assert.True(t, ok)
	assert.False(t, hasValue)

	ok, hasValue = isFlag(flags, "--no-digests")
	assert.True(t, ok)
	assert.False(t, hasValue)

	ok, _ = isFlag(flags, "positional")
	assert.False(t, ok)

	ok, _ = isFlag(flags, "--unknown")
	assert.False(t, ok)
}
