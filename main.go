package main

import (
	"os"

	"github.com/zhengshuai-xiao/SplitterS/cmd"
	"github.com/zhengshuai-xiao/SplitterS/internal"
)

var logger = internal.GetLogger("splitters_main")

func main() {
	if err := cmd.Main(os.Args); err != nil {
		logger.Fatal(err)
	}
}
