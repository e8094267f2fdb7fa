package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"github.com/zhengshuai-xiao/SplitterS/internal"
)

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "loglevel",
			Usage: "log level: trace/debug/info/warn/error",
			Value: "info",
		},
		&cli.StringFlag{
			Name:  "logdir",
			Usage: "write logs to a rotated file under this directory instead of stderr",
			Value: "",
		},
	}
}

// chunkFlags tune the content-defined chunker.
func chunkFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "min-chunk",
			Value: 3 * 1024,
			Usage: "minimum chunk size in bytes",
		},
		&cli.IntFlag{
			Name:  "max-chunk",
			Value: 64 * 1024,
			Usage: "maximum chunk size in bytes",
		},
		&cli.UintFlag{
			Name:  "avg-bits",
			Value: 13,
			Usage: "boundary mask width; average chunk size is about 2^avg-bits bytes",
		},
		&cli.BoolFlag{
			Name:  "no-digests",
			Usage: "skip whole-stream MD5/SHA256 while chunking",
		},
	}
}

// storeFlags configure the metadata service and the container backend.
func storeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "meta-addr",
			Value: "127.0.0.1:6379/1",
			Usage: "the address of the metadata storage",
		},
		&cli.StringFlag{
			Name:  "namespace",
			Value: "default",
			Usage: "dedup namespace; fingerprints are shared within one namespace",
		},
		&cli.StringFlag{
			Name:  "cache-dir",
			Value: "/var/splitters/cache",
			Usage: "local staging area for data containers and manifests",
		},
		&cli.StringFlag{
			Name:  "compression",
			Value: "none",
			Usage: "compress chunk data with the specified algorithm: none/snappy/zlib",
		},
		&cli.StringFlag{
			Name:  "backend",
			Value: "posix",
			Usage: "data container backend type: posix/s3/aws",
		},
		&cli.StringFlag{
			Name:  "backend-addr",
			Value: "127.0.0.1:9000",
			Usage: "the address of the s3/aws backend storage",
		},
		&cli.StringFlag{
			Name:  "region",
			Value: "us-east-1",
			Usage: "signing region for the aws backend",
		},
		&cli.BoolFlag{
			Name:  "no-fpcache",
			Usage: "do not warm the local fingerprint cache from the metadata service",
		},
	}
}

func expandFlags(groups ...[]cli.Flag) []cli.Flag {
	var out []cli.Flag
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func setupLogging(c *cli.Context) {
	if logDir := c.String("logdir"); logDir != "" {
		internal.SetOutFile(logDir + "/splitters.log")
	}
	switch c.String("loglevel") {
	case "trace":
		internal.SetLogLevel(logrus.TraceLevel)
	case "debug":
		internal.SetLogLevel(logrus.DebugLevel)
	case "info":
		internal.SetLogLevel(logrus.InfoLevel)
	case "warn":
		internal.SetLogLevel(logrus.WarnLevel)
	case "error":
		internal.SetLogLevel(logrus.ErrorLevel)
	default:
		internal.SetLogLevel(logrus.InfoLevel)
	}
}
