package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	S3client "github.com/zhengshuai-xiao/SplitterS/pkg/s3client"

	"github.com/zhengshuai-xiao/SplitterS/pkg/dedup"
)

// storeConfig builds a dedup.Config from command-line flags.
func storeConfig(c *cli.Context) *dedup.Config {
	conf := dedup.DefaultConfig()
	conf.Namespace = c.String("namespace")
	conf.CacheDir = c.String("cache-dir")
	conf.Compression = c.String("compression")
	conf.MinChunkSize = c.Int("min-chunk")
	conf.MaxChunkSize = c.Int("max-chunk")
	conf.AvgChunkBits = c.Uint("avg-bits")
	conf.CalcDigests = !c.Bool("no-digests")
	conf.FPCacheOn = !c.Bool("no-fpcache")
	return conf
}

// backendCredentials reads the object-store keys from the environment, the
// same variables the minio tooling uses.
func backendCredentials() (ak, sk string, err error) {
	ak = os.Getenv("MINIO_ROOT_USER")
	if ak == "" {
		ak = os.Getenv("MINIO_ACCESS_KEY")
	}
	sk = os.Getenv("MINIO_ROOT_PASSWORD")
	if sk == "" {
		sk = os.Getenv("MINIO_SECRET_KEY")
	}
	if ak == "" || sk == "" {
		return "", "", fmt.Errorf("MINIO_ROOT_USER and MINIO_ROOT_PASSWORD must be set for the %q backend", "s3")
	}
	return ak, sk, nil
}

func createBackend(ctx context.Context, c *cli.Context, conf *dedup.Config) (dedup.DataContainerBackend, error) {
	switch c.String("backend") {
	case "posix":
		return dedup.NewPOSIXBackend(conf.CacheDir), nil
	case "s3":
		ak, sk, err := backendCredentials()
		if err != nil {
			return nil, err
		}
		core, err := S3client.NewCore(c.String("backend-addr"), ak, sk, false)
		if err != nil {
			return nil, err
		}
		if err = S3client.EnsureBucket(ctx, core, conf.Namespace); err != nil {
			return nil, err
		}
		return dedup.NewS3Backend(core, conf.CacheDir), nil
	case "aws":
		ak, sk, err := backendCredentials()
		if err != nil {
			return nil, err
		}
		// The AWS SDK wants the scheme in the endpoint.
		endpoint := c.String("backend-addr")
		if endpoint != "" && endpoint[0] != 'h' {
			endpoint = "http://" + endpoint
		}
		return dedup.NewAWSBackend(ctx, endpoint, ak, sk, c.String("region"), conf.CacheDir)
	default:
		return nil, fmt.Errorf("unknown backend type %q", c.String("backend"))
	}
}

// createStore wires the MDS, the backend and the dedup store from flags.
func createStore(ctx context.Context, c *cli.Context) (*dedup.Store, error) {
	conf := storeConfig(c)

	mds, err := dedup.NewRedisMDS("redis", c.String("meta-addr"), conf)
	if err != nil {
		return nil, fmt.Errorf("failed to connect metadata service: %w", err)
	}

	backend, err := createBackend(ctx, c, conf)
	if err != nil {
		mds.Shutdown()
		return nil, err
	}

	store, err := dedup.NewStore(conf, mds, backend)
	if err != nil {
		mds.Shutdown()
		return nil, err
	}
	return store, nil
}
