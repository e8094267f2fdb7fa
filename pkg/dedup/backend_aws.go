// Copyright 2025 zhengshuai.xiao@outlook.com
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
package dedup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// AWSBackend implements DataContainerBackend on the AWS SDK v2 client. The
// SDK signs PutObject bodies, so uploads are staged to a seekable temp file
// before the actual PutObject call in Wait.
type AWSBackend struct {
	dcCachePath string
	client      *s3.Client
}

// NewAWSBackend builds an s3.Client against endpoint. The endpoint must
// carry its scheme (http://host:port), unlike the minio client.
func NewAWSBackend(ctx context.Context, endpoint, accessKey, secretKey, region, cacheDir string) (*AWSBackend, error) {
	cfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithCredentialsProvider(awscreds.NewStaticCredentialsProvider(accessKey, secretKey, "")),
		awsconfig.WithRegion(region),
		awsconfig.WithEndpointResolverWithOptions(
			aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				if service == s3.ServiceID {
					return aws.Endpoint{
						URL:           endpoint,
						SigningRegion: region,
					}, nil
				}
				return aws.Endpoint{}, fmt.Errorf("unknown endpoint requested")
			}),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %v", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	return &AWSBackend{dcCachePath: cacheDir, client: client}, nil
}

// AWSFileUploader stages the container in a temp file, then puts it in Wait.
type AWSFileUploader struct {
	ctx    context.Context
	client *s3.Client
	bucket string
	key    string
	tmp    *os.File
}

func (u *AWSFileUploader) GetWriter() io.WriteCloser {
	return u.tmp
}

func (u *AWSFileUploader) Wait() error {
	defer os.Remove(u.tmp.Name())

	body, err := os.Open(u.tmp.Name())
	if err != nil {
		return fmt.Errorf("failed to reopen staged container %s: %w", u.tmp.Name(), err)
	}
	defer body.Close()

	_, err = u.client.PutObject(u.ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(u.key),
		Body:   body,
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", u.key, err)
	}
	return nil
}

func (a *AWSBackend) getKey(dcid uint64) string {
	dcName := GetDCName(dcid)
	parentDirID := dcid / 1024
	return fmt.Sprintf("%d/%s", parentDirID, dcName)
}

// GetUploader stages writes into a temp file under the cache dir.
func (a *AWSBackend) GetUploader(ctx context.Context, bucket string, dcid uint64) (DataContainerUploader, string, string, error) {
	key := a.getKey(dcid)
	if err := os.MkdirAll(a.dcCachePath, 0755); err != nil {
		return nil, "", "", fmt.Errorf("failed to create cache directory %s: %w", a.dcCachePath, err)
	}
	tmp, err := os.CreateTemp(a.dcCachePath, GetDCName(dcid)+".*")
	if err != nil {
		return nil, "", "", err
	}
	return &AWSFileUploader{
		ctx:    ctx,
		client: a.client,
		bucket: bucket,
		key:    key,
		tmp:    tmp,
	}, tmp.Name(), key, nil
}

// Download fetches the container to the local cache.
func (a *AWSBackend) Download(ctx context.Context, bucket string, dcid uint64) (string, error) {
	key := a.getKey(dcid)
	dcName := GetDCName(dcid)
	parentDirID := dcid / 1024
	localPath := filepath.Join(a.dcCachePath, fmt.Sprintf("%d", parentDirID), dcName)

	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create data container cache directory %s: %w", filepath.Dir(localPath), err)
	}

	resp, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer resp.Body.Close()

	outFile, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to create local file %s: %w", localPath, err)
	}
	defer outFile.Close()

	if _, err = io.Copy(outFile, resp.Body); err != nil {
		return "", fmt.Errorf("failed to copy object %s to local disk: %w", key, err)
	}
	return localPath, nil
}

// Delete removes the container from the bucket and the local cache.
func (a *AWSBackend) Delete(ctx context.Context, bucket string, dcid uint64) error {
	key := a.getKey(dcid)
	_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return err
	}

	dcName := GetDCName(dcid)
	parentDirID := dcid / 1024
	localPath := filepath.Join(a.dcCachePath, fmt.Sprintf("%d", parentDirID), dcName)
	if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
		logger.Warnf("Failed to remove local cache file %s during AWS backend delete: %v", localPath, err)
	}
	return nil
}
