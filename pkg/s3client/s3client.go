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
package S3client

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// NewCore builds a low-level minio client for an S3-compatible endpoint.
func NewCore(endpoint, accessKey, secretKey string, useSSL bool) (*miniogo.Core, error) {
	core, err := miniogo.NewCore(endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client for %s: %w", endpoint, err)
	}
	return core, nil
}

// EnsureBucket creates the bucket if it does not exist yet.
func EnsureBucket(ctx context.Context, core *miniogo.Core, bucket string) error {
	exists, err := core.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}
	if exists {
		return nil
	}
	return core.MakeBucket(ctx, bucket, miniogo.MakeBucketOptions{})
}

// UploadFile uploads a local file, passing precomputed MD5/SHA256 so the
// server can verify the payload.
func UploadFile(ctx context.Context, core *miniogo.Core, bucket, object, localFilePath string) (miniogo.UploadInfo, error) {
	file, err := os.Open(localFilePath)
	if err != nil {
		return miniogo.UploadInfo{}, fmt.Errorf("failed to open file[%s]: %w", localFilePath, err)
	}
	defer file.Close()

	fileInfo, err := file.Stat()
	if err != nil {
		return miniogo.UploadInfo{}, fmt.Errorf("failed to stat file[%s]: %w", localFilePath, err)
	}
	fileSize := fileInfo.Size()

	md5Hash, sha256Hash, err := calculateFileHashes(file)
	if err != nil {
		return miniogo.UploadInfo{}, fmt.Errorf("failed to calc hash: %w", err)
	}

	if _, err := file.Seek(0, 0); err != nil {
		return miniogo.UploadInfo{}, fmt.Errorf("failed to reset file pointer: %w", err)
	}

	opts := miniogo.PutObjectOptions{
		ContentType: "application/octet-stream",
	}

	uploadInfo, err := core.PutObject(
		ctx,
		bucket,
		object,
		file,
		fileSize,
		md5Hash,
		sha256Hash,
		opts,
	)
	if err != nil {
		return miniogo.UploadInfo{}, fmt.Errorf("failed to upload file[%s]: %w", localFilePath, err)
	}

	return uploadInfo, nil
}

func calculateFileHashes(file *os.File) (md5Base64 string, sha256Hex string, err error) {
	md5Hasher := md5.New()
	sha256Hasher := sha256.New()

	multiWriter := io.MultiWriter(md5Hasher, sha256Hasher)
	if _, err := io.Copy(multiWriter, file); err != nil {
		return "", "", err
	}

	return base64.StdEncoding.EncodeToString(md5Hasher.Sum(nil)),
		hex.EncodeToString(sha256Hasher.Sum(nil)), nil
}
