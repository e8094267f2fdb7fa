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
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/zhengshuai-xiao/SplitterS/internal"
)

/*
Key layout (per redis DB, prefix DB$db):

	setting:      $prefix.setting       -> Format json
	FP index:     $ns:FPCache           -> { $fp -> $dcid }
	DCID counter: $ns:DataContainerID   -> integer
	Objects:      $ns:OBJ               -> { $name -> ObjectInfo json }

Redis features:

	Hash Set: 4.0+
	Transaction: 2.2+
	Scan: 2.8+
*/
const (
	fpCacheKeySuffix = ":FPCache"
	dcidKeySuffix    = ":DataContainerID"
	objKeySuffix     = ":OBJ"
)

type MDSRedis struct {
	Rdb    redis.UniversalClient
	prefix string //DB name
	format Format
}

// Format is the metadata-store level settings record, written once on
// first contact and read back afterwards.
type Format struct {
	Name        string
	UUID        string
	BlockSize   int
	Compression string
	MetaVersion int
}

// NewRedisMDS returns a metadata service backed by Redis.
// NewRedisMDS("redis", "127.0.0.1:6379/2", conf)
func NewRedisMDS(driver, addr string, conf *Config) (MDS, error) {
	uri := driver + "://" + addr
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("url parse %s: %s", uri, err)
	}

	hosts := u.Host
	opt, err := redis.ParseURL(u.String())
	if err != nil {
		return nil, fmt.Errorf("redis parse %s: %s", uri, err)
	}

	if opt.Password == "" {
		opt.Password = os.Getenv("REDIS_PASSWORD")
	}
	if opt.Password == "" {
		opt.Password = os.Getenv("META_PASSWORD")
	}
	opt.MaxRetries = conf.Retries
	if opt.MaxRetries == 0 {
		opt.MaxRetries = -1 // Redis use -1 to disable retries
	}
	var rdb redis.UniversalClient
	if strings.Contains(hosts, ",") && strings.Index(hosts, ",") < strings.Index(hosts, ":") {
		logger.Infof("redis %s is in sentinel mode, it is not implemented, so will use the first host", hosts)
		hosts, err = extractBetweenCommas(hosts)
		if err != nil {
			return nil, err
		}
	}
	if !strings.Contains(hosts, ",") {
		logger.Infof("redis host[%s] is in single service mode", hosts)
		c := redis.NewClient(opt)
		info, err := c.ClusterInfo(context.Background()).Result()
		if err != nil && strings.Contains(err.Error(), "cluster mode") || err == nil && strings.Contains(info, "cluster_state:") {
			logger.Infof("redis %s is in cluster mode", hosts)
		} else {
			logger.Infof("redis %s is in single mode", hosts)
		}
		rdb = c
	} else {
		logger.Fatalf("failed to find any valid host in redis hosts")
		return nil, errors.New("failed to find any valid host in redis hosts")
	}
	prefix := fmt.Sprintf("DB%d", opt.DB)
	m := MDSRedis{
		Rdb:    rdb,
		prefix: prefix,
	}
	m.checkServerConfig()
	if err = m.init(&m.format); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *MDSRedis) checkServerConfig() {
	rawInfo, err := m.Rdb.Info(context.Background()).Result()
	if err != nil {
		logger.Warnf("parse info: %s", err)
		return
	}
	rInfo, err := checkRedisInfo(rawInfo)
	if err != nil {
		logger.Warnf("parse info: %s", err)
	}
	if rInfo.storageProvider == "" && rInfo.maxMemoryPolicy != "" && rInfo.maxMemoryPolicy != "noeviction" {
		logger.Warnf("maxmemory_policy is %q,  we will try to reconfigure it to 'noeviction'.", rInfo.maxMemoryPolicy)
		if _, err := m.Rdb.ConfigSet(context.Background(), "maxmemory-policy", "noeviction").Result(); err != nil {
			logger.Errorf("try to reconfigure maxmemory-policy to 'noeviction' failed: %s", err)
		} else if result, err := m.Rdb.ConfigGet(context.Background(), "maxmemory-policy").Result(); err != nil {
			logger.Warnf("get config maxmemory-policy failed: %s", err)
		} else if len(result) == 1 && result["maxmemory-policy"] != "noeviction" {
			logger.Warnf("reconfigured maxmemory-policy to 'noeviction', but it's still %s", result["maxmemory-policy"])
		} else {
			logger.Infof("set maxmemory-policy to 'noeviction' successfully")
		}
	}
	start := time.Now()
	_, err = m.Rdb.Ping(context.Background()).Result()
	if err != nil {
		logger.Errorf("Ping redis: %s", err.Error())
		return
	}
	logger.Infof("Ping redis latency: %s", time.Since(start))
}

func extractBetweenCommas(s string) (string, error) {
	first := strings.Index(s, ",")

	second := strings.Index(s[first+1:], ",")

	second += first + 1

	return s[first+1 : second], nil
}

func (m *MDSRedis) Shutdown() error {
	return m.Rdb.Close()
}

func (m *MDSRedis) Name() string {
	return "redis"
}

func (m *MDSRedis) setting() string {
	return m.prefix + "setting"
}

func (m *MDSRedis) init(format *Format) error {
	ctx := context.Background()
	body, err := m.Rdb.Get(ctx, m.setting()).Bytes()
	if err != nil && err != redis.Nil {
		return err
	}
	if err == nil {
		if err = json.Unmarshal(body, format); err != nil {
			return errors.New("existing format is broken: " + err.Error())
		}
		return nil
	}

	// create new format
	*format = Format{
		Name:        "SplitterS",
		UUID:        uuid.New().String(),
		BlockSize:   4 * 1024 * 1024,
		Compression: "none",
		MetaVersion: 1,
	}
	jsonDataIndent, err := json.MarshalIndent(format, "", "  ")
	if err != nil {
		return err
	}
	return m.Rdb.Set(ctx, m.setting(), jsonDataIndent, 0).Err()
}

// GetFingerprintCache returns the redis key of a namespace's FP index.
func GetFingerprintCache(namespace string) string {
	return namespace + fpCacheKeySuffix
}

func getDCIDKey(namespace string) string {
	return namespace + dcidKeySuffix
}

func getObjKey(namespace string) string {
	return namespace + objKeySuffix
}

func (m *MDSRedis) GetIncreasedDCID() (uint64, error) {
	ctx := context.Background()
	id, err := m.Rdb.Incr(ctx, getDCIDKey(m.prefix)).Result()
	if err != nil {
		logger.Errorf("GetIncreasedDCID: failed to Incr: %s", err)
		return 0, err
	}
	return uint64(id), nil
}

func (m *MDSRedis) NewManifestID() (string, error) {
	return uuid.New().String(), nil
}

// LoadFPCache scans the entire fingerprint hash for a given namespace in Redis
// and returns it as an in-memory map. This is used to populate a local cache on startup.
func (m *MDSRedis) LoadFPCache(namespace string) (map[string]uint64, error) {
	fpMap := make(map[string]uint64)
	ctx := context.Background()
	fpCacheKey := GetFingerprintCache(namespace)

	// Use HSCAN to iterate over the keys without blocking the Redis server for too long.
	iter := m.Rdb.HScan(ctx, fpCacheKey, 0, "*", 1000).Iterator()
	for iter.Next(ctx) {
		// The iterator returns key, then value, in pairs.
		fp := iter.Val()
		if !iter.Next(ctx) {
			break // Should not happen with a valid HASH
		}
		dcidStr := iter.Val()

		dcid, err := strconv.ParseUint(dcidStr, 10, 64)
		if err != nil {
			logger.Warnf("Failed to parse DCID '%s' for FP '%s' from Redis, skipping: %v", dcidStr, fp, err)
			continue
		}
		fpMap[fp] = dcid
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	logger.Infof("Loaded %d fingerprints from namespace '%s' into local cache from Redis.", len(fpMap), namespace)
	return fpMap, nil
}

func (m *MDSRedis) DedupFPsBatch(namespace string, chunks []Chunk) error {
	ctx := context.Background()
	fpCache := GetFingerprintCache(namespace)
	// Use a WATCH transaction to ensure we get a consistent view of the
	// fingerprints. If the fingerprint cache is modified concurrently, the
	// transaction will fail and retry, preventing decisions based on stale data.
	err := m.Rdb.Watch(ctx, func(tx *redis.Tx) error {
		if len(chunks) == 0 {
			return nil
		}

		fps := make([]string, len(chunks))
		for i := range chunks {
			fps[i] = chunks[i].FP
		}

		// HMGet is more efficient for batch lookups.
		vals, err := tx.HMGet(ctx, fpCache, fps...).Result()
		if err != nil {
			// redis.Nil is not returned by HMGet. Instead, the slice contains nil for non-existent keys.
			return err
		}

		for i := range chunks {
			if vals[i] == nil {
				// Fingerprint not found in cache.
				chunks[i].Deduped = false
				continue
			}

			dcidStr, ok := vals[i].(string)
			if !ok || dcidStr == "" {
				logger.Warnf("DedupFPsBatch: unexpected or empty value for fp %s", internal.StringToHex(chunks[i].FP))
				chunks[i].Deduped = false
				continue
			}

			DCID, err := strconv.ParseUint(dcidStr, 10, 64)
			if err != nil {
				return fmt.Errorf("failed to parse DCID '%s' for fp %s: %w", dcidStr, internal.StringToHex(chunks[i].FP), err)
			}
			chunks[i].DCID = DCID
			chunks[i].Deduped = true
			logger.Tracef("DedupFPsBatch: found existing fp:%s in %s, DCID: %d", internal.StringToHex(chunks[i].FP), fpCache, DCID)
		}
		return nil
	}, fpCache)

	if err != nil {
		logger.Errorf("DedupFPsBatch: transaction failed for namespace %s: %v", namespace, err)
	}
	return err
}

func (m *MDSRedis) InsertFPsBatch(namespace string, chunks []ChunkInManifest) error {
	ctx := context.Background()
	fpCache := GetFingerprintCache(namespace)

	// Use a WATCH transaction to prevent race conditions with concurrent inserts.
	err := m.Rdb.Watch(ctx, func(tx *redis.Tx) error {
		if len(chunks) == 0 {
			return nil
		}
		pipe := tx.TxPipeline()
		for _, chunk := range chunks {
			pipe.HSet(ctx, fpCache, chunk.FP, strconv.FormatUint(chunk.DCID, 10))
			logger.Tracef("InsertFPsBatch: fp[%s], DCID:%d", internal.StringToHex(chunk.FP), chunk.DCID)
		}
		_, err := pipe.Exec(ctx)
		return err
	}, fpCache)

	if err != nil {
		logger.Errorf("InsertFPsBatch: transaction failed for namespace %s: %v", namespace, err)
	}
	return err
}

func (m *MDSRedis) PutObjectMeta(namespace string, object ObjectInfo) error {
	ctx := context.Background()
	jsondata, err := json.Marshal(object)
	if err != nil {
		return err
	}
	err = m.Rdb.HSet(ctx, getObjKey(namespace), object.Name, jsondata).Err()
	if err != nil {
		logger.Errorf("MDSRedis::failed to HSet object[%s] into namespace[%s] : %s", object.Name, namespace, err)
		return err
	}
	logger.Tracef("MDSRedis::PutObjectMeta[%s] %s", object.Name, jsondata)
	return nil
}

func (m *MDSRedis) GetObjectMeta(namespace string, name string) (ObjectInfo, error) {
	var objInfo ObjectInfo
	ctx := context.Background()
	val, err := m.Rdb.HGet(ctx, getObjKey(namespace), name).Result()
	if err == redis.Nil {
		return objInfo, internal.ErrObjectNotFound
	}
	if err != nil {
		logger.Errorf("MDSRedis::failed to HGet object[%s] in namespace[%s]: %s", name, namespace, err)
		return objInfo, err
	}
	if err = json.Unmarshal([]byte(val), &objInfo); err != nil {
		logger.Errorf("MDSRedis::failed to unmarshal object info [%s]: %s", name, err)
		return objInfo, err
	}
	return objInfo, nil
}

func (m *MDSRedis) ListObjects(namespace string, prefix string) (result []ObjectInfo, err error) {
	ctx := context.Background()
	objects, err := m.Rdb.HGetAll(ctx, getObjKey(namespace)).Result()
	if err != nil {
		logger.Errorf("failed to HGetAll namespace: %s, err: %s", namespace, err)
		return nil, err
	}

	for key, value := range objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		var objectInfo ObjectInfo
		if err := json.Unmarshal([]byte(value), &objectInfo); err != nil {
			logger.Errorf("failed to unmarshal object info [key:%s], err: %s", key, err)
			continue
		}
		result = append(result, objectInfo)
	}

	return result, nil
}

func (m *MDSRedis) DelObjectMeta(namespace string, name string) error {
	ctx := context.Background()
	n, err := m.Rdb.HDel(ctx, getObjKey(namespace), name).Result()
	if err != nil {
		logger.Errorf("MDSRedis::failed to HDel object[%s] in namespace[%s]: %s", name, namespace, err)
		return err
	}
	if n == 0 {
		return internal.ErrObjectNotFound
	}
	logger.Tracef("MDSRedis::successfully DelObjectMeta[%s]", name)
	return nil
}
