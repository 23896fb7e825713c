package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/coocood/freecache"
	"github.com/sirupsen/logrus"
)

// TieredCache combines a local in-memory cache with an optional remote redis cache.
type TieredCache struct {
	localCache  *freecache.Cache
	remoteCache RemoteCache
	logger      logrus.FieldLogger
}

type cachedValue struct {
	Version uint64          `json:"i"`
	Timeout uint64          `json:"t"`
	Value   json.RawMessage `json:"v"`
}

var ErrCacheMiss = errors.New("cache miss")

type RemoteCache interface {
	SetBytes(ctx context.Context, key string, value []byte, expiration time.Duration) error
	GetBytes(ctx context.Context, key string) ([]byte, error)
}

// NewTieredCache creates a cache with cacheSize MB of local memory. An empty redisAddress disables the remote tier.
func NewTieredCache(logger logrus.FieldLogger, cacheSize int, redisAddress string, redisPrefix string) (*TieredCache, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	var remoteCache RemoteCache
	if redisAddress != "" {
		var err error
		remoteCache, err = NewRedisCache(ctx, redisAddress, redisPrefix)
		if err != nil {
			logger.WithError(err).Errorf("error initializing remote redis cache. address: %v", redisAddress)
			return nil, err
		}
	}

	if cacheSize <= 0 {
		cacheSize = 16
	}

	return &TieredCache{
		remoteCache: remoteCache,
		localCache:  freecache.NewCache(cacheSize * 1024 * 1024),
		logger:      logger,
	}, nil
}

func (cache *TieredCache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	valueJson, err := json.Marshal(value)
	if err != nil {
		return err
	}

	cacheValue := cachedValue{
		Version: 1,
		Value:   valueJson,
	}
	if expiration > 0 {
		cacheValue.Timeout = uint64(time.Now().Add(expiration).Unix())
	}

	valueMarshal, err := json.Marshal(cacheValue)
	if err != nil {
		return err
	}

	err = cache.localCache.Set([]byte(key), valueMarshal, int(expiration.Seconds()))
	if err != nil {
		return err
	}
	if cache.remoteCache != nil {
		return cache.remoteCache.SetBytes(ctx, key, valueMarshal, expiration)
	}
	return nil
}

// Get decodes the cached value for key into returnValue. Returns ErrCacheMiss if the key is unknown in both tiers.
func (cache *TieredCache) Get(ctx context.Context, key string, returnValue any) error {
	cacheValue := &cachedValue{}

	wanted, err := cache.localCache.Get([]byte(key))
	if err == nil {
		err = json.Unmarshal(wanted, cacheValue)
		if err == nil {
			err = json.Unmarshal(cacheValue.Value, returnValue)
		}
		if err != nil {
			cache.logger.WithError(err).Warnf("error unmarshalling local cache data for key %v", key)
			cache.localCache.Del([]byte(key))
			return ErrCacheMiss
		}
		return nil
	}

	if cache.remoteCache == nil {
		return ErrCacheMiss
	}

	wanted, err = cache.remoteCache.GetBytes(ctx, key)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return ErrCacheMiss
		}
		return err
	}

	err = json.Unmarshal(wanted, cacheValue)
	if err == nil {
		err = json.Unmarshal(cacheValue.Value, returnValue)
	}
	if err != nil {
		cache.logger.WithError(err).Warnf("error unmarshalling remote cache data for key %v", key)
		return ErrCacheMiss
	}

	// copy to the local tier for the remaining lifetime
	if cacheValue.Timeout == 0 || cacheValue.Timeout > uint64(time.Now().Add(2*time.Second).Unix()) {
		var timeout uint64
		if cacheValue.Timeout > 0 {
			timeout = cacheValue.Timeout - uint64(time.Now().Unix())
		}
		cache.localCache.Set([]byte(key), wanted, int(timeout))
	}
	return nil
}
