package storage

import (
	"context"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// RedisDriver is a byte-store driver over redis, one hash per
// collection. Meant for deployments where session state should survive
// the device itself (e.g. fleet gateways).
type RedisDriver struct {
	client *redis.Client
}

// NewRedisDriver connects and pings the server.
func NewRedisDriver(cfg RedisConfig) (*RedisDriver, error) {
	client := redis.NewClient(
		&redis.Options{
			Addr:     cfg.Addr,
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		},
	)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &RedisDriver{client: client}, nil
}

func redisHash(collection string) string {
	return "beacon:" + collection
}

// Store implements Driver.
func (d *RedisDriver) Store(collection, key, data string) bool {
	if !validName(collection) || !validName(key) || data == "" {
		return false
	}
	err := d.client.HSet(context.Background(), redisHash(collection), key, data).Err()
	if err != nil {
		log.WithError(err).WithField("key", key).Error("redis: store failed")
		return false
	}
	return true
}

// Retrieve implements Driver.
func (d *RedisDriver) Retrieve(collection, key string) string {
	if !validName(collection) || !validName(key) {
		return ""
	}
	data, err := d.client.HGet(context.Background(), redisHash(collection), key).Result()
	if err != nil {
		return ""
	}
	return data
}

// Remove implements Driver.
func (d *RedisDriver) Remove(collection, key string) bool {
	if !validName(collection) || !validName(key) {
		return false
	}
	removed, err := d.client.HDel(context.Background(), redisHash(collection), key).Result()
	return err == nil && removed > 0
}

// ListKeys implements Driver.
func (d *RedisDriver) ListKeys(collection string) []string {
	if !validName(collection) {
		return nil
	}
	keys, err := d.client.HKeys(context.Background(), redisHash(collection)).Result()
	if err != nil {
		return nil
	}
	return keys
}

// Exists implements Driver.
func (d *RedisDriver) Exists(collection, key string) bool {
	if !validName(collection) || !validName(key) {
		return false
	}
	ok, err := d.client.HExists(context.Background(), redisHash(collection), key).Result()
	return err == nil && ok
}
