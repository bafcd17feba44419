/*
Package redisstore provides an implementation of store.ModelStore that keeps
encoded models on a Redis database.
*/
package redisstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"gopkg.in/redis.v5"

	"github.com/pbanos/ptree"
	"github.com/pbanos/ptree/store"
)

// DefaultPrefix is the prefix for the keys of stored models.
const DefaultPrefix = "ptree:model"

type redisStore struct {
	rc     *redis.Client
	prefix string
	codec  store.Codec
}

// New builds a store.ModelStore backed by a redis DB
func New(rc *redis.Client, prefix string, codec store.Codec) store.ModelStore {
	return &redisStore{rc, prefix, codec}
}

/*
Options takes a redis URL like redis://:password@host:port/db and returns the
client options for it.
*/
func Options(rawurl string) (*redis.Options, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %v", err)
	}
	if u.Scheme != "redis" {
		return nil, fmt.Errorf("invalid redis url scheme %q", u.Scheme)
	}
	opts := &redis.Options{Addr: u.Host}
	if u.Port() == "" {
		opts.Addr = u.Host + ":6379"
	}
	if u.User != nil {
		opts.Password, _ = u.User.Password()
	}
	if db := strings.Trim(u.Path, "/"); db != "" {
		opts.DB, err = strconv.Atoi(db)
		if err != nil {
			return nil, fmt.Errorf("invalid redis database %q: %v", db, err)
		}
	}
	return opts, nil
}

/*
Open takes a context and a redis URL and returns a store.ModelStore on the
database it points to, encoding models with msgpack, or an error if the
database cannot be reached.
*/
func Open(ctx context.Context, rawurl string) (store.ModelStore, error) {
	opts, err := Options(rawurl)
	if err != nil {
		return nil, err
	}
	rc := redis.NewClient(opts)
	if err := rc.Ping().Err(); err != nil {
		rc.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %v", opts.Addr, err)
	}
	if err := ctx.Err(); err != nil {
		rc.Close()
		return nil, err
	}
	return New(rc, DefaultPrefix, store.Msgpack), nil
}

func (rs *redisStore) Create(ctx context.Context, m *ptree.Model) error {
	var ok bool
	for !ok {
		m.ID = store.NewID()
		data, err := rs.codec.Encode(m)
		if err != nil {
			return fmt.Errorf("creating model: encoding model: %v", err)
		}
		ok, err = rs.rc.SetNX(rs.keyFor(m.ID), data, 0).Result()
		if err != nil {
			return fmt.Errorf("creating model in redis: %v", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

func (rs *redisStore) Get(ctx context.Context, id string) (*ptree.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := rs.rc.Get(rs.keyFor(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("retrieving model %q: %v", id, err)
	}
	m, err := rs.codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("retrieving model %q: decoding: %v", id, err)
	}
	return m, nil
}

func (rs *redisStore) Store(ctx context.Context, m *ptree.Model) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	redisID := rs.keyFor(m.ID)
	data, err := rs.codec.Encode(m)
	if err != nil {
		return fmt.Errorf("storing model %q: encoding model: %v", redisID, err)
	}
	_, err = rs.rc.Set(redisID, data, 0).Result()
	if err != nil {
		return fmt.Errorf("storing model %q in redis: %v", redisID, err)
	}
	return nil
}

func (rs *redisStore) Delete(ctx context.Context, m *ptree.Model) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	redisID := rs.keyFor(m.ID)
	_, err := rs.rc.Del(redisID).Result()
	if err != nil {
		return fmt.Errorf("deleting model %q from redis: %v", redisID, err)
	}
	return nil
}

func (rs *redisStore) Close(ctx context.Context) error {
	return rs.rc.Close()
}

func (rs *redisStore) keyFor(id string) string {
	return fmt.Sprintf("%s:%s", rs.prefix, id)
}
