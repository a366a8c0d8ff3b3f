package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"curator/internal/fingerprint"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each document as a JSON string and maintains set indexes
// per kind and per (kind, link), plus a creation-time ZSET per kind for
// ordered reads.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "curator"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) docKey(id string) string {
	return fmt.Sprintf("%s:doc:%s", s.prefix, id)
}

func (s *RedisStore) kindKey(kind string) string {
	return fmt.Sprintf("%s:kind:%s", s.prefix, kind)
}

func (s *RedisStore) createdKey(kind string) string {
	return fmt.Sprintf("%s:created:%s", s.prefix, kind)
}

// createdScore has microsecond resolution, which float64 holds exactly.
func createdScore(doc Document) float64 {
	return float64(doc.CreatedAt.UnixMicro())
}

// linkKey hashes the link so arbitrary URLs give bounded key sizes.
func (s *RedisStore) linkKey(kind, link string) string {
	return fmt.Sprintf("%s:link:%s:%s", s.prefix, kind, fingerprint.Of(link))
}

func (s *RedisStore) Create(ctx context.Context, doc Document) error {
	created, err := s.put(ctx, doc)
	if err != nil {
		return err
	}
	if !created {
		return fmt.Errorf("create %s: %w", doc.ID, ErrConflict)
	}
	return nil
}

func (s *RedisStore) CreateIfAbsent(ctx context.Context, doc Document) (bool, error) {
	return s.put(ctx, doc)
}

// put writes doc and its index entries in one MULTI block guarded by WATCH,
// so a concurrent writer of the same id makes this call a no-op.
func (s *RedisStore) put(ctx context.Context, doc Document) (bool, error) {
	if err := validate(doc); err != nil {
		return false, err
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return false, err
	}
	key := s.docKey(doc.ID)
	created := false
	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, b, 0)
			p.SAdd(ctx, s.kindKey(doc.Kind), doc.ID)
			p.ZAdd(ctx, s.createdKey(doc.Kind), redis.Z{Score: createdScore(doc), Member: doc.ID})
			if doc.Link != "" {
				p.SAdd(ctx, s.linkKey(doc.Kind, doc.Link), doc.ID)
			}
			return nil
		})
		if err == nil {
			created = true
		}
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return created, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (Document, error) {
	b, err := s.rdb.Get(ctx, s.docKey(id)).Bytes()
	if err == redis.Nil {
		return Document{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Document{}, err
	}
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return Document{}, fmt.Errorf("decode %s: %w", id, err)
	}
	return doc, nil
}

func (s *RedisStore) ids(ctx context.Context, f Filter) ([]string, error) {
	if len(f.Kinds) == 0 {
		return nil, errors.New("docstore: filter without kinds")
	}
	keys := make([]string, 0, len(f.Kinds))
	for _, k := range f.Kinds {
		if f.Link != "" {
			keys = append(keys, s.linkKey(k, f.Link))
		} else {
			keys = append(keys, s.kindKey(k))
		}
	}
	return s.rdb.SUnion(ctx, keys...).Result()
}

// orderedIDs reads at most f.Limit ids per kind from the creation ZSETs.
func (s *RedisStore) orderedIDs(ctx context.Context, f Filter) ([]string, error) {
	if len(f.Kinds) == 0 {
		return nil, errors.New("docstore: filter without kinds")
	}
	var out []string
	for _, k := range f.Kinds {
		var (
			ids []string
			err error
		)
		if f.Newest {
			ids, err = s.rdb.ZRevRange(ctx, s.createdKey(k), 0, int64(f.Limit-1)).Result()
		} else {
			ids, err = s.rdb.ZRange(ctx, s.createdKey(k), 0, int64(f.Limit-1)).Result()
		}
		if err != nil {
			return nil, err
		}
		out = append(out, ids...)
	}
	return out, nil
}

func (s *RedisStore) Query(ctx context.Context, f Filter) ([]Document, error) {
	var (
		ids []string
		err error
	)
	if f.Limit > 0 && f.Link == "" {
		ids, err = s.orderedIDs(ctx, f)
	} else {
		ids, err = s.ids(ctx, f)
	}
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	sort.Strings(ids)
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.docKey(id)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Document, 0, len(vals))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			// index entry without a document; skip it
			continue
		}
		var doc Document
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			slog.Warn("docstore: skipping undecodable document", "id", ids[i], "error", err)
			continue
		}
		out = append(out, doc)
	}
	return limitDocs(out, f), nil
}

func (s *RedisStore) Count(ctx context.Context, f Filter) (int, error) {
	ids, err := s.ids(ctx, f)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	doc, err := s.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, s.docKey(id))
		p.SRem(ctx, s.kindKey(doc.Kind), id)
		p.ZRem(ctx, s.createdKey(doc.Kind), id)
		if doc.Link != "" {
			p.SRem(ctx, s.linkKey(doc.Kind, doc.Link), id)
		}
		return nil
	})
	return err
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
