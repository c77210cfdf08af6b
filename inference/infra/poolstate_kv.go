package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"inference-gateway/inference/domain"
)

const poolStateKey = "pool:state"

// poolStateDoc é o formato persistido do agregado:
//
//	{ "currentIndex": 0, "cooldowns": {"<cred>": <unix ms>}, "permanentFails": ["<cred>"] }
type poolStateDoc struct {
	CurrentIndex   int              `json:"currentIndex"`
	Cooldowns      map[string]int64 `json:"cooldowns"`
	PermanentFails []string         `json:"permanentFails"`
}

// KVPoolStateStore implementa domain.PoolStateStore gravando o agregado
// inteiro numa única chave do KV, sem expiração.
type KVPoolStateStore struct {
	KV  domain.KVStore
	Key string
}

func NewKVPoolStateStore(kv domain.KVStore) *KVPoolStateStore {
	return &KVPoolStateStore{KV: kv, Key: poolStateKey}
}

func (s *KVPoolStateStore) Load(ctx context.Context) (domain.PoolState, error) {
	raw, ok, err := s.KV.Get(ctx, s.Key)
	if err != nil {
		return domain.PoolState{}, fmt.Errorf("load pool state: %w", err)
	}
	if !ok {
		return domain.NewPoolState(), nil
	}
	var doc poolStateDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.PoolState{}, fmt.Errorf("decode pool state: %w", err)
	}
	return fromDoc(doc), nil
}

func (s *KVPoolStateStore) Save(ctx context.Context, st domain.PoolState) error {
	b, err := json.Marshal(toDoc(st))
	if err != nil {
		return fmt.Errorf("encode pool state: %w", err)
	}
	if err := s.KV.Put(ctx, s.Key, b, 0); err != nil {
		return fmt.Errorf("save pool state: %w", err)
	}
	return nil
}

func toDoc(st domain.PoolState) poolStateDoc {
	doc := poolStateDoc{
		CurrentIndex:   st.CurrentIndex,
		Cooldowns:      make(map[string]int64, len(st.Cooldowns)),
		PermanentFails: make([]string, 0, len(st.PermanentFails)),
	}
	for c, until := range st.Cooldowns {
		doc.Cooldowns[string(c)] = until.UnixMilli()
	}
	for c := range st.PermanentFails {
		doc.PermanentFails = append(doc.PermanentFails, string(c))
	}
	sort.Strings(doc.PermanentFails)
	return doc
}

func fromDoc(doc poolStateDoc) domain.PoolState {
	st := domain.NewPoolState()
	st.CurrentIndex = doc.CurrentIndex
	for c, ms := range doc.Cooldowns {
		st.Cooldowns[domain.Credential(c)] = time.UnixMilli(ms)
	}
	for _, c := range doc.PermanentFails {
		st.PermanentFails[domain.Credential(c)] = struct{}{}
	}
	return st
}
