package store

// persistence.go implements SAVE/LOADDB against an embedded Badger database,
// resolving the on-disk format the original source left as a stub
// (resp_commands.rs's SAVE/LOADDB handlers are unimplemented). The teacher's
// examples/disk_eject/main.go uses Badger as an L2 eviction sink behind the
// same EjectCallback seam; here it is the primary durability store instead,
// keyed per database and shard so a LOADDB only has to scan one prefix.
//
// Envelope format, one Badger value per live key:
//
//	byte 0     kind tag: 0=Int, 1=Str, 2=Hash (high nibble reserved, 0 today)
//	bytes 1-8  remaining TTL in ms as of save time, big-endian int64, 0 = no TTL
//	remaining  kind payload: Int -> 8-byte BE int64
//	                          Str -> raw bytes
//	                          Hash -> repeated [4B BE flen][field][4B BE vlen][value]
//
// © 2025 rescache authors. MIT License.

import (
	"encoding/binary"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

const (
	envelopeKindInt  byte = 0
	envelopeKindStr  byte = 1
	envelopeKindHash byte = 2

	envelopeHeaderLen = 1 + 8
)

type persistence struct {
	db *badger.DB
}

func openPersistence(dir string) (*persistence, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger persistence dir %q: %w", dir, err)
	}
	return &persistence{db: db}, nil
}

func (p *persistence) close() error {
	return p.db.Close()
}

func dbKey(dbName string, shardIdx int, key []byte) []byte {
	out := make([]byte, 0, len(dbName)+1+4+len(key))
	out = append(out, dbName...)
	out = append(out, 0)
	out = binary.BigEndian.AppendUint32(out, uint32(shardIdx))
	out = append(out, key...)
	return out
}

func dbKeyPrefix(dbName string) []byte {
	return append([]byte(dbName), 0)
}

// encodeEnvelope serializes value and its remaining TTL as of save time (0
// for none) into the on-disk record format.
func encodeEnvelope(v ValueHolder, remainingTTLMs int64) ([]byte, error) {
	header := make([]byte, envelopeHeaderLen)
	binary.BigEndian.PutUint64(header[1:], uint64(remainingTTLMs))

	switch v.Kind() {
	case KindInt:
		header[0] = envelopeKindInt
		payload := make([]byte, 8)
		i, _ := v.AsInt()
		binary.BigEndian.PutUint64(payload, uint64(i))
		return append(header, payload...), nil
	case KindStr:
		header[0] = envelopeKindStr
		s, _ := v.AsStr()
		return append(header, s...), nil
	case KindHash:
		header[0] = envelopeKindHash
		h, _ := v.AsHash()
		payload := make([]byte, 0, 64)
		for field, val := range h {
			payload = binary.BigEndian.AppendUint32(payload, uint32(len(field)))
			payload = append(payload, field...)
			payload = binary.BigEndian.AppendUint32(payload, uint32(len(val)))
			payload = append(payload, val...)
		}
		return append(header, payload...), nil
	default:
		return nil, ErrInvalidInput("cannot persist reserved Set value")
	}
}

// decodeEnvelope parses raw back into a value and its saved remaining TTL
// (0 meaning no TTL).
func decodeEnvelope(raw []byte) (ValueHolder, int64, error) {
	if len(raw) < envelopeHeaderLen {
		return ValueHolder{}, 0, ErrInvalidInput("truncated persistence envelope")
	}
	kind := raw[0] & 0x0f
	remainingTTLMs := int64(binary.BigEndian.Uint64(raw[1:envelopeHeaderLen]))
	payload := raw[envelopeHeaderLen:]

	switch kind {
	case envelopeKindInt:
		if len(payload) < 8 {
			return ValueHolder{}, 0, ErrInvalidInput("truncated int envelope")
		}
		return NewInt(int64(binary.BigEndian.Uint64(payload))), remainingTTLMs, nil
	case envelopeKindStr:
		s := make([]byte, len(payload))
		copy(s, payload)
		return NewStr(s), remainingTTLMs, nil
	case envelopeKindHash:
		fields := make(map[string][]byte)
		for len(payload) > 0 {
			if len(payload) < 4 {
				return ValueHolder{}, 0, ErrInvalidInput("truncated hash field length")
			}
			flen := binary.BigEndian.Uint32(payload)
			payload = payload[4:]
			if uint32(len(payload)) < flen {
				return ValueHolder{}, 0, ErrInvalidInput("truncated hash field")
			}
			field := string(payload[:flen])
			payload = payload[flen:]

			if len(payload) < 4 {
				return ValueHolder{}, 0, ErrInvalidInput("truncated hash value length")
			}
			vlen := binary.BigEndian.Uint32(payload)
			payload = payload[4:]
			if uint32(len(payload)) < vlen {
				return ValueHolder{}, 0, ErrInvalidInput("truncated hash value")
			}
			val := make([]byte, vlen)
			copy(val, payload[:vlen])
			payload = payload[vlen:]

			fields[field] = val
		}
		return NewHash(fields), remainingTTLMs, nil
	default:
		return ValueHolder{}, 0, ErrInvalidInput(fmt.Sprintf("unknown envelope kind tag %d", kind))
	}
}

// save writes every live, non-expired entry of ks into Badger under
// dbName's namespace, replacing whatever was there before.
func (p *persistence) save(dbName string, ks *Keyspace) error {
	return p.db.Update(func(txn *badger.Txn) error {
		if err := dropPrefix(txn, dbKeyPrefix(dbName)); err != nil {
			return err
		}
		for shardIdx := 0; shardIdx < ks.ShardCount(); shardIdx++ {
			sh := ks.ShardAt(shardIdx)
			sh.mu.RLock()
			now := sh.clk.nowMs()
			for k, sv := range sh.primary {
				remainingTTLMs := int64(0)
				if sv.hasTTL() {
					remainingTTLMs = sv.expiresAtMs - now
					if remainingTTLMs <= 0 {
						continue
					}
				}
				env, err := encodeEnvelope(sv.value, remainingTTLMs)
				if err != nil {
					sh.mu.RUnlock()
					return err
				}
				if err := txn.Set(dbKey(dbName, shardIdx, []byte(k)), env); err != nil {
					sh.mu.RUnlock()
					return err
				}
			}
			sh.mu.RUnlock()
		}
		return nil
	})
}

// load reads every persisted entry under dbName's namespace back into ks,
// applying each saved remaining TTL as a fresh TTL relative to ks's own
// clock. Entries already expired at save time were never written by save.
func (p *persistence) load(dbName string, ks *Keyspace) error {
	prefix := dbKeyPrefix(dbName)
	return p.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			fullKey := item.KeyCopy(nil)
			key := fullKey[len(prefix)+4:]
			shardIdx := int(binary.BigEndian.Uint32(fullKey[len(prefix) : len(prefix)+4]))
			if shardIdx < 0 || shardIdx >= ks.ShardCount() {
				continue
			}
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			v, remainingTTLMs, err := decodeEnvelope(raw)
			if err != nil {
				return err
			}
			var ttl *int64
			if remainingTTLMs != 0 {
				ttl = &remainingTTLMs
			}
			sh := ks.ShardAt(shardIdx)
			if err := sh.Set(key, v, ttl); err != nil {
				return err
			}
		}
		return nil
	})
}

func dropPrefix(txn *badger.Txn, prefix []byte) error {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()
	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	for _, k := range keys {
		if err := txn.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
