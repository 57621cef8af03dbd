package dispatch

// commands.go binds each command in spec.md §4.7's table to pkg/store
// operations and pkg/resp encoding, grounded on the original source's
// resp_commands.rs (run_get_command, run_set_command, run_config_command,
// ...) generalized to the full command table SPEC_FULL adds (hashes,
// multi-key DEL, FLUSHALL, persistence).
//
// © 2025 rescache authors. MIT License.

import (
	"strconv"
	"unicode/utf8"

	"github.com/sergz72/rescache/pkg/resp"
	"github.com/sergz72/rescache/pkg/store"
)

func cmdPing(args []resp.Token, dst []byte) []byte {
	switch len(args) {
	case 0:
		return append(dst, resp.ReplyPong...)
	case 1:
		return resp.AppendBulkString(dst, tokenBytes(args[0]))
	default:
		return append(dst, resp.ReplyInvalidCommand...)
	}
}

func (s *Session) cmdSelect(args []resp.Token, dst []byte) []byte {
	if len(args) != 1 || args[0].Kind != resp.KindBulkString {
		return append(dst, resp.ReplyInvalidCommand...)
	}
	name, ok := validDBName(args[0].Bytes)
	if !ok {
		return resp.AppendError(dst, store.ErrInvalidDbName().Payload)
	}
	if err := s.selectDB(name); err != nil {
		return appendStoreErr(dst, err)
	}
	return append(dst, resp.ReplyOK...)
}

func (s *Session) cmdCreateDB(args []resp.Token, dst []byte) []byte {
	if len(args) != 1 || args[0].Kind != resp.KindBulkString {
		return append(dst, resp.ReplyInvalidCommand...)
	}
	name, ok := validDBName(args[0].Bytes)
	if !ok {
		return resp.AppendError(dst, store.ErrInvalidDbName().Payload)
	}
	if err := s.createDB(name); err != nil {
		return appendStoreErr(dst, err)
	}
	return append(dst, resp.ReplyOK...)
}

func (s *Session) cmdLoadDB(args []resp.Token, dst []byte) []byte {
	if len(args) != 1 || args[0].Kind != resp.KindBulkString {
		return append(dst, resp.ReplyInvalidCommand...)
	}
	name, ok := validDBName(args[0].Bytes)
	if !ok {
		return resp.AppendError(dst, store.ErrInvalidDbName().Payload)
	}
	if err := s.loadDB(name); err != nil {
		return appendStoreErr(dst, err)
	}
	return append(dst, resp.ReplyOK...)
}

func (s *Session) cmdFlushDB(args []resp.Token, dst []byte) []byte {
	if len(args) != 0 {
		return append(dst, resp.ReplyInvalidCommand...)
	}
	s.keyspace.FlushAll()
	s.touch()
	return append(dst, resp.ReplyOK...)
}

func (s *Session) cmdFlushAll(args []resp.Token, dst []byte) []byte {
	if len(args) != 0 {
		return append(dst, resp.ReplyInvalidCommand...)
	}
	s.dir.FlushAll()
	return append(dst, resp.ReplyOK...)
}

func (s *Session) cmdDBSize(args []resp.Token, dst []byte) []byte {
	if len(args) != 0 {
		return append(dst, resp.ReplyInvalidCommand...)
	}
	n := s.keyspace.Size()
	s.touch()
	return resp.AppendInteger(dst, int64(n))
}

func (s *Session) cmdDel(args []resp.Token, dst []byte) []byte {
	if len(args) < 1 {
		return append(dst, resp.ReplyInvalidCommand...)
	}
	byShard := make(map[*store.Shard][][]byte)
	for _, a := range args {
		if a.Kind != resp.KindBulkString {
			return append(dst, resp.ReplyInvalidCommand...)
		}
		sh := s.keyspace.ShardFor(a.Bytes)
		byShard[sh] = append(byShard[sh], a.Bytes)
	}
	total := 0
	for sh, keys := range byShard {
		total += sh.RemoveKeys(keys)
	}
	if total > 0 {
		s.keyspace.MarkDirty()
	}
	s.touch()
	return resp.AppendInteger(dst, int64(total))
}

func (s *Session) cmdGet(args []resp.Token, dst []byte) []byte {
	if len(args) != 1 || args[0].Kind != resp.KindBulkString {
		return append(dst, resp.ReplyInvalidCommand...)
	}
	sh := s.keyspace.ShardFor(args[0].Bytes)
	v, status := sh.Get(args[0].Bytes)
	s.touch()
	switch status {
	case store.StatusFound:
		s.dir.RecordHit(s.dbName)
		if i, ok := v.AsInt(); ok {
			return resp.AppendInteger(dst, i)
		}
		str, _ := v.AsStr()
		return resp.AppendBulkString(dst, str)
	case store.StatusNotFound:
		s.dir.RecordMiss(s.dbName)
		return append(dst, resp.ReplyNullBulkString...)
	case store.StatusExpired:
		s.dir.RecordExpired(s.dbName)
		return append(dst, resp.ReplyNullBulkString...)
	default: // StatusWrongType
		return resp.AppendError(dst, store.ErrWrongType().Payload)
	}
}

func (s *Session) cmdSet(args []resp.Token, dst []byte) []byte {
	if len(args) != 2 && len(args) != 4 {
		return append(dst, resp.ReplyInvalidCommand...)
	}
	if args[0].Kind != resp.KindBulkString || args[1].Kind != resp.KindBulkString {
		return append(dst, resp.ReplyInvalidCommand...)
	}
	var ttlMs *int64
	if len(args) == 4 {
		opt := args[2]
		n, ok := parseNumericToken(args[3])
		if opt.Kind != resp.KindBulkString || !ok || n <= 0 {
			return append(dst, resp.ReplyInvalidCommand...)
		}
		switch {
		case matchName(opt.Bytes, 0, "ex"):
			v := n * 1000
			ttlMs = &v
		case matchName(opt.Bytes, 0, "px"):
			ttlMs = &n
		default:
			return append(dst, resp.ReplyInvalidCommand...)
		}
	}
	val := make([]byte, len(args[1].Bytes))
	copy(val, args[1].Bytes)
	sh := s.keyspace.ShardFor(args[0].Bytes)
	if err := sh.Set(args[0].Bytes, store.NewStr(val), ttlMs); err != nil {
		s.dir.RecordOutOfMemory(s.dbName)
		return appendStoreErr(dst, err)
	}
	s.keyspace.MarkDirty()
	s.touch()
	return append(dst, resp.ReplyOK...)
}

func (s *Session) cmdHSet(args []resp.Token, dst []byte) []byte {
	if len(args) < 3 || len(args)%2 != 1 {
		return append(dst, resp.ReplyInvalidCommand...)
	}
	if args[0].Kind != resp.KindBulkString {
		return append(dst, resp.ReplyInvalidCommand...)
	}
	fields := make(map[string][]byte, (len(args)-1)/2)
	for i := 1; i < len(args); i += 2 {
		if args[i].Kind != resp.KindBulkString || args[i+1].Kind != resp.KindBulkString {
			return append(dst, resp.ReplyInvalidCommand...)
		}
		val := make([]byte, len(args[i+1].Bytes))
		copy(val, args[i+1].Bytes)
		fields[string(args[i].Bytes)] = val
	}
	sh := s.keyspace.ShardFor(args[0].Bytes)
	n, err := sh.HSet(args[0].Bytes, fields)
	if err != nil {
		if se, ok := err.(*store.Error); ok && se.Kind == store.KindOutOfMemory {
			s.dir.RecordOutOfMemory(s.dbName)
		}
		return appendStoreErr(dst, err)
	}
	s.keyspace.MarkDirty()
	s.touch()
	return resp.AppendInteger(dst, int64(n))
}

func (s *Session) cmdHGet(args []resp.Token, dst []byte) []byte {
	if len(args) != 2 || args[0].Kind != resp.KindBulkString || args[1].Kind != resp.KindBulkString {
		return append(dst, resp.ReplyInvalidCommand...)
	}
	sh := s.keyspace.ShardFor(args[0].Bytes)
	v, status := sh.HGet(args[0].Bytes, args[1].Bytes)
	s.touch()
	switch status {
	case store.StatusFound:
		s.dir.RecordHit(s.dbName)
		str, _ := v.AsStr()
		return resp.AppendBulkString(dst, str)
	case store.StatusNotFound:
		s.dir.RecordMiss(s.dbName)
		return append(dst, resp.ReplyNullBulkString...)
	case store.StatusExpired:
		s.dir.RecordExpired(s.dbName)
		return append(dst, resp.ReplyNullBulkString...)
	default:
		return resp.AppendError(dst, store.ErrWrongType().Payload)
	}
}

func (s *Session) cmdHGetAll(args []resp.Token, dst []byte) []byte {
	if len(args) != 1 || args[0].Kind != resp.KindBulkString {
		return append(dst, resp.ReplyInvalidCommand...)
	}
	sh := s.keyspace.ShardFor(args[0].Bytes)
	fields, status := sh.HGetAll(args[0].Bytes)
	s.touch()
	switch status {
	case store.StatusFound:
		s.dir.RecordHit(s.dbName)
		return resp.AppendHash(dst, fields)
	case store.StatusNotFound:
		s.dir.RecordMiss(s.dbName)
		return append(dst, resp.ReplyNullArray...)
	case store.StatusExpired:
		s.dir.RecordExpired(s.dbName)
		return append(dst, resp.ReplyNullArray...)
	default:
		return resp.AppendError(dst, store.ErrWrongType().Payload)
	}
}

func (s *Session) cmdHDel(args []resp.Token, dst []byte) []byte {
	if len(args) < 2 || args[0].Kind != resp.KindBulkString {
		return append(dst, resp.ReplyInvalidCommand...)
	}
	fields := make([]string, 0, len(args)-1)
	for _, a := range args[1:] {
		if a.Kind != resp.KindBulkString {
			return append(dst, resp.ReplyInvalidCommand...)
		}
		fields = append(fields, string(a.Bytes))
	}
	sh := s.keyspace.ShardFor(args[0].Bytes)
	n, err := sh.HDel(args[0].Bytes, fields)
	if err != nil {
		return appendStoreErr(dst, err)
	}
	if n > 0 {
		s.keyspace.MarkDirty()
	}
	s.touch()
	return resp.AppendInteger(dst, int64(n))
}

func (s *Session) cmdConfig(args []resp.Token, dst []byte) []byte {
	if len(args) != 2 || args[0].Kind != resp.KindBulkString || args[1].Kind != resp.KindBulkString {
		return append(dst, resp.ReplyInvalidCommand...)
	}
	if !matchName(args[0].Bytes, 0, "get") {
		return append(dst, resp.ReplyInvalidCommand...)
	}
	v, ok := staticConfig[string(args[1].Bytes)]
	if !ok {
		return append(dst, resp.ReplyNullArray...)
	}
	return resp.AppendTwoElementArray(dst, args[1].Bytes, []byte(v))
}

func (s *Session) cmdSave(args []resp.Token, dst []byte) []byte {
	if len(args) != 0 {
		return append(dst, resp.ReplyInvalidCommand...)
	}
	if err := s.dir.Save(s.dbName); err != nil {
		return appendStoreErr(dst, err)
	}
	return append(dst, resp.ReplyOK...)
}

// staticConfig mirrors the original's build_configuration(): a fixed,
// read-only CONFIG GET surface that always reports persistence as disabled
// at the protocol level (SAVE/LOADDB are handled out of band here).
var staticConfig = map[string]string{
	"save":       "",
	"appendonly": "no",
}

func validDBName(b []byte) (string, bool) {
	if !utf8.Valid(b) {
		return "", false
	}
	return string(b), true
}

func appendStoreErr(dst []byte, err error) []byte {
	if se, ok := err.(*store.Error); ok && se.Payload != "" {
		return resp.AppendError(dst, se.Payload)
	}
	return append(dst, resp.ReplyInvalidCommand...)
}

func tokenBytes(t resp.Token) []byte {
	if t.Kind == resp.KindBulkString || t.Kind == resp.KindInline {
		return t.Bytes
	}
	return nil
}

// parseNumericToken accepts either a RESP integer or a bulk string of ASCII
// digits (with an optional leading '-'), per spec.md §4.7.
func parseNumericToken(t resp.Token) (int64, bool) {
	if t.Kind == resp.KindInteger {
		return t.Int, true
	}
	if t.Kind != resp.KindBulkString {
		return 0, false
	}
	n, err := strconv.ParseInt(string(t.Bytes), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// matchName compares s[offset:] against expected case-insensitively,
// allowing the lowercase variant via b | 0x20 (spec.md §4.7).
func matchName(s []byte, offset int, expected string) bool {
	if len(s) != offset+len(expected) {
		return false
	}
	for i := offset; i < len(s); i++ {
		v1 := s[i]
		v2 := expected[i-offset]
		if v1 != v2 && v1|0x20 != v2 {
			return false
		}
	}
	return true
}
