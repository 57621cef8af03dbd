package dispatch

// dispatch.go implements C7: routing one parsed pkg/resp.Token (an inline
// command or a command array) to its handler. The name match is a
// length-prefiltered, case-insensitive comparison using the b|0x20
// lowercase-bit trick (spec.md §4.7's check_name), avoiding an allocation
// or a strings.ToUpper pass per request.
//
// © 2025 rescache authors. MIT License.

import "github.com/sergz72/rescache/pkg/resp"

// Dispatch routes tok — one complete command parsed off the wire — to its
// handler, appending the RESP reply bytes to dst and returning the result.
func (s *Session) Dispatch(tok resp.Token, dst []byte) []byte {
	switch tok.Kind {
	case resp.KindInline:
		if matchName(tok.Bytes, 0, "ping") {
			return cmdPing(nil, dst)
		}
		return append(dst, resp.ReplyInvalidCommand...)
	case resp.KindArray:
		return s.dispatchArray(tok.Array, dst)
	default:
		return append(dst, resp.ReplyInvalidCommand...)
	}
}

func (s *Session) dispatchArray(parts []resp.Token, dst []byte) []byte {
	if len(parts) == 0 || parts[0].Kind != resp.KindBulkString {
		return append(dst, resp.ReplyInvalidCommand...)
	}
	name := parts[0].Bytes
	args := parts[1:]

	switch len(name) {
	case 3:
		if matchName(name, 0, "del") {
			return s.cmdDel(args, dst)
		}
		if matchName(name, 0, "get") {
			return s.cmdGet(args, dst)
		}
		if matchName(name, 0, "set") {
			return s.cmdSet(args, dst)
		}
	case 4:
		if matchName(name, 0, "ping") {
			return cmdPing(args, dst)
		}
		if matchName(name, 0, "hset") {
			return s.cmdHSet(args, dst)
		}
		if matchName(name, 0, "hget") {
			return s.cmdHGet(args, dst)
		}
		if matchName(name, 0, "hdel") {
			return s.cmdHDel(args, dst)
		}
		if matchName(name, 0, "save") {
			return s.cmdSave(args, dst)
		}
	case 6:
		if matchName(name, 0, "select") {
			return s.cmdSelect(args, dst)
		}
		if matchName(name, 0, "config") {
			return s.cmdConfig(args, dst)
		}
		if matchName(name, 0, "dbsize") {
			return s.cmdDBSize(args, dst)
		}
		if matchName(name, 0, "loaddb") {
			return s.cmdLoadDB(args, dst)
		}
	case 7:
		if matchName(name, 0, "hgetall") {
			return s.cmdHGetAll(args, dst)
		}
		if matchName(name, 0, "flushdb") {
			return s.cmdFlushDB(args, dst)
		}
	case 8:
		if matchName(name, 0, "createdb") {
			return s.cmdCreateDB(args, dst)
		}
		if matchName(name, 0, "flushall") {
			return s.cmdFlushAll(args, dst)
		}
	}
	return append(dst, resp.ReplyInvalidCommand...)
}
