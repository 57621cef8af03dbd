package main

// client.go implements -c/--client mode: send the remaining CLI arguments as
// a single RESP command array and print the reply, per spec.md §6.
//
// © 2025 rescache authors. MIT License.

import (
	"fmt"
	"net"
	"strconv"

	"github.com/sergz72/rescache/pkg/resp"
)

func runClient(opts *options) error {
	if len(opts.clientArgs) == 0 {
		return fmt.Errorf("client mode requires a command, e.g. -c get mykey")
	}
	conn, err := net.Dial("tcp", opts.host+":"+strconv.Itoa(opts.port))
	if err != nil {
		return err
	}
	defer conn.Close()

	req := encodeCommand(opts.clientArgs)
	if _, err := conn.Write(req); err != nil {
		return err
	}

	tok, err := readOneReply(conn)
	if err != nil {
		return err
	}
	fmt.Println(formatReply(tok))
	return nil
}

func encodeCommand(args []string) []byte {
	dst := resp.AppendArrayHeader(nil, len(args))
	for _, a := range args {
		dst = resp.AppendBulkString(dst, []byte(a))
	}
	return dst
}

func readOneReply(conn net.Conn) (resp.Token, error) {
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for {
		tokens, consumed, err := resp.Parse(buf)
		if err == nil && len(tokens) > 0 {
			return tokens[0], nil
		}
		_ = consumed
		n, rerr := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if rerr != nil {
			return resp.Token{}, rerr
		}
	}
}

func formatReply(t resp.Token) string {
	switch t.Kind {
	case resp.KindInline:
		return string(t.Bytes)
	case resp.KindBulkString:
		return string(t.Bytes)
	case resp.KindInteger:
		return strconv.FormatInt(t.Int, 10)
	case resp.KindNullString, resp.KindNullArray:
		return "(nil)"
	case resp.KindArray:
		out := ""
		for i, child := range t.Array {
			if i > 0 {
				out += "\n"
			}
			out += fmt.Sprintf("%d) %s", i+1, formatReply(child))
		}
		return out
	default:
		return ""
	}
}
