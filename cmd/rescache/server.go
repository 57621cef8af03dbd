package main

// server.go runs the RESP listener: one goroutine per connection, each
// owning a pkg/dispatch.Session and a growable read buffer. SPEC_FULL.md §9
// resolves spec.md's "no partial-frame assembly" note into an explicit,
// additive behavior: when pkg/resp.Parse reports ErrIncomplete the handler
// keeps the unconsumed tail and appends the next Read instead of failing
// the whole buffer. The buffer grows only up to maxReadBufferSize; a client
// that never completes a frame within that cap (an oversized declared
// length, or bytes trickled behind one) gets -invalid command and a dropped
// buffer instead of unbounded growth.
//
// © 2025 rescache authors. MIT License.

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/sergz72/rescache/pkg/dispatch"
	"github.com/sergz72/rescache/pkg/resp"
	"github.com/sergz72/rescache/pkg/store"
)

const (
	initialReadBufferSize = 4096
	maxReadBufferSize     = 1 << 20 // 1 MiB cap on a single connection's unparsed buffer
)

func runServer(opts *options, dir *store.Directory, logger *zap.Logger) error {
	ln, err := net.Listen("tcp", ":"+strconv.Itoa(opts.port))
	if err != nil {
		return err
	}
	defer ln.Close()
	logger.Info("listening", zap.String("addr", ln.Addr().String()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info("shutting down")
		cancel()
		ln.Close()
	}()

	var wg sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			logger.Warn("accept failed", zap.Error(err))
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			handleConn(conn, dir, logger)
		}()
	}
	wg.Wait()
	return nil
}

func handleConn(conn net.Conn, dir *store.Directory, logger *zap.Logger) {
	defer conn.Close()

	sess, err := dispatch.NewSession(dir)
	if err != nil {
		logger.Error("session init failed", zap.Error(err))
		return
	}

	buf := make([]byte, 0, initialReadBufferSize)
	readChunk := make([]byte, initialReadBufferSize)
	var reply []byte

	for {
		n, err := conn.Read(readChunk)
		if n > 0 {
			buf = append(buf, readChunk[:n]...)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Debug("connection read error", zap.Error(err))
			}
			return
		}

		if len(buf) > maxReadBufferSize {
			// No frame completed within the cap: either a declared length
			// points past it or the client is dribbling bytes behind a huge
			// one. Either way, stop growing the buffer without bound and
			// reject outright rather than letting one connection force
			// unbounded memory growth.
			if _, werr := conn.Write(resp.ReplyInvalidCommand); werr != nil {
				return
			}
			buf = buf[:0]
			continue
		}

		for {
			tokens, consumed, perr := resp.Parse(buf)
			reply = reply[:0]
			for _, tok := range tokens {
				reply = sess.Dispatch(tok, reply)
			}
			if len(reply) > 0 {
				if _, werr := conn.Write(reply); werr != nil {
					return
				}
			}
			buf = buf[:copy(buf, buf[consumed:])]

			if perr == nil {
				break
			}
			if errors.Is(perr, resp.ErrIncomplete) {
				break
			}
			// ErrInvalidCommand: the malformed frame's bytes are still sitting
			// at the front of buf (consumed only covers completed frames), so
			// drop the whole buffer rather than spin on the same bad input.
			if _, werr := conn.Write(resp.ReplyInvalidCommand); werr != nil {
				return
			}
			buf = buf[:0]
			break
		}
	}
}
