// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

// minCompressSize skips compression for bodies that fit in one packet anyway.
const minCompressSize = 1024

var (
	gzipPool = sync.Pool{New: func() any {
		w, _ := gzip.NewWriterLevel(io.Discard, 4)
		return w
	}}
	brotliPool = sync.Pool{New: func() any {
		return brotli.NewWriterLevel(io.Discard, 4)
	}}
	zstdPool = sync.Pool{New: func() any {
		w, _ := zstd.NewWriter(io.Discard, zstd.WithEncoderLevel(zstd.SpeedDefault))
		return w
	}}
)

type resetWriter interface {
	io.WriteCloser
	Reset(io.Writer)
}

// Compress negotiates zstd, brotli, or gzip from Accept-Encoding and wraps
// responses above minCompressSize. Small bodies and already-encoded
// responses pass through untouched.
func Compress(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		encoding, pool := negotiate(r.Header.Get("Accept-Encoding"))
		if encoding == "" {
			next.ServeHTTP(w, r)
			return
		}

		cw := &compressWriter{ResponseWriter: w, encoding: encoding, pool: pool}
		defer cw.close()
		next.ServeHTTP(cw, r)
	})
}

func negotiate(accept string) (string, *sync.Pool) {
	for _, enc := range strings.Split(accept, ",") {
		enc = strings.TrimSpace(enc)
		if i := strings.IndexByte(enc, ';'); i >= 0 {
			enc = strings.TrimSpace(enc[:i])
		}
		switch enc {
		case "zstd":
			return "zstd", &zstdPool
		case "br":
			return "br", &brotliPool
		case "gzip":
			return "gzip", &gzipPool
		}
	}
	return "", nil
}

type compressWriter struct {
	http.ResponseWriter
	encoding    string
	pool        *sync.Pool
	writer      resetWriter
	buf         []byte
	status      int
	wroteHeader bool
	passthrough bool
}

func (w *compressWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.status = status

	if w.Header().Get("Content-Encoding") != "" || status == http.StatusNoContent {
		w.passthrough = true
		w.ResponseWriter.WriteHeader(status)
	}
}

func (w *compressWriter) Write(data []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if w.passthrough {
		return w.ResponseWriter.Write(data)
	}
	if w.writer != nil {
		return w.writer.Write(data)
	}

	w.buf = append(w.buf, data...)
	if len(w.buf) < minCompressSize {
		return len(data), nil
	}

	w.Header().Set("Content-Encoding", w.encoding)
	w.Header().Del("Content-Length")
	w.ResponseWriter.WriteHeader(w.status)

	w.writer = w.pool.Get().(resetWriter)
	w.writer.Reset(w.ResponseWriter)
	if _, err := w.writer.Write(w.buf); err != nil {
		return len(data), err
	}
	w.buf = nil
	return len(data), nil
}

// close flushes either the compressor or the small-body buffer.
func (w *compressWriter) close() {
	if w.writer != nil {
		_ = w.writer.Close()
		w.writer.Reset(io.Discard)
		w.pool.Put(w.writer)
		return
	}
	if w.passthrough {
		return
	}
	if !w.wroteHeader {
		return
	}
	w.ResponseWriter.WriteHeader(w.status)
	if len(w.buf) > 0 {
		_, _ = w.ResponseWriter.Write(w.buf)
	}
}
