// Package relay pipes an upstream Server-Sent-Events body to a client,
// optionally rewriting it frame by frame.
package relay

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// DoneFrame is the terminal sentinel of a client-facing stream.
var DoneFrame = []byte("data: [DONE]\n\n")

const rawChunkSize = 32 * 1024

// Frame is one decoded SSE event.
type Frame struct {
	// Raw is the frame text without the terminating blank line.
	Raw []byte
	// Event is the value of the event: field, if any.
	Event string
	// Data is the concatenation of every data: line.
	Data []byte
}

// Transcoder rewrites decoded frames.
type Transcoder interface {
	// Transcode returns the bytes to send for f, and whether the stream is over.
	Transcode(f Frame) (out []byte, done bool)
	// Finish returns what to send when upstream ends without a terminal frame.
	Finish() []byte
}

// Stats describes a finished relay.
type Stats struct {
	Frames int
	Bytes  int64
	// Completed is false when the relay stopped on an error.
	Completed bool
}

// ErrClientGone is returned when writing downstream fails.
var ErrClientGone = errors.New("client disconnected")

// Pipe copies src to dst until src ends, t reports the stream done, ctx is
// cancelled or a write fails. Every write is flushed before the next read, so a
// slow client throttles upstream reads. A nil t forwards bytes verbatim.
// Pipe does not close src.
func Pipe(ctx context.Context, dst io.Writer, src io.Reader, t Transcoder) (Stats, error) {
	w := &flushWriter{w: dst}
	if f, ok := dst.(http.Flusher); ok {
		w.f = f
	}

	if t == nil {
		return pipeRaw(ctx, w, src)
	}
	return pipeFrames(ctx, w, src, t)
}

func pipeRaw(ctx context.Context, w *flushWriter, src io.Reader) (Stats, error) {
	var stats Stats
	buf := make([]byte, rawChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			if err := w.write(buf[:n]); err != nil {
				return stats, err
			}
			stats.Frames++
			stats.Bytes += int64(n)
		}

		if readErr == io.EOF {
			stats.Completed = true
			return stats, nil
		}
		if readErr != nil {
			return stats, fmt.Errorf("upstream read: %w", readErr)
		}
	}
}

func pipeFrames(ctx context.Context, w *flushWriter, src io.Reader, t Transcoder) (Stats, error) {
	var stats Stats
	dec := NewDecoder(src)
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		frame, readErr := dec.Next()
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return stats, fmt.Errorf("upstream read: %w", readErr)
		}

		if frame != nil {
			out, done := t.Transcode(*frame)
			if len(out) > 0 {
				if err := w.write(out); err != nil {
					return stats, err
				}
				stats.Frames++
				stats.Bytes += int64(len(out))
			}
			if done {
				stats.Completed = true
				return stats, nil
			}
		}

		if errors.Is(readErr, io.EOF) {
			if tail := t.Finish(); len(tail) > 0 {
				if err := w.write(tail); err != nil {
					return stats, err
				}
				stats.Bytes += int64(len(tail))
			}
			stats.Completed = true
			return stats, nil
		}
	}
}

// Decoder splits an SSE byte stream into frames separated by blank lines.
type Decoder struct {
	r *bufio.Reader
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next returns the next non-empty frame. At end of input it returns the
// trailing partial frame (if any) together with io.EOF.
func (d *Decoder) Next() (*Frame, error) {
	var raw [][]byte
	for {
		line, err := d.r.ReadBytes('\n')
		trimmed := bytes.TrimRight(line, "\r\n")

		if len(trimmed) > 0 {
			raw = append(raw, append([]byte(nil), trimmed...))
		} else if len(line) > 0 && len(raw) > 0 {
			// blank line ends the frame
			return parseFrame(raw), nil
		}

		if err != nil {
			if len(raw) > 0 {
				return parseFrame(raw), err
			}
			return nil, err
		}
	}
}

func parseFrame(lines [][]byte) *Frame {
	f := &Frame{Raw: bytes.Join(lines, []byte("\n"))}
	var data [][]byte
	for _, line := range lines {
		field, value, _ := bytes.Cut(line, []byte(":"))
		value = bytes.TrimPrefix(value, []byte(" "))
		switch string(field) {
		case "event":
			f.Event = string(value)
		case "data":
			data = append(data, value)
		}
	}
	if data != nil {
		f.Data = bytes.Join(data, []byte("\n"))
	}
	return f
}

type flushWriter struct {
	w io.Writer
	f http.Flusher
}

func (fw *flushWriter) write(p []byte) error {
	if _, err := fw.w.Write(p); err != nil {
		return fmt.Errorf("%w: %v", ErrClientGone, err)
	}
	if fw.f != nil {
		fw.f.Flush()
	}
	return nil
}
