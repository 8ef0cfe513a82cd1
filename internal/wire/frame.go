package wire

import (
	"bufio"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
)

// defaultBufferSize matches the teacher transport's bufio buffer sizing
// for framed stream reads/writes.
const defaultBufferSize = 4096

// FrameStats is a point-in-time snapshot of one Codec's byte and message
// counters, the generalization of the teacher's TCPErrorStatistics to the
// bus's self-delimiting message stream.
type FrameStats struct {
	BytesRead       int64
	BytesWritten    int64
	MessagesRead    int64
	MessagesWritten int64
}

// countingReader/countingWriter tee byte counts into atomic counters;
// bufio layered on top provides the actual buffering.
type countingReader struct {
	r     io.Reader
	count *int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	atomic.AddInt64(c.count, int64(n))
	return n, err
}

type countingWriter struct {
	w     io.Writer
	count *int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	atomic.AddInt64(c.count, int64(n))
	return n, err
}

// Codec reads and writes one Message at a time over an underlying
// bidirectional byte stream (spec §4.1 Framing). ReadMessage may be
// called concurrently with WriteMessage/Flush, but concurrent writers
// must serialize among themselves; WriteAndFlush does this via writeMu.
type Codec struct {
	reader *bufio.Reader
	writer *bufio.Writer
	res    Resolver

	writeMu sync.Mutex

	bytesRead       int64
	bytesWritten    int64
	messagesRead    int64
	messagesWritten int64
}

// NewCodec wraps rw with a Codec that resolves extension values against res.
func NewCodec(rw io.ReadWriter, res Resolver) *Codec {
	c := &Codec{res: res}
	c.reader = bufio.NewReaderSize(&countingReader{r: rw, count: &c.bytesRead}, defaultBufferSize)
	c.writer = bufio.NewWriterSize(&countingWriter{w: rw, count: &c.bytesWritten}, defaultBufferSize)
	return c
}

// ReadMessage decodes the next message from the stream (streaming decode,
// one message at a time, per spec §4.1). A malformed payload or unknown
// tag returns a *ProtocolError, which callers must treat as fatal to the
// Connection (spec §4.1 Errors, §7).
func (c *Codec) ReadMessage() (Message, error) {
	msg, err := readMessage(c.reader, c.res)
	if err != nil {
		return Message{}, err
	}
	atomic.AddInt64(&c.messagesRead, 1)
	return msg, nil
}

// WriteMessage encodes and buffers msg; callers must call Flush (or use
// WriteAndFlush) for it to reach the peer. WriteMessage itself does not
// lock: the Connection is responsible for serializing writers onto a
// single writer goroutine or mutex (spec §5).
func (c *Codec) WriteMessage(msg Message) error {
	if err := writeMessage(c.writer, msg, c.res); err != nil {
		return err
	}
	atomic.AddInt64(&c.messagesWritten, 1)
	return nil
}

// Flush pushes any buffered bytes to the underlying stream. Flush may
// block on socket buffer pressure (spec §5 Suspension points).
func (c *Codec) Flush() error {
	return c.writer.Flush()
}

// WriteAndFlush is the common case: encode one message and push it out
// immediately, matching the non-blocking-flush contract of spec §4.1.
func (c *Codec) WriteAndFlush(msg Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.WriteMessage(msg); err != nil {
		return err
	}
	return c.Flush()
}

// Stats returns a snapshot of this codec's byte/message counters.
func (c *Codec) Stats() FrameStats {
	return FrameStats{
		BytesRead:       atomic.LoadInt64(&c.bytesRead),
		BytesWritten:    atomic.LoadInt64(&c.bytesWritten),
		MessagesRead:    atomic.LoadInt64(&c.messagesRead),
		MessagesWritten: atomic.LoadInt64(&c.messagesWritten),
	}
}

// String renders a human-readable summary of the counters, for
// operator-facing diagnostics logged at connection shutdown.
func (s FrameStats) String() string {
	return fmt.Sprintf("%s read (%d msgs), %s written (%d msgs)",
		humanize.Bytes(uint64(s.BytesRead)), s.MessagesRead,
		humanize.Bytes(uint64(s.BytesWritten)), s.MessagesWritten)
}
