package ndjson

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"sync"

	"github.com/go-faster/errors"
)

// DefaultMaxLine bounds a single frame.
const DefaultMaxLine = 4 << 20

var ErrLineTooLong = errors.New("ndjson line too long")

// Decoder splits a stream into newline-delimited frames.
type Decoder struct {
	reader  *bufio.Reader
	maxLine int
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{reader: bufio.NewReader(r), maxLine: DefaultMaxLine}
}

// Next returns the next non-blank frame without its line terminator. A final
// frame that is not newline-terminated is returned before io.EOF.
func (d *Decoder) Next() ([]byte, error) {
	for {
		line, err := d.readLine()
		if len(line) > 0 {
			return line, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func (d *Decoder) readLine() ([]byte, error) {
	var buf []byte
	for {
		chunk, err := d.reader.ReadSlice('\n')
		buf = append(buf, chunk...)
		if len(buf) > d.maxLine {
			d.discard(err)
			return nil, ErrLineTooLong
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return bytes.TrimSpace(buf), err
	}
}

// discard skips the rest of an oversized line so the next frame starts clean.
func (d *Decoder) discard(err error) {
	for errors.Is(err, bufio.ErrBufferFull) {
		_, err = d.reader.ReadSlice('\n')
	}
}

// Encoder writes one JSON value per line. It is safe for concurrent use.
type Encoder struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{writer: w}
}

func (e *Encoder) Encode(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encode frame")
	}
	payload = append(payload, '\n')
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err = e.writer.Write(payload)
	return err
}
