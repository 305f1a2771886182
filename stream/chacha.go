package stream

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// noncePrefixSize is the fixed 7-byte random prefix of every frame's
// 12-byte ChaCha20-Poly1305 nonce; the remaining 5 bytes are a BE32
// frame counter plus a last-frame marker bit, the STREAM construction
// named in spec.md's on-disk format.
const noncePrefixSize = 7

// frameSize is the plaintext chunk size encrypted into one ciphertext
// frame. Smaller than a part so a part boundary can fall mid-frame
// without consequence: frames and parts are independent byte streams.
const frameSize = 64 * 1024

// chacha20Writer encrypts plaintext into the
// [frame_len:4 BE][ciphertext:frame_len] framing of §6, writing frames
// to w as soon as frameSize bytes have buffered. The caller must write
// the one-time nonce header (writeNonceHeader) before the first Write.
type chacha20Writer struct {
	aead        aeadSealer
	noncePrefix [noncePrefixSize]byte
	counter     uint32
	buf         []byte
	w           io.Writer
	closed      bool
}

// aeadSealer is the subset of cipher.AEAD this package exercises,
// named so tests can substitute a fake without importing crypto/cipher
// just for the interface type.
type aeadSealer interface {
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
}

func newChacha20Writer(w io.Writer, key [32]byte, noncePrefix [noncePrefixSize]byte) (*chacha20Writer, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("stream: initializing cipher: %w", err)
	}
	return &chacha20Writer{aead: aead, noncePrefix: noncePrefix, w: w, buf: make([]byte, 0, frameSize)}, nil
}

// writeNonceHeader writes the one-time [nonce_len:1][nonce:nonce_len]
// preamble a decoder reads before the first ciphertext frame.
func writeNonceHeader(w io.Writer, noncePrefix [noncePrefixSize]byte) error {
	if _, err := w.Write([]byte{noncePrefixSize}); err != nil {
		return err
	}
	_, err := w.Write(noncePrefix[:])
	return err
}

func (c *chacha20Writer) nonce(last bool) []byte {
	n := make([]byte, chacha20poly1305.NonceSize)
	copy(n, c.noncePrefix[:])
	binary.BigEndian.PutUint32(n[noncePrefixSize:noncePrefixSize+4], c.counter)
	if last {
		n[chacha20poly1305.NonceSize-1] |= 0x80
	}
	return n
}

func (c *chacha20Writer) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		space := frameSize - len(c.buf)
		n := len(p)
		if n > space {
			n = space
		}
		c.buf = append(c.buf, p[:n]...)
		p = p[n:]
		total += n
		if len(c.buf) == frameSize {
			if err := c.flushFrame(false); err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

func (c *chacha20Writer) flushFrame(last bool) error {
	ciphertext := c.aead.Seal(nil, c.nonce(last), c.buf, nil)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(ciphertext)))
	if _, err := c.w.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := c.w.Write(ciphertext); err != nil {
		return err
	}
	c.buf = c.buf[:0]
	c.counter++
	return nil
}

// Close flushes any buffered plaintext as the final frame, sealed with
// the last-frame nonce bit set.
func (c *chacha20Writer) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.flushFrame(true)
}

// decryptReader reverses the framing chacha20Writer produces, peeking
// ahead after each frame to tell whether it just decrypted the final
// one (its nonce carries the last-frame bit).
type decryptReader struct {
	br          *bufio.Reader
	aead        aeadSealer
	noncePrefix [noncePrefixSize]byte
	counter     uint32
	buf         []byte
	pos         int
	done        bool
}

// DecryptReader wraps r, an object previously written by
// chacha20Writer, returning a reader over the decrypted plaintext
// (still zstd-compressed, if compression was used — the caller
// decompresses separately). This is the entire external surface
// cmd/s3dec needs to recover stream-uploaded objects.
func DecryptReader(r io.Reader, key [32]byte) (io.Reader, error) {
	br := bufio.NewReader(r)
	nlen, err := br.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("stream: reading nonce header: %w", err)
	}
	prefix := make([]byte, nlen)
	if _, err := io.ReadFull(br, prefix); err != nil {
		return nil, fmt.Errorf("stream: reading nonce prefix: %w", err)
	}
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("stream: initializing cipher: %w", err)
	}
	d := &decryptReader{br: br, aead: aead}
	copy(d.noncePrefix[:], prefix)
	return d, nil
}

func (d *decryptReader) Read(p []byte) (int, error) {
	if d.pos >= len(d.buf) {
		if d.done {
			return 0, io.EOF
		}
		if err := d.nextFrame(); err != nil {
			return 0, err
		}
	}
	n := copy(p, d.buf[d.pos:])
	d.pos += n
	return n, nil
}

func (d *decryptReader) nextFrame() error {
	var lenBuf [4]byte
	if _, err := io.ReadFull(d.br, lenBuf[:]); err != nil {
		return io.EOF
	}
	frameLen := binary.BigEndian.Uint32(lenBuf[:])
	ciphertext := make([]byte, frameLen)
	if _, err := io.ReadFull(d.br, ciphertext); err != nil {
		return fmt.Errorf("stream: short frame %d: %w", d.counter, err)
	}

	_, peekErr := d.br.Peek(1)
	last := peekErr != nil

	nonce := make([]byte, chacha20poly1305.NonceSize)
	copy(nonce, d.noncePrefix[:])
	binary.BigEndian.PutUint32(nonce[noncePrefixSize:noncePrefixSize+4], d.counter)
	if last {
		nonce[chacha20poly1305.NonceSize-1] |= 0x80
	}

	plain, err := d.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return fmt.Errorf("stream: decrypting frame %d: %w", d.counter, err)
	}
	d.buf = plain
	d.pos = 0
	d.counter++
	if last {
		d.done = true
	}
	return nil
}
