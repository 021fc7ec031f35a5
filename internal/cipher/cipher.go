// Package cipher implements the streaming AES-256-GCM artifact format used
// for encrypted uploads: a single JSON header line describing the cipher
// parameters, followed by a sequence of length-framed ciphertext chunks.
//
// Each chunk is sealed under its own nonce, built by concatenating an
// 8-byte random base nonce (fixed for the whole stream, carried in the
// header) with a 4-byte big-endian chunk index. This avoids ever reusing a
// nonce within a stream without needing to persist per-chunk nonces.
package cipher

import (
	"bufio"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

const (
	// KeySize is the required AES-256 key length.
	KeySize = 32

	// ChunkSize is the plaintext size of each sealed chunk.
	ChunkSize = 16 * 1024 * 1024

	// baseNonceSize is the length of the per-stream random nonce prefix.
	baseNonceSize = 8

	// gcmNonceSize is the nonce length crypto/cipher's GCM mode expects.
	gcmNonceSize = 12
)

// Header is the first line of an encrypted stream, JSON-encoded followed by
// a newline.
type Header struct {
	Algorithm string `json:"algorithm"`
	BaseNonce string `json:"base_nonce"` // base64-std encoded, 8 bytes
	ChunkSize int    `json:"chunk_size"`
}

// ValidateKey checks that key is a usable AES-256 key.
func ValidateKey(key []byte) error {
	if len(key) != KeySize {
		return fmt.Errorf("cipher: invalid key length: expected %d bytes, got %d", KeySize, len(key))
	}
	return nil
}

// Encrypt wraps reader, returning a stream that begins with the JSON header
// line and is followed by sealed, length-framed chunks of at most ChunkSize
// plaintext bytes each.
func Encrypt(reader io.Reader, key []byte) (io.Reader, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	base := make([]byte, baseNonceSize)
	if _, err := io.ReadFull(rand.Reader, base); err != nil {
		return nil, fmt.Errorf("cipher: generate base nonce: %w", err)
	}

	header := Header{
		Algorithm: "aes-256-gcm",
		BaseNonce: base64.StdEncoding.EncodeToString(base),
		ChunkSize: ChunkSize,
	}
	headerLine, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("cipher: marshal header: %w", err)
	}

	pr, pw := io.Pipe()

	go func() {
		defer pw.Close()

		if _, err := pw.Write(headerLine); err != nil {
			pw.CloseWithError(fmt.Errorf("cipher: write header: %w", err))
			return
		}
		if _, err := pw.Write([]byte("\n")); err != nil {
			pw.CloseWithError(fmt.Errorf("cipher: write header newline: %w", err))
			return
		}

		buf := make([]byte, ChunkSize)
		var chunkIndex uint32
		for {
			n, readErr := io.ReadFull(reader, buf)
			if n > 0 {
				nonce := chunkNonce(base, chunkIndex)
				ciphertext := gcm.Seal(nil, nonce, buf[:n], nil)

				var lengthBuf [4]byte
				binary.BigEndian.PutUint32(lengthBuf[:], uint32(len(ciphertext)))
				if _, err := pw.Write(lengthBuf[:]); err != nil {
					pw.CloseWithError(fmt.Errorf("cipher: write chunk length: %w", err))
					return
				}
				if _, err := pw.Write(ciphertext); err != nil {
					pw.CloseWithError(fmt.Errorf("cipher: write ciphertext: %w", err))
					return
				}
				chunkIndex++
			}

			if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
				return
			}
			if readErr != nil {
				pw.CloseWithError(fmt.Errorf("cipher: read plaintext: %w", readErr))
				return
			}
		}
	}()

	return pr, nil
}

// Decrypt reads a stream produced by Encrypt and returns the plaintext.
func Decrypt(reader io.Reader, key []byte) (io.Reader, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	br := bufio.NewReader(reader)
	headerLine, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("cipher: read header: %w", err)
	}
	var header Header
	if err := json.Unmarshal([]byte(headerLine), &header); err != nil {
		return nil, fmt.Errorf("cipher: parse header: %w", err)
	}
	base, err := base64.StdEncoding.DecodeString(header.BaseNonce)
	if err != nil || len(base) != baseNonceSize {
		return nil, fmt.Errorf("cipher: invalid base nonce in header")
	}

	pr, pw := io.Pipe()

	go func() {
		defer pw.Close()

		lengthBuf := make([]byte, 4)
		var chunkIndex uint32
		for {
			if _, err := io.ReadFull(br, lengthBuf); err != nil {
				if err == io.EOF {
					return
				}
				pw.CloseWithError(fmt.Errorf("cipher: read chunk length: %w", err))
				return
			}
			chunkLen := binary.BigEndian.Uint32(lengthBuf)

			ciphertext := make([]byte, chunkLen)
			if _, err := io.ReadFull(br, ciphertext); err != nil {
				pw.CloseWithError(fmt.Errorf("cipher: read ciphertext: %w", err))
				return
			}

			nonce := chunkNonce(base, chunkIndex)
			plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
			if err != nil {
				pw.CloseWithError(fmt.Errorf("cipher: decrypt chunk %d (wrong key?): %w", chunkIndex, err))
				return
			}
			if _, err := pw.Write(plaintext); err != nil {
				pw.CloseWithError(fmt.Errorf("cipher: write plaintext: %w", err))
				return
			}
			chunkIndex++
		}
	}()

	return pr, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher: create AES block: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher: create GCM: %w", err)
	}
	return gcm, nil
}

// chunkNonce builds the 12-byte GCM nonce for chunkIndex by appending its
// big-endian encoding to the stream's fixed 8-byte base nonce.
func chunkNonce(base []byte, chunkIndex uint32) []byte {
	nonce := make([]byte, gcmNonceSize)
	copy(nonce, base)
	binary.BigEndian.PutUint32(nonce[baseNonceSize:], chunkIndex)
	return nonce
}
