package midealan

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// cipherKey is the 16-byte AES key for one session.
type cipherKey [16]byte

// deriveSessionKey mixes the pairing key with the device's handshake reply so
// each session encrypts under a fresh key.
func deriveSessionKey(key string, handshake []byte) cipherKey {
	sum := md5.Sum(append([]byte(key), handshake...))
	return cipherKey(sum)
}

// localKey is the pre-handshake key used to protect the handshake itself.
func localKey(key string) cipherKey {
	return cipherKey(md5.Sum([]byte(key)))
}

func decodeToken(token string) ([]byte, error) {
	raw, err := hex.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("token is not valid hex: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("token is empty")
	}
	return raw, nil
}

// encrypt applies AES-128-CBC with PKCS#7 padding and a zero IV, matching the
// appliance firmware.
func encrypt(key cipherKey, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, len(padded))
	iv := make([]byte, aes.BlockSize)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out, nil
}

func decrypt(key cipherKey, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext length %d is not a block multiple", len(ciphertext))
	}

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}

	out := make([]byte, len(ciphertext))
	iv := make([]byte, aes.BlockSize)
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	return pkcs7Unpad(out, aes.BlockSize)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	pad := blockSize - len(data)%blockSize
	return append(append([]byte{}, data...), bytes.Repeat([]byte{byte(pad)}, pad)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty plaintext")
	}
	pad := int(data[len(data)-1])
	if pad == 0 || pad > blockSize || pad > len(data) {
		return nil, fmt.Errorf("invalid padding byte %d", pad)
	}
	for _, b := range data[len(data)-pad:] {
		if int(b) != pad {
			return nil, fmt.Errorf("corrupt padding")
		}
	}
	return data[:len(data)-pad], nil
}
