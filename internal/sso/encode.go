// Package sso builds the login hand-off payload the proctoring site expects:
// the user id encrypted with 3DES-CBC under a fixed key and IV.
//
// The cipher, the static IV and the key stretching are dictated by the
// remote decoder and must stay bit-for-bit compatible.
package sso

import (
	"bytes"
	"crypto/cipher"
	"crypto/des"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const keySize = 24

var (
	ErrEmptyKey  = errors.New("sso: key is empty")
	ErrInvalidIV = errors.New("sso: iv must be 8 bytes of hex")
)

// StretchKey grows key to 24 bytes by appending its first 8 bytes until it is
// long enough, then truncates. "abcdefgh" becomes "abcdefghabcdefghabcdefgh".
func StretchKey(key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}
	head := key
	if len(head) > 8 {
		head = head[:8]
	}
	out := append([]byte(nil), key...)
	for len(out) < keySize {
		out = append(out, head...)
	}
	return out[:keySize], nil
}

// pkcs7Pad always adds padding, a full block when data is already aligned.
func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(append([]byte(nil), data...), bytes.Repeat([]byte{byte(n)}, n)...)
}

// DecodeIV parses the configured hex IV.
func DecodeIV(hexIV string) ([]byte, error) {
	iv, err := hex.DecodeString(strings.TrimSpace(hexIV))
	if err != nil || len(iv) != des.BlockSize {
		return nil, ErrInvalidIV
	}
	return iv, nil
}

// Encode encrypts plaintext and returns standard base64 of the ciphertext.
// The IV is not prepended.
func Encode(plaintext, key, hexIV string) (string, error) {
	k, err := StretchKey([]byte(key))
	if err != nil {
		return "", err
	}
	iv, err := DecodeIV(hexIV)
	if err != nil {
		return "", err
	}
	block, err := des.NewTripleDESCipher(k)
	if err != nil {
		return "", fmt.Errorf("sso: cipher: %w", err)
	}

	src := pkcs7Pad([]byte(plaintext), des.BlockSize)
	dst := make([]byte, len(src))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(dst, src)
	return base64.StdEncoding.EncodeToString(dst), nil
}
