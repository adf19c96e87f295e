package fileutil

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"hash/crc32"
	"io"
	"os"
)

// Hashes carries the content fingerprints tracked per downloaded cartridge.
// Upstream catalogs publish MD5, so MD5 doubles as the change-detection
// fingerprint; SHA1 and CRC32 are recorded for listing consumers.
type Hashes struct {
	MD5  string
	SHA1 string
	CRC  string
}

// HashFile computes MD5, SHA1, and CRC32 of the file in one pass.
func HashFile(path string) (Hashes, error) {
	file, err := os.Open(path)
	if err != nil {
		return Hashes{}, err
	}
	defer file.Close()

	md5Hash := md5.New()
	sha1Hash := sha1.New()
	crcHash := crc32.NewIEEE()

	if _, err := io.Copy(io.MultiWriter(md5Hash, sha1Hash, crcHash), file); err != nil {
		return Hashes{}, err
	}

	return Hashes{
		MD5:  hex.EncodeToString(md5Hash.Sum(nil)),
		SHA1: hex.EncodeToString(sha1Hash.Sum(nil)),
		CRC:  fmt.Sprintf("%08X", crcHash.Sum32()),
	}, nil
}

// MD5File computes just the MD5 fingerprint of a file.
func MD5File(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := md5.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
