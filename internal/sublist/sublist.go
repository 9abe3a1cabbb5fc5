// Package sublist persists and reads back a mirror's last-known direct
// submodule URLs (spec.md §3 "submodules list", I4; SPEC_FULL.md §3
// "Submodule checksum sidecar"). A BLAKE3 digest sidecar guards the list
// against partial writes: readers that find a mismatch treat the list as
// corrupt and fall back to an empty list rather than failing the caller's
// whole operation.
package sublist

import (
	"os"
	"strings"

	"github.com/zeebo/blake3"
)

// Write persists urls, one per line, to file and writes file+".b3" holding
// the BLAKE3 digest of the list's exact on-disk bytes. Each file is written
// to a temp file and renamed into place (no fsync), content first, then
// digest. Between the two renames a reader can see the new content with the
// previous digest, or with none; Read treats either case as "no list"
// rather than trusting unverified content.
func Write(file string, urls []string) error {
	content := strings.Join(urls, "\n")
	if len(urls) > 0 {
		content += "\n"
	}

	if err := writeAtomic(file, []byte(content)); err != nil {
		return err
	}

	sum := blake3.Sum256([]byte(content))
	return writeAtomic(file+".b3", []byte(hexEncode(sum[:])))
}

// Read returns the submodule URLs last persisted to file, or nil if the
// file is absent or its digest sidecar is missing/mismatched.
func Read(file string) ([]string, error) {
	content, err := os.ReadFile(file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	digest, err := os.ReadFile(file + ".b3")
	if err != nil {
		return nil, nil
	}

	sum := blake3.Sum256(content)
	if hexEncode(sum[:]) != string(digest) {
		return nil, nil
	}

	text := strings.TrimRight(string(content), "\n")
	if text == "" {
		return nil, nil
	}
	return strings.Split(text, "\n"), nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

const hexDigits = "0123456789abcdef"

func hexEncode(b []byte) string {
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hexDigits[v>>4]
		out[i*2+1] = hexDigits[v&0x0f]
	}
	return string(out)
}
