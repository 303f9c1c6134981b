package config

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	digest "github.com/opencontainers/go-digest"
	"github.com/klauspost/compress/zstd"
)

// arMagic is the fixed 8-byte header every archive begins with.
const arMagic = "!<arch>\n"

// arHeaderLen is the fixed per-member header size: 16 name + 12 mtime +
// 6 uid + 6 gid + 8 mode + 10 size + 2 end bytes ("`\n").
const arHeaderLen = 60

// Member is one decoded archive entry. Data is already zstd-decompressed
// when Name ends in ".zst".
type Member struct {
	Name string
	Data []byte
}

// ArchiveReader decodes the ar-like archive format of §6: magic
// followed by concatenated fixed 60-byte member headers and data,
// padded to an even byte boundary. A member whose name ends in ".zst"
// is transparently decompressed.
type ArchiveReader struct {
	members []Member
}

// ReadArchive parses the whole archive from r.
func ReadArchive(r io.Reader) (*ArchiveReader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read archive: %w", err)
	}
	if len(data) < len(arMagic) || string(data[:len(arMagic)]) != arMagic {
		return nil, fmt.Errorf("config: not an archive (bad magic)")
	}
	data = data[len(arMagic):]

	var members []Member
	for len(data) > 0 {
		if len(data) < arHeaderLen {
			return nil, fmt.Errorf("config: truncated archive header")
		}
		hdr := data[:arHeaderLen]
		data = data[arHeaderLen:]

		name := strings.TrimRight(string(hdr[0:16]), " ")
		sizeField := strings.TrimSpace(string(hdr[48:58]))
		size, err := strconv.ParseInt(sizeField, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("config: bad archive member size %q: %w", sizeField, err)
		}
		if int64(len(data)) < size {
			return nil, fmt.Errorf("config: truncated archive member %q", name)
		}
		body := data[:size]
		data = data[size:]
		if size%2 != 0 && len(data) > 0 {
			data = data[1:] // consume the alignment pad byte
		}

		if strings.HasSuffix(name, ".zst") {
			decoded, err := zstdDecompress(body)
			if err != nil {
				return nil, fmt.Errorf("config: decompress member %q: %w", name, err)
			}
			body = decoded
			name = strings.TrimSuffix(name, ".zst")
		}

		members = append(members, Member{Name: name, Data: append([]byte(nil), body...)})
	}

	return &ArchiveReader{members: members}, nil
}

// Config returns the archive's "config" member, the entry the textual
// or YAML frontend parses, and its digest for the determinism check.
func (a *ArchiveReader) Config() (Member, digest.Digest, bool) {
	for _, m := range a.members {
		if m.Name == "config" {
			return m, digest.FromBytes(m.Data), true
		}
	}
	return Member{}, "", false
}

// Auxiliary returns every member other than "config", such as
// precompiled element packages consulted while resolving requirements.
func (a *ArchiveReader) Auxiliary() []Member {
	var aux []Member
	for _, m := range a.members {
		if m.Name != "config" {
			aux = append(aux, m)
		}
	}
	return aux
}

func zstdDecompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return io.ReadAll(dec)
}

// WriteArchive encodes members into the same ar-like format ReadArchive
// consumes, used by tests to build fixtures; members are written
// uncompressed, since compression is only ever asked of a frontend on the
// read path.
func WriteArchive(w io.Writer, members []Member) error {
	if _, err := io.WriteString(w, arMagic); err != nil {
		return err
	}
	for _, m := range members {
		if err := writeArMember(w, m); err != nil {
			return fmt.Errorf("config: write archive member %q: %w", m.Name, err)
		}
	}
	return nil
}

func writeArMember(w io.Writer, m Member) error {
	var hdr [arHeaderLen]byte
	copy(hdr[0:16], padRight(m.Name, 16))
	copy(hdr[16:28], padRight(strconv.FormatInt(time.Now().Unix(), 10), 12))
	copy(hdr[28:34], padRight("0", 6))
	copy(hdr[34:40], padRight("0", 6))
	copy(hdr[40:48], padRight("644", 8))
	copy(hdr[48:58], padRight(strconv.Itoa(len(m.Data)), 10))
	hdr[58] = '`'
	hdr[59] = '\n'

	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := w.Write(m.Data); err != nil {
		return err
	}
	if len(m.Data)%2 != 0 {
		if _, err := w.Write([]byte{'\n'}); err != nil {
			return err
		}
	}
	return nil
}

func padRight(s string, n int) string {
	if len(s) >= n {
		return s[:n]
	}
	return s + strings.Repeat(" ", n-len(s))
}

// Digest returns the content hash of data using the same algorithm the
// cluster control plane and the configure determinism test rely on for
// byte-identity comparison.
func Digest(data []byte) digest.Digest {
	return digest.FromBytes(data)
}
