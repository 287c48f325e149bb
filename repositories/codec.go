package repositories

import (
	"collab-lab/domain/collab"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
)

// snapshotRecord is the stored form of an archive. Content is zstd compressed.
type snapshotRecord struct {
	SessionID  string `cbor:"sessionId"`
	Name       string `cbor:"name"`
	Version    uint64 `cbor:"version"`
	Reason     string `cbor:"reason"`
	CreatedAt  int64  `cbor:"createdAt"`
	ArchivedAt int64  `cbor:"archivedAt"`
	Content    []byte `cbor:"content"`
}

var (
	encMode     cbor.EncMode
	decMode     cbor.DecMode
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("repositories: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("repositories: CBOR decoder initialization failed: " + err.Error())
	}
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("repositories: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("repositories: zstd decoder initialization failed: " + err.Error())
	}
}

func compress(content string) []byte {
	return zstdEncoder.EncodeAll([]byte(content), nil)
}

func decompress(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	raw, err := zstdDecoder.DecodeAll(data, nil)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func encodeSnapshot(a collab.Archive) ([]byte, error) {
	return encMode.Marshal(snapshotRecord{
		SessionID:  a.SessionID,
		Name:       a.Name,
		Version:    a.Version,
		Reason:     a.Reason,
		CreatedAt:  a.CreatedAt.UnixNano(),
		ArchivedAt: a.ArchivedAt.UnixNano(),
		Content:    compress(a.Content),
	})
}

func decodeSnapshot(data []byte) (collab.Archive, error) {
	var record snapshotRecord
	if err := decMode.Unmarshal(data, &record); err != nil {
		return collab.Archive{}, err
	}
	content, err := decompress(record.Content)
	if err != nil {
		return collab.Archive{}, err
	}
	return collab.Archive{
		SessionID:  record.SessionID,
		Name:       record.Name,
		Version:    record.Version,
		Reason:     record.Reason,
		CreatedAt:  time.Unix(0, record.CreatedAt).UTC(),
		ArchivedAt: time.Unix(0, record.ArchivedAt).UTC(),
		Content:    content,
	}, nil
}
