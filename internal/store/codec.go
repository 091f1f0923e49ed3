package store

import (
	"fmt"
	"time"

	"github.com/Tyrowin/chatrelay/internal/chat"
	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the on-disk message record. They must never be reused.
const (
	fieldID        protowire.Number = 1
	fieldAuthor    protowire.Number = 2
	fieldBody      protowire.Number = 3
	fieldCreatedAt protowire.Number = 4
)

// encodeRecord serializes a message as a protobuf wire-format record.
func encodeRecord(m chat.Message) []byte {
	b := make([]byte, 0, 24+len(m.Author)+len(m.Body))
	b = protowire.AppendTag(b, fieldID, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.ID))
	b = protowire.AppendTag(b, fieldAuthor, protowire.BytesType)
	b = protowire.AppendString(b, m.Author)
	b = protowire.AppendTag(b, fieldBody, protowire.BytesType)
	b = protowire.AppendString(b, m.Body)
	b = protowire.AppendTag(b, fieldCreatedAt, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.CreatedAt.UnixNano()))
	return b
}

// decodeRecord parses a record written by encodeRecord. Unknown fields are skipped.
func decodeRecord(b []byte) (chat.Message, error) {
	var m chat.Message
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return chat.Message{}, fmt.Errorf("decode tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldID && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			m.ID = int64(v)
		case num == fieldAuthor && typ == protowire.BytesType:
			m.Author, n = protowire.ConsumeString(b)
		case num == fieldBody && typ == protowire.BytesType:
			m.Body, n = protowire.ConsumeString(b)
		case num == fieldCreatedAt && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			m.CreatedAt = time.Unix(0, int64(v)).UTC()
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return chat.Message{}, fmt.Errorf("decode field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	if m.ID == 0 {
		return chat.Message{}, fmt.Errorf("decode: record has no id")
	}
	return m, nil
}
