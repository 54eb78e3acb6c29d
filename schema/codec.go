// Codec implements serialize(record) → bytes / parse(bytes) → record
// for Communication, using protobuf's wire-format primitives directly
// rather than a generated message (the schema/codegen pipeline is out
// of scope per spec.md §1). Every NodeState leaf type round-trips
// through a small self-describing Value wire format built on
// protowire's varint/fixed64/bytes primitives.
package schema

import (
	"fmt"
	"math"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"
)

// Communication field numbers.
const (
	fieldTag       = 1
	fieldNodeState = 2
	fieldDebug     = 3
	fieldFile      = 4
)

// Value field numbers (one of these set per encoded leaf/container).
const (
	valBool   = 1
	valInt    = 2
	valFloat  = 3
	valString = 4
	valRecord = 5
	valList   = 6
	valUint   = 7
)

// DebugMessage field numbers.
const (
	debugLevel = 1
	debugMsg   = 2
)

// FileAccess field numbers.
const (
	fileFilename = 1
	fileOffset   = 2
	fileReadNW   = 3
	fileData     = 4
)

// Entry field numbers (one record entry: key + value).
const (
	entryKey = 1
	entryVal = 2
)

// Encode serializes a Communication into bytes. Errors arise only from
// an unsupported NodeState leaf type — a malformed codec input, not a
// transport failure.
func Encode(c Communication) ([]byte, error) {
	var buf []byte
	buf = protowire.AppendTag(buf, fieldTag, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(c.Tag))

	switch c.Tag {
	case PayloadNodeState:
		recBytes, err := encodeRecord(c.NodeState)
		if err != nil {
			return nil, err
		}
		buf = protowire.AppendTag(buf, fieldNodeState, protowire.BytesType)
		buf = protowire.AppendBytes(buf, recBytes)
	case PayloadDebugMessage:
		buf = protowire.AppendTag(buf, fieldDebug, protowire.BytesType)
		buf = protowire.AppendBytes(buf, encodeDebug(c.Debug))
	case PayloadFileAccess:
		buf = protowire.AppendTag(buf, fieldFile, protowire.BytesType)
		buf = protowire.AppendBytes(buf, encodeFile(c.File))
	default:
		return nil, fmt.Errorf("schema: unknown payload tag %d", c.Tag)
	}
	return buf, nil
}

// Decode parses bytes back into a Communication.
func Decode(b []byte) (Communication, error) {
	var c Communication
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Communication{}, fmt.Errorf("schema: malformed tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case fieldTag:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Communication{}, fmt.Errorf("schema: malformed tag field: %w", protowire.ParseError(n))
			}
			c.Tag = PayloadTag(v)
			b = b[n:]
		case fieldNodeState:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Communication{}, fmt.Errorf("schema: malformed node_state: %w", protowire.ParseError(n))
			}
			rec, err := decodeRecord(v)
			if err != nil {
				return Communication{}, err
			}
			c.NodeState = rec
			b = b[n:]
		case fieldDebug:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Communication{}, fmt.Errorf("schema: malformed debug_message: %w", protowire.ParseError(n))
			}
			dbg, err := decodeDebug(v)
			if err != nil {
				return Communication{}, err
			}
			c.Debug = dbg
			b = b[n:]
		case fieldFile:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Communication{}, fmt.Errorf("schema: malformed file_access: %w", protowire.ParseError(n))
			}
			file, err := decodeFile(v)
			if err != nil {
				return Communication{}, err
			}
			c.File = file
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Communication{}, fmt.Errorf("schema: malformed unknown field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return c, nil
}

func encodeDebug(d DebugMessage) []byte {
	var buf []byte
	buf = protowire.AppendTag(buf, debugLevel, protowire.BytesType)
	buf = protowire.AppendBytes(buf, []byte(d.Level))
	buf = protowire.AppendTag(buf, debugMsg, protowire.BytesType)
	buf = protowire.AppendBytes(buf, []byte(d.Msg))
	return buf
}

func decodeDebug(b []byte) (DebugMessage, error) {
	var d DebugMessage
	for len(b) > 0 {
		num, _, n := protowire.ConsumeTag(b)
		if n < 0 {
			return d, fmt.Errorf("schema: malformed debug tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return d, fmt.Errorf("schema: malformed debug field: %w", protowire.ParseError(n))
		}
		switch num {
		case debugLevel:
			d.Level = string(v)
		case debugMsg:
			d.Msg = string(v)
		}
		b = b[n:]
	}
	return d, nil
}

func encodeFile(f FileAccess) []byte {
	var buf []byte
	buf = protowire.AppendTag(buf, fileFilename, protowire.BytesType)
	buf = protowire.AppendBytes(buf, []byte(f.Filename))
	buf = protowire.AppendTag(buf, fileOffset, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(f.Offset))
	buf = protowire.AppendTag(buf, fileReadNW, protowire.VarintType)
	buf = protowire.AppendVarint(buf, boolToVarint(f.ReadNotWrite))
	buf = protowire.AppendTag(buf, fileData, protowire.BytesType)
	buf = protowire.AppendBytes(buf, f.Data)
	return buf
}

func decodeFile(b []byte) (FileAccess, error) {
	var f FileAccess
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return f, fmt.Errorf("schema: malformed file tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case fileFilename:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return f, fmt.Errorf("schema: malformed filename: %w", protowire.ParseError(n))
			}
			f.Filename = string(v)
			b = b[n:]
		case fileOffset:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return f, fmt.Errorf("schema: malformed offset: %w", protowire.ParseError(n))
			}
			f.Offset = uint32(v)
			b = b[n:]
		case fileReadNW:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return f, fmt.Errorf("schema: malformed read_not_write: %w", protowire.ParseError(n))
			}
			f.ReadNotWrite = v != 0
			b = b[n:]
		case fileData:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return f, fmt.Errorf("schema: malformed data: %w", protowire.ParseError(n))
			}
			f.Data = append([]byte(nil), v...)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return f, fmt.Errorf("schema: malformed unknown file field: %w", protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return f, nil
}

func boolToVarint(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// encodeRecord encodes a nested map[string]any as a sequence of
// repeated Entry{key, value} submessages, field 1 of the Record
// wrapper. Keys are sorted for deterministic output.
func encodeRecord(rec map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf []byte
	for _, k := range keys {
		entryBytes, err := encodeEntry(k, rec[k])
		if err != nil {
			return nil, err
		}
		buf = protowire.AppendTag(buf, 1, protowire.BytesType)
		buf = protowire.AppendBytes(buf, entryBytes)
	}
	return buf, nil
}

func decodeRecord(b []byte) (map[string]any, error) {
	rec := map[string]any{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("schema: malformed record tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		if num != 1 {
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("schema: malformed record field: %w", protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, fmt.Errorf("schema: malformed entry: %w", protowire.ParseError(n))
		}
		key, val, err := decodeEntry(v)
		if err != nil {
			return nil, err
		}
		rec[key] = val
		b = b[n:]
	}
	return rec, nil
}

func encodeEntry(key string, value any) ([]byte, error) {
	var buf []byte
	buf = protowire.AppendTag(buf, entryKey, protowire.BytesType)
	buf = protowire.AppendBytes(buf, []byte(key))

	valBytes, err := encodeValue(value)
	if err != nil {
		return nil, err
	}
	buf = protowire.AppendTag(buf, entryVal, protowire.BytesType)
	buf = protowire.AppendBytes(buf, valBytes)
	return buf, nil
}

func decodeEntry(b []byte) (string, any, error) {
	var key string
	var val any
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return "", nil, fmt.Errorf("schema: malformed entry tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case entryKey:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return "", nil, fmt.Errorf("schema: malformed entry key: %w", protowire.ParseError(n))
			}
			key = string(v)
			b = b[n:]
		case entryVal:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return "", nil, fmt.Errorf("schema: malformed entry value: %w", protowire.ParseError(n))
			}
			decoded, err := decodeValue(v)
			if err != nil {
				return "", nil, err
			}
			val = decoded
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return "", nil, fmt.Errorf("schema: malformed entry field: %w", protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return key, val, nil
}

func encodeValue(v any) ([]byte, error) {
	var buf []byte
	switch val := v.(type) {
	case bool:
		buf = protowire.AppendTag(buf, valBool, protowire.VarintType)
		buf = protowire.AppendVarint(buf, boolToVarint(val))
	case int64:
		buf = protowire.AppendTag(buf, valInt, protowire.VarintType)
		buf = protowire.AppendVarint(buf, protowire.EncodeZigZag(val))
	case uint32:
		buf = protowire.AppendTag(buf, valUint, protowire.VarintType)
		buf = protowire.AppendVarint(buf, uint64(val))
	case float64:
		buf = protowire.AppendTag(buf, valFloat, protowire.Fixed64Type)
		buf = protowire.AppendFixed64(buf, math.Float64bits(val))
	case string:
		buf = protowire.AppendTag(buf, valString, protowire.BytesType)
		buf = protowire.AppendBytes(buf, []byte(val))
	case map[string]any:
		recBytes, err := encodeRecord(val)
		if err != nil {
			return nil, err
		}
		buf = protowire.AppendTag(buf, valRecord, protowire.BytesType)
		buf = protowire.AppendBytes(buf, recBytes)
	case []any:
		listBytes, err := encodeList(val)
		if err != nil {
			return nil, err
		}
		buf = protowire.AppendTag(buf, valList, protowire.BytesType)
		buf = protowire.AppendBytes(buf, listBytes)
	default:
		return nil, fmt.Errorf("schema: unsupported leaf type %T", v)
	}
	return buf, nil
}

func decodeValue(b []byte) (any, error) {
	num, typ, n := protowire.ConsumeTag(b)
	if n < 0 {
		return nil, fmt.Errorf("schema: malformed value tag: %w", protowire.ParseError(n))
	}
	b = b[n:]

	switch num {
	case valBool:
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, fmt.Errorf("schema: malformed bool value: %w", protowire.ParseError(n))
		}
		return v != 0, nil
	case valInt:
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, fmt.Errorf("schema: malformed int value: %w", protowire.ParseError(n))
		}
		return protowire.DecodeZigZag(v), nil
	case valUint:
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, fmt.Errorf("schema: malformed uint value: %w", protowire.ParseError(n))
		}
		return uint32(v), nil
	case valFloat:
		v, n := protowire.ConsumeFixed64(b)
		if n < 0 {
			return nil, fmt.Errorf("schema: malformed float value: %w", protowire.ParseError(n))
		}
		return math.Float64frombits(v), nil
	case valString:
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, fmt.Errorf("schema: malformed string value: %w", protowire.ParseError(n))
		}
		return string(v), nil
	case valRecord:
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, fmt.Errorf("schema: malformed record value: %w", protowire.ParseError(n))
		}
		return decodeRecord(v)
	case valList:
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, fmt.Errorf("schema: malformed list value: %w", protowire.ParseError(n))
		}
		return decodeList(v)
	default:
		_ = typ
		return nil, fmt.Errorf("schema: unknown value field %d", num)
	}
}

func encodeList(list []any) ([]byte, error) {
	var buf []byte
	for _, item := range list {
		itemBytes, err := encodeValue(item)
		if err != nil {
			return nil, err
		}
		buf = protowire.AppendTag(buf, 1, protowire.BytesType)
		buf = protowire.AppendBytes(buf, itemBytes)
	}
	return buf, nil
}

func decodeList(b []byte) ([]any, error) {
	var out []any
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("schema: malformed list tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		if num != 1 {
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("schema: malformed list field: %w", protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, fmt.Errorf("schema: malformed list item: %w", protowire.ParseError(n))
		}
		item, err := decodeValue(v)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
		b = b[n:]
	}
	return out, nil
}

// EncodeFileCatalog serializes a FileCatalog as a repeated
// field-1 Entry{1: filename, 2: filesize} submessage sequence, which
// DecodeFileCatalog reads back with decodeList-style iteration.
func EncodeFileCatalog(cat FileCatalog) []byte {
	var buf []byte
	for _, e := range cat.Entries {
		var entry []byte
		entry = protowire.AppendTag(entry, 1, protowire.BytesType)
		entry = protowire.AppendBytes(entry, []byte(e.Filename))
		entry = protowire.AppendTag(entry, 2, protowire.VarintType)
		entry = protowire.AppendVarint(entry, e.Filesize)

		buf = protowire.AppendTag(buf, 1, protowire.BytesType)
		buf = protowire.AppendBytes(buf, entry)
	}
	return buf
}

// DecodeFileCatalog parses bytes produced by EncodeFileCatalog.
func DecodeFileCatalog(b []byte) (FileCatalog, error) {
	var cat FileCatalog
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return cat, fmt.Errorf("schema: malformed catalog tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		if num != 1 {
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return cat, fmt.Errorf("schema: malformed catalog field: %w", protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}
		entryBytes, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return cat, fmt.Errorf("schema: malformed catalog entry: %w", protowire.ParseError(n))
		}
		b = b[n:]

		var entry FileCatalogEntry
		eb := entryBytes
		for len(eb) > 0 {
			enum, etyp, en := protowire.ConsumeTag(eb)
			if en < 0 {
				return cat, fmt.Errorf("schema: malformed catalog entry tag: %w", protowire.ParseError(en))
			}
			eb = eb[en:]
			switch enum {
			case 1:
				v, en := protowire.ConsumeBytes(eb)
				if en < 0 {
					return cat, fmt.Errorf("schema: malformed catalog filename: %w", protowire.ParseError(en))
				}
				entry.Filename = string(v)
				eb = eb[en:]
			case 2:
				v, en := protowire.ConsumeVarint(eb)
				if en < 0 {
					return cat, fmt.Errorf("schema: malformed catalog filesize: %w", protowire.ParseError(en))
				}
				entry.Filesize = v
				eb = eb[en:]
			default:
				en := protowire.ConsumeFieldValue(enum, etyp, eb)
				if en < 0 {
					return cat, fmt.Errorf("schema: malformed catalog unknown field: %w", protowire.ParseError(en))
				}
				eb = eb[en:]
			}
		}
		cat.Entries = append(cat.Entries, entry)
	}
	return cat, nil
}
