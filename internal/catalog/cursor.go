package catalog

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"unicode/utf16"
)

// Tag bytes for serialized catalog values. The catalog's type system carries
// more variants than these, but only the two below hold data this tool needs.
const (
	tagAsciiString = 0x00
	tagJSONObject  = 0x07
)

// cursor is a little-endian reader over a decoded catalog section.
type cursor struct {
	data []byte
	pos  int
}

func (c *cursor) remaining() int {
	return len(c.data) - c.pos
}

func (c *cursor) u8() (byte, error) {
	if c.remaining() < 1 {
		return 0, fmt.Errorf("reading byte at offset %d: past end of %d byte buffer", c.pos, len(c.data))
	}
	b := c.data[c.pos]
	c.pos++
	return b, nil
}

func (c *cursor) i32() (int32, error) {
	if c.remaining() < 4 {
		return 0, fmt.Errorf("reading int32 at offset %d: past end of %d byte buffer", c.pos, len(c.data))
	}
	v := int32(binary.LittleEndian.Uint32(c.data[c.pos:]))
	c.pos += 4
	return v, nil
}

func (c *cursor) bytes(n int) ([]byte, error) {
	if n < 0 || c.remaining() < n {
		return nil, fmt.Errorf("reading %d bytes at offset %d: past end of %d byte buffer", n, c.pos, len(c.data))
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

func (c *cursor) skip(n int) error {
	if n < 0 || c.remaining() < n {
		return fmt.Errorf("skipping %d bytes at offset %d: past end of %d byte buffer", n, c.pos, len(c.data))
	}
	c.pos += n
	return nil
}

// readObject decodes one tagged value at the given offset. An ASCII string is
// returned as string, a JSON object as map[string]any. Any other tag yields
// (nil, nil): the caller treats such keys as absent rather than failing the
// whole catalog.
func readObject(data []byte, offset int) (any, error) {
	if offset < 0 || offset >= len(data) {
		return nil, fmt.Errorf("object offset %d outside %d byte buffer", offset, len(data))
	}

	c := &cursor{data: data, pos: offset}
	tag, err := c.u8()
	if err != nil {
		return nil, err
	}

	switch tag {
	case tagAsciiString:
		n, err := c.i32()
		if err != nil {
			return nil, err
		}
		raw, err := c.bytes(int(n))
		if err != nil {
			return nil, err
		}
		return string(raw), nil

	case tagJSONObject:
		// Two length-prefixed runs carry assembly-qualified type name
		// fragments we have no use for.
		for i := 0; i < 2; i++ {
			n, err := c.u8()
			if err != nil {
				return nil, err
			}
			if err := c.skip(int(n)); err != nil {
				return nil, err
			}
		}
		n, err := c.i32()
		if err != nil {
			return nil, err
		}
		raw, err := c.bytes(int(n))
		if err != nil {
			return nil, err
		}
		text, err := decodeUTF16LE(raw)
		if err != nil {
			return nil, err
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(text), &obj); err != nil {
			return nil, fmt.Errorf("parsing embedded JSON object: %w", err)
		}
		return obj, nil
	}

	return nil, nil
}

// decodeUTF16LE converts little-endian UTF-16 bytes to a Go string, tolerating
// an optional leading BOM.
func decodeUTF16LE(raw []byte) (string, error) {
	if len(raw)%2 != 0 {
		return "", fmt.Errorf("UTF-16 payload has odd length %d", len(raw))
	}

	units := make([]uint16, 0, len(raw)/2)
	for i := 0; i < len(raw); i += 2 {
		units = append(units, binary.LittleEndian.Uint16(raw[i:]))
	}
	if len(units) > 0 && units[0] == 0xFEFF {
		units = units[1:]
	}

	return string(utf16.Decode(units)), nil
}
