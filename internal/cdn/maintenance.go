package cdn

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

// The maintenance service speaks protobuf. Its schema is not published, so
// the response is read schemalessly with protowire: the top-level message
// embeds a market-info message whose string fields carry the HD and SD
// bundle versions, in field-number order.

type wireField struct {
	num  protowire.Number
	typ  protowire.Type
	data []byte // set for length-delimited fields
}

func parseWireFields(data []byte) ([]wireField, error) {
	var fields []wireField
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("malformed field tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		f := wireField{num: num, typ: typ}
		if typ == protowire.BytesType {
			b, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
			}
			f.data = b
			data = data[n:]
		} else {
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// looksLikeVersion accepts strings such as "1.58.1333": printable,
// dot-separated, digit-bearing.
func looksLikeVersion(s string) bool {
	if s == "" || !utf8.ValidString(s) {
		return false
	}
	if !strings.Contains(s, ".") {
		return false
	}
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}

// bundleVersions extracts the HD and SD bundle versions from a decoded
// maintenance response. The HD version occupies the lower field number.
func bundleVersions(message []byte) (hd, sd string, err error) {
	top, err := parseWireFields(message)
	if err != nil {
		return "", "", fmt.Errorf("parsing maintenance response: %w", err)
	}

	for _, f := range top {
		if f.typ != protowire.BytesType {
			continue
		}
		inner, err := parseWireFields(f.data)
		if err != nil {
			continue
		}

		var versions []string
		for _, g := range inner {
			if g.typ == protowire.BytesType && looksLikeVersion(string(g.data)) {
				versions = append(versions, string(g.data))
			}
		}
		if len(versions) >= 2 {
			return versions[0], versions[1], nil
		}
		if len(versions) == 1 {
			return versions[0], versions[0], nil
		}
	}
	return "", "", fmt.Errorf("no bundle version in maintenance response")
}
