package tools

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// Fingerprint digests a tool id together with its canonical params. Params
// that are not valid JSON are hashed as given.
func Fingerprint(toolID string, params json.RawMessage) string {
	h := sha256.New()
	h.Write([]byte(toolID))
	h.Write([]byte{0})
	if canon, err := Canonical(params); err == nil {
		h.Write(canon)
	} else {
		h.Write(params)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Canonical re-encodes a JSON value with object keys sorted at every level
// and whitespace removed. Number literals are kept verbatim. Empty input is
// treated as null.
func Canonical(raw []byte) ([]byte, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return []byte("null"), nil
	}
	d := jx.DecodeBytes(raw)
	var e jx.Encoder
	if err := canonicalValue(d, &e); err != nil {
		return nil, err
	}
	if d.Next() != jx.Invalid {
		return nil, errors.New("trailing data after value")
	}
	return e.Bytes(), nil
}

func canonicalValue(d *jx.Decoder, e *jx.Encoder) error {
	switch d.Next() {
	case jx.Object:
		fields := map[string][]byte{}
		var keys []string
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var sub jx.Encoder
			if err := canonicalValue(d, &sub); err != nil {
				return err
			}
			if _, dup := fields[key]; !dup {
				keys = append(keys, key)
			}
			fields[key] = sub.Bytes()
			return nil
		}); err != nil {
			return errors.Wrap(err, "object")
		}
		sort.Strings(keys)
		e.ObjStart()
		for _, k := range keys {
			e.FieldStart(k)
			e.Raw(fields[k])
		}
		e.ObjEnd()
	case jx.Array:
		e.ArrStart()
		if err := d.Arr(func(d *jx.Decoder) error {
			return canonicalValue(d, e)
		}); err != nil {
			return errors.Wrap(err, "array")
		}
		e.ArrEnd()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return err
		}
		e.Str(s)
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return err
		}
		e.Raw(n)
	case jx.Bool:
		b, err := d.Bool()
		if err != nil {
			return err
		}
		e.Bool(b)
	case jx.Null:
		if err := d.Null(); err != nil {
			return err
		}
		e.Null()
	default:
		return errors.New("invalid json value")
	}
	return nil
}
