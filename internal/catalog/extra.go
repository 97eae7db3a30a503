package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Extra holds document members the model does not know. They are written back
// verbatim after the known ones so editing a document never drops data.
type Extra map[string]json.RawMessage

func (e Extra) clone() Extra {
	if len(e) == 0 {
		return nil
	}
	out := make(Extra, len(e))
	for k, v := range e {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// unknownMembers returns the members of the object in data whose names are not
// in known. Values are compacted so indentation never makes two loads differ.
func unknownMembers(data []byte, known ...string) (Extra, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for _, k := range known {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	for k, v := range all {
		var buf bytes.Buffer
		if err := json.Compact(&buf, v); err != nil {
			return nil, err
		}
		all[k] = buf.Bytes()
	}
	return Extra(all), nil
}

// marshalWithExtra encodes v, which must encode as an object, and appends
// extra in key order. Known members win over extras of the same name.
func marshalWithExtra(v any, extra Extra) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	obj := bytes.TrimSpace(buf.Bytes())
	if len(extra) == 0 {
		return obj, nil
	}
	if len(obj) < 2 || obj[len(obj)-1] != '}' {
		return nil, fmt.Errorf("catalog: %T does not encode as an object", v)
	}

	var known map[string]json.RawMessage
	if err := json.Unmarshal(obj, &known); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		if _, dup := known[k]; !dup {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := append([]byte(nil), obj[:len(obj)-1]...)
	for i, k := range keys {
		if len(known) > 0 || i > 0 {
			out = append(out, ',')
		}
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		out = append(out, name...)
		out = append(out, ':')
		out = append(out, extra[k]...)
	}
	return append(out, '}'), nil
}
