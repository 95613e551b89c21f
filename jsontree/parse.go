package jsontree

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"unicode/utf8"
)

// Parse reads a single JSON value from data. limit bounds nesting depth of
// arrays and objects; exceeding it fails the parse rather than the stack.
// Trailing non-whitespace input after the value is an error.
func Parse(data []byte, limit int) (*Value, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("input is not valid UTF-8")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := parseValue(dec, limit)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after top-level value")
	}
	return v, nil
}

func parseValue(dec *json.Decoder, depth int) (*Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return parseToken(dec, tok, depth)
}

func parseToken(dec *json.Decoder, tok json.Token, depth int) (*Value, error) {
	switch t := tok.(type) {
	case nil:
		return NewNull(), nil
	case bool:
		return NewBool(t), nil
	case json.Number:
		return NewNumber(t.String()), nil
	case string:
		return NewString(t), nil
	case json.Delim:
		switch t {
		case '{':
			return parseObject(dec, depth-1)
		case '[':
			return parseArray(dec, depth-1)
		}
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

func parseObject(dec *json.Decoder, depth int) (*Value, error) {
	if depth < 0 {
		return nil, fmt.Errorf("exceeded max nesting depth")
	}
	obj := NewObject()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("object member name is not a string: %v", tok)
		}
		val, err := parseValue(dec, depth)
		if err != nil {
			return nil, err
		}
		obj.Set(name, val)
	}
	// consume '}'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return obj, nil
}

func parseArray(dec *json.Decoder, depth int) (*Value, error) {
	if depth < 0 {
		return nil, fmt.Errorf("exceeded max nesting depth")
	}
	arr := NewArray()
	for dec.More() {
		elem, err := parseValue(dec, depth)
		if err != nil {
			return nil, err
		}
		arr.Append(elem)
	}
	// consume ']'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return arr, nil
}
