// Package gqlupload implements the GraphQL multipart request protocol used to
// send mutations that carry file attachments.
//
// A request is split in three parts:
//
//   - operations: the JSON of {"query": ..., "variables": ...} with every
//     file replaced by null
//   - map: a JSON object from file index to the variable paths it fills,
//     e.g. {"0": ["variables.documentos.rtu"]}
//   - one form part per file, named by its index
//
// Indices are assigned depth-first in first-encounter order. The receiving
// server rejoins files to variables by index, so the order is stable for a
// given input tree.
package gqlupload

import (
	"fmt"
	"io"
	"reflect"
	"sort"
	"strconv"
)

// File is a binary attachment embedded in a variables tree.
type File interface {
	Filename() string
	ContentType() string
	Reader() io.Reader
}

// Part is one extracted file with its assigned index.
type Part struct {
	Index int
	File  File
}

// Payload is the wire-ready form of one multipart GraphQL request.
type Payload struct {
	Operations string
	Map        FileMap
	Files      []Part
}

type operations struct {
	Query     string `json:"query"`
	Variables any    `json:"variables"`
}

// Encode walks variables, extracts every File into the payload and returns
// the operations JSON with those files replaced by null. The variables tree
// itself is not modified.
//
// Supported containers are Object, map[string]any, []any and, through
// reflection, any other slice, array or string-keyed map. Structs and other
// values are treated as opaque leaves. Go maps are walked in sorted key
// order, which is also the order encoding/json writes them in.
func Encode(query string, variables any) (*Payload, error) {
	e := &encoder{fileMap: make(FileMap)}
	tree := e.walk(variables, "variables")

	ops, err := marshalNoEscape(operations{Query: query, Variables: tree})
	if err != nil {
		return nil, fmt.Errorf("encode operations: %w", err)
	}

	return &Payload{
		Operations: string(ops),
		Map:        e.fileMap,
		Files:      e.files,
	}, nil
}

type encoder struct {
	fileMap FileMap
	files   []Part
}

func (e *encoder) walk(v any, path string) any {
	switch x := v.(type) {
	case nil:
		return nil
	case File:
		if isNilPointer(x) {
			return nil
		}
		idx := len(e.files)
		e.fileMap[strconv.Itoa(idx)] = []string{path}
		e.files = append(e.files, Part{Index: idx, File: x})
		return nil
	case Object:
		out := make(Object, len(x))
		for i, f := range x {
			out[i] = Field{Key: f.Key, Value: e.walk(f.Value, path+"."+f.Key)}
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for _, key := range sortedKeys(x) {
			out[key] = e.walk(x[key], path+"."+key)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = e.walk(item, path+"."+strconv.Itoa(i))
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		if rv.Elem().Kind() == reflect.Struct {
			return v
		}
		return e.walk(rv.Elem().Interface(), path)

	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return v
		}
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil
		}
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = e.walk(rv.Index(i).Interface(), path+"."+strconv.Itoa(i))
		}
		return out

	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		if rv.IsNil() {
			return nil
		}
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
		out := make(map[string]any, len(keys))
		for _, k := range keys {
			out[k.String()] = e.walk(rv.MapIndex(k).Interface(), path+"."+k.String())
		}
		return out
	}

	return v
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// isNilPointer reports whether f is a typed nil, such as an absent
// *core.FileHandle stored in a map.
func isNilPointer(f File) bool {
	rv := reflect.ValueOf(f)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
