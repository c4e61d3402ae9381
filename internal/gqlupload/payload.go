package gqlupload

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"sort"
	"strconv"
	"strings"
)

// FileMap maps a file index to the variable paths it fills.
type FileMap map[string][]string

// Keys returns the indices in ascending numeric order.
func (m FileMap) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA != nil || errB != nil {
			return keys[i] < keys[j]
		}
		return a < b
	})
	return keys
}

// MarshalJSON writes the indices in ascending numeric order, so "10" follows
// "9" rather than "1".
func (m FileMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalNoEscape(k)
		if err != nil {
			return nil, err
		}
		paths, err := marshalNoEscape(m[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(paths)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MapJSON returns the "map" part of the request.
func (p *Payload) MapJSON() (string, error) {
	b, err := p.Map.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("encode file map: %w", err)
	}
	return string(b), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// WriteMultipart writes the operations, map and file parts, in that order,
// to mw. The caller closes mw.
func (p *Payload) WriteMultipart(mw *multipart.Writer) error {
	if err := mw.WriteField("operations", p.Operations); err != nil {
		return fmt.Errorf("write operations: %w", err)
	}

	mapJSON, err := p.MapJSON()
	if err != nil {
		return err
	}
	if err := mw.WriteField("map", mapJSON); err != nil {
		return fmt.Errorf("write map: %w", err)
	}

	for _, part := range p.Files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%d"; filename="%s"`,
			part.Index, quoteEscaper.Replace(part.File.Filename())))
		contentType := part.File.ContentType()
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h.Set("Content-Type", contentType)

		w, err := mw.CreatePart(h)
		if err != nil {
			return fmt.Errorf("create part %d: %w", part.Index, err)
		}
		if _, err := io.Copy(w, part.File.Reader()); err != nil {
			return fmt.Errorf("write part %d: %w", part.Index, err)
		}
	}

	return nil
}
