// Package multipart decodes multipart/form-data bodies into typed parts.
//
// The decoder operates on byte buffers end to end. File payloads are never
// routed through string conversion, so binary content (non-UTF8 bytes)
// survives decoding intact. The transport layer must state explicitly
// whether the body arrived base64-wrapped; the decoder never guesses.
package multipart

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoBoundary means the boundary token is empty or never occurs in
	// the body.
	ErrNoBoundary = errors.New("multipart: boundary not found")
	// ErrEmptyBody means the body is empty or yielded zero parts.
	ErrEmptyBody = errors.New("multipart: no parts in body")
	// ErrBadEncoding means the declared base64 transport wrapping did not
	// decode.
	ErrBadEncoding = errors.New("multipart: invalid base64 transport encoding")
)

// FilePart is the single binary payload of a form. Data holds the raw
// bytes exactly as they appeared between the part headers and the closing
// boundary.
type FilePart struct {
	Name        string
	Filename    string
	ContentType string
	Data        []byte
}

// Form is the decoded result: text fields by name plus at most one file
// part. When a body carries several file parts the first one wins.
type Form struct {
	Fields map[string]string
	File   *FilePart
}

var (
	crlf       = []byte("\r\n")
	headerSep  = []byte("\r\n\r\n")
	dashDash   = []byte("--")
	dispHeader = "content-disposition"
	typeHeader = "content-type"
)

// Decode splits body into parts delimited by "--boundary". base64Encoded
// signals that the transport delivered a text-safe wrapping of the raw
// bytes; the wrapping is removed on byte buffers before any scanning.
//
// A part with no recognizable Content-Disposition header is skipped, not an
// error. A missing file part is left for the caller to treat as a
// validation failure.
func Decode(body []byte, boundary string, base64Encoded bool) (*Form, error) {
	if len(body) == 0 {
		return nil, ErrEmptyBody
	}
	if base64Encoded {
		raw := make([]byte, base64.StdEncoding.DecodedLen(len(body)))
		n, err := base64.StdEncoding.Decode(raw, bytes.TrimSpace(body))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadEncoding, err)
		}
		body = raw[:n]
	}
	if boundary == "" {
		return nil, ErrNoBoundary
	}

	delim := append([]byte("--"), boundary...)
	start := bytes.Index(body, delim)
	if start < 0 {
		return nil, ErrNoBoundary
	}

	form := &Form{Fields: make(map[string]string)}
	parts := 0

	// Single forward pass: each segment between two delimiter occurrences
	// is one part; the terminal "--boundary--" stops the scan.
	rest := body[start+len(delim):]
	for {
		if bytes.HasPrefix(rest, dashDash) {
			break // closing delimiter
		}
		next := bytes.Index(rest, delim)
		var segment []byte
		if next < 0 {
			segment = rest
		} else {
			segment = rest[:next]
		}

		if decodePart(segment, form) {
			parts++
		}

		if next < 0 {
			break
		}
		rest = rest[next+len(delim):]
	}

	if parts == 0 {
		return nil, ErrEmptyBody
	}
	return form, nil
}

// decodePart parses one segment into form. Returns false when the segment
// carries no usable Content-Disposition header.
func decodePart(segment []byte, form *Form) bool {
	// The delimiter line ends with CRLF; drop that artifact.
	segment = bytes.TrimPrefix(segment, crlf)

	sep := bytes.Index(segment, headerSep)
	if sep < 0 {
		return false
	}
	headerBlock := segment[:sep]
	content := segment[sep+len(headerSep):]
	// The encoder inserts one CRLF between content and the next boundary.
	content = bytes.TrimSuffix(content, crlf)

	var disposition, contentType string
	for _, line := range bytes.Split(headerBlock, crlf) {
		colon := bytes.IndexByte(line, ':')
		if colon < 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(string(line[:colon])))
		val := strings.TrimSpace(string(line[colon+1:]))
		switch key {
		case dispHeader:
			disposition = val
		case typeHeader:
			contentType = val
		}
	}

	if !strings.Contains(strings.ToLower(disposition), "form-data") {
		return false
	}
	name := dispositionParam(disposition, "name")
	if name == "" {
		return false
	}

	if filename := dispositionParam(disposition, "filename"); filename != "" {
		if form.File != nil {
			return true // one file per form; extra file parts are counted but ignored
		}
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		form.File = &FilePart{
			Name:        name,
			Filename:    filename,
			ContentType: contentType,
			Data:        content,
		}
		return true
	}

	form.Fields[name] = string(content)
	return true
}

// dispositionParam extracts a quoted parameter value, e.g. name="file".
// Parameters are matched whole so "filename" never satisfies "name", and
// the value runs to the closing quote, so semicolons inside the quotes
// (filename="a;b.pdf") survive.
func dispositionParam(header, param string) string {
	marker := param + `="`
	for i := 0; i+len(marker) <= len(header); i++ {
		if header[i:i+len(marker)] != marker {
			continue
		}
		// A parameter starts the header or follows "; ".
		if i > 0 {
			switch header[i-1] {
			case ';', ' ', '\t':
			default:
				continue
			}
		}
		rest := header[i+len(marker):]
		if end := strings.IndexByte(rest, '"'); end >= 0 {
			return rest[:end]
		}
		return ""
	}
	return ""
}
