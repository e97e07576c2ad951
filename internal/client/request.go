package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"

	"github.com/propdesk/propdesk/internal/constants"
)

// Request represents an API request
type Request struct {
	Method string
	// Path is a resource path such as /inspections/123, or an absolute URL.
	Path string
	// Body is nil, a *Multipart form, url.Values, raw []byte, or any value
	// that is sent as JSON.
	Body    any
	Headers Headers
	// IsRefresh marks the token refresh call itself.
	IsRefresh bool
	// SkipAuth sends the request without Authorization and CSRF headers.
	SkipAuth bool
	// WithCredentials sends cookies even when the API is on another origin.
	WithCredentials bool
}

// Response represents an API response
type Response struct {
	StatusCode int
	Headers    Headers
	Body       []byte
}

// Multipart is a multipart/form-data body. The boundary is chosen when the
// request is sent, so callers never set Content-Type for it.
type Multipart struct {
	Fields []FormField
	Files  []FormFile
}

// FormField is a plain multipart field.
type FormField struct {
	Name  string
	Value string
}

// FormFile is a multipart file part.
type FormFile struct {
	Field    string
	Filename string
	Content  []byte
}

type bodyKind int

const (
	bodyNone bodyKind = iota
	bodyJSON
	bodyForm
	bodyMultipart
	bodyRaw
)

func kindOf(body any) bodyKind {
	switch body.(type) {
	case nil:
		return bodyNone
	case *Multipart, Multipart:
		return bodyMultipart
	case url.Values:
		return bodyForm
	case []byte:
		return bodyRaw
	default:
		return bodyJSON
	}
}

// encodedBody is a request body serialized once and replayable on retry.
type encodedBody struct {
	kind        bodyKind
	data        []byte
	contentType string
}

func (b encodedBody) reader() io.Reader {
	if b.kind == bodyNone {
		return nil
	}
	return bytes.NewReader(b.data)
}

func encodeBody(body any) (encodedBody, error) {
	switch v := body.(type) {
	case nil:
		return encodedBody{kind: bodyNone}, nil
	case Multipart:
		return encodeMultipart(&v)
	case *Multipart:
		return encodeMultipart(v)
	case url.Values:
		return encodedBody{kind: bodyForm, data: []byte(v.Encode()), contentType: constants.ContentTypeFormURLEncoded}, nil
	case []byte:
		return encodedBody{kind: bodyRaw, data: v}, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return encodedBody{}, fmt.Errorf("failed to marshal request body: %w", err)
		}
		return encodedBody{kind: bodyJSON, data: data, contentType: constants.ContentTypeJSON}, nil
	}
}

func encodeMultipart(m *Multipart) (encodedBody, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range m.Fields {
		if err := w.WriteField(f.Name, f.Value); err != nil {
			return encodedBody{}, fmt.Errorf("failed to write form field %q: %w", f.Name, err)
		}
	}
	for _, f := range m.Files {
		part, err := w.CreateFormFile(f.Field, f.Filename)
		if err != nil {
			return encodedBody{}, fmt.Errorf("failed to create form file %q: %w", f.Field, err)
		}
		if _, err = part.Write(f.Content); err != nil {
			return encodedBody{}, fmt.Errorf("failed to write form file %q: %w", f.Field, err)
		}
	}
	if err := w.Close(); err != nil {
		return encodedBody{}, fmt.Errorf("failed to close multipart body: %w", err)
	}
	return encodedBody{kind: bodyMultipart, data: buf.Bytes(), contentType: w.FormDataContentType()}, nil
}
