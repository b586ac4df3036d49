package capability

import (
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
)

// DefaultBodyCap is the default per-request maximum body size (§4.2.7).
// Streaming upload without buffering is an explicit non-goal; every body
// is read fully into memory up to this cap.
const DefaultBodyCap = 1 << 20 // 1 MiB

// Part is one field of a parsed multipart body.
type Part struct {
	Field       string
	Filename    string
	ContentType string
	Bytes       []byte
}

// Body is the bounded body-reader capability primitive. It never streams
// past its cap: once the cap is reached, reading fails rather than
// silently truncating, so a handler never processes a partial body as if
// it were complete.
type Body struct {
	cap int64
}

// NewBody returns a body-reader primitive bounded by capBytes. A capBytes
// of 0 uses DefaultBodyCap.
func NewBody(capBytes int64) *Body {
	if capBytes <= 0 {
		capBytes = DefaultBodyCap
	}
	return &Body{cap: capBytes}
}

// ReadAll reads r fully into memory, failing with ErrInvalid if the stream
// exceeds the cap.
func (b *Body) ReadAll(r io.Reader) ([]byte, error) {
	limited := io.LimitReader(r, b.cap+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrIOFailure, err)
	}
	if int64(len(data)) > b.cap {
		return nil, fmt.Errorf("%w: body exceeds %d byte cap", ErrInvalid, b.cap)
	}
	return data, nil
}

// ParseMultipart reads r as a multipart/form-data body with the given
// boundary, returning each field as a Part. Every part's size counts
// against the same total cap as ReadAll — a multipart body cannot be used
// to exceed the overall limit by splitting across parts.
func (b *Body) ParseMultipart(r io.Reader, boundary string) ([]Part, error) {
	reader := multipart.NewReader(r, boundary)
	var parts []Part
	var total int64

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: reading multipart part: %v", ErrInvalid, err)
		}

		remaining := b.cap - total
		if remaining <= 0 {
			return nil, fmt.Errorf("%w: multipart body exceeds %d byte cap", ErrInvalid, b.cap)
		}
		data, err := io.ReadAll(io.LimitReader(part, remaining+1))
		part.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: reading part body: %v", ErrIOFailure, err)
		}
		if int64(len(data)) > remaining {
			return nil, fmt.Errorf("%w: multipart body exceeds %d byte cap", ErrInvalid, b.cap)
		}
		total += int64(len(data))

		parts = append(parts, Part{
			Field:       part.FormName(),
			Filename:    part.FileName(),
			ContentType: partContentType(part.Header),
			Bytes:       data,
		})
	}
	return parts, nil
}

func partContentType(header textproto.MIMEHeader) string {
	ct := header.Get("Content-Type")
	if ct == "" {
		return "text/plain; charset=us-ascii"
	}
	media, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ct
	}
	return media
}
