package httpclient

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
)

// MultipartBody represents a multipart/form-data request body.
type MultipartBody struct {
	// Fields are simple key-value form fields.
	Fields map[string]string
	// Files are file upload fields.
	Files []FileField
}

// FileField is one uploaded file. Exactly one of Path, Reader or Data is used,
// in that order of preference.
type FileField struct {
	// FieldName is the form field name (e.g. "file", "audio").
	FieldName string
	// FileName is sent to the server. Defaults to the base name of Path.
	FileName string
	// ContentType defaults to application/octet-stream.
	ContentType string
	// Path streams the file from disk without buffering it in memory.
	Path   string
	Reader io.Reader
	Data   []byte
}

// encode streams the body through a pipe so large audio files are never
// held in memory. Files given by Path are opened up front so a missing file
// fails before the request is sent.
func (m *MultipartBody) encode() (io.Reader, string, error) {
	opened := make([]*os.File, len(m.Files))
	for i, f := range m.Files {
		if f.Path == "" {
			continue
		}
		file, err := os.Open(f.Path)
		if err != nil {
			closeAll(opened)
			return nil, "", fmt.Errorf("open %s: %w", f.Path, err)
		}
		opened[i] = file
	}

	pr, pw := io.Pipe()
	w := multipart.NewWriter(pw)

	go func() {
		defer closeAll(opened)
		pw.CloseWithError(m.write(w, opened))
	}()

	return pr, w.FormDataContentType(), nil
}

func (m *MultipartBody) write(w *multipart.Writer, opened []*os.File) error {
	for k, v := range m.Fields {
		if err := w.WriteField(k, v); err != nil {
			return err
		}
	}

	for i, f := range m.Files {
		name := f.FileName
		if name == "" && f.Path != "" {
			name = filepath.Base(f.Path)
		}

		var part io.Writer
		var err error
		if f.ContentType != "" {
			header := make(textproto.MIMEHeader)
			header.Set("Content-Disposition",
				`form-data; name="`+escapeQuotes(f.FieldName)+`"; filename="`+escapeQuotes(name)+`"`)
			header.Set("Content-Type", f.ContentType)
			part, err = w.CreatePart(header)
		} else {
			part, err = w.CreateFormFile(f.FieldName, name)
		}
		if err != nil {
			return err
		}

		switch {
		case opened[i] != nil:
			_, err = io.Copy(part, opened[i])
		case f.Reader != nil:
			_, err = io.Copy(part, f.Reader)
		default:
			_, err = part.Write(f.Data)
		}
		if err != nil {
			return err
		}
	}

	return w.Close()
}

func closeAll(files []*os.File) {
	for _, f := range files {
		if f != nil {
			_ = f.Close()
		}
	}
}

func escapeQuotes(s string) string {
	var buf bytes.Buffer
	for _, b := range []byte(s) {
		if b == '"' || b == '\\' {
			buf.WriteByte('\\')
		}
		buf.WriteByte(b)
	}
	return buf.String()
}
