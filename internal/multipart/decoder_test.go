package multipart

import (
	"bytes"
	"encoding/base64"
	mime "mime/multipart"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encodeForm builds a body with the stdlib encoder so the decoder is tested
// against an independent implementation.
func encodeForm(t *testing.T, fields map[string]string, fileName string, fileData []byte) ([]byte, string) {
	t.Helper()

	var buf bytes.Buffer
	w := mime.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileName != "" {
		part, err := w.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = part.Write(fileData)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes(), w.Boundary()
}

func TestDecode_RoundTrip(t *testing.T) {
	// Payload deliberately contains bytes that are invalid UTF-8 and a
	// sequence that looks like a header separator.
	payload := []byte{0x25, 0x50, 0x44, 0x46, 0x00, 0xff, 0xfe, 0x0d, 0x0a, 0x0d, 0x0a, 0x89, 0x50}
	fields := map[string]string{
		"folderId":    "folder-42",
		"status":      "APPROVED",
		"explanation": "",
	}

	body, boundary := encodeForm(t, fields, "cv.pdf", payload)

	form, err := Decode(body, boundary, false)
	require.NoError(t, err)

	assert.Equal(t, "folder-42", form.Fields["folderId"])
	assert.Equal(t, "APPROVED", form.Fields["status"])
	require.NotNil(t, form.File)
	assert.Equal(t, "file", form.File.Name)
	assert.Equal(t, "cv.pdf", form.File.Filename)
	assert.Equal(t, payload, form.File.Data)
}

func TestDecode_Base64Transport(t *testing.T) {
	payload := []byte{0x00, 0x01, 0xfe, 0xff, 0x42}
	body, boundary := encodeForm(t, map[string]string{"folderName": "Falabella"}, "scan.png", payload)

	wrapped := []byte(base64.StdEncoding.EncodeToString(body))

	form, err := Decode(wrapped, boundary, true)
	require.NoError(t, err)
	assert.Equal(t, "Falabella", form.Fields["folderName"])
	require.NotNil(t, form.File)
	assert.Equal(t, payload, form.File.Data)

	// The same wrapped body parsed as raw bytes must fail: the boundary is
	// not a literal byte sequence inside base64 text.
	_, err = Decode(wrapped, boundary, false)
	assert.ErrorIs(t, err, ErrNoBoundary)
}

func TestDecode_Base64Invalid(t *testing.T) {
	_, err := Decode([]byte("!!not base64!!"), "b", true)
	assert.ErrorIs(t, err, ErrBadEncoding)
}

func TestDecode_DefaultContentType(t *testing.T) {
	boundary := "xxBOUNDARYxx"
	raw := "--xxBOUNDARYxx\r\n" +
		"Content-Disposition: form-data; name=\"file\"; filename=\"blob.bin\"\r\n" +
		"\r\n" +
		"abc\r\n" +
		"--xxBOUNDARYxx--\r\n"

	form, err := Decode([]byte(raw), boundary, false)
	require.NoError(t, err)
	require.NotNil(t, form.File)
	assert.Equal(t, "application/octet-stream", form.File.ContentType)
	assert.Equal(t, []byte("abc"), form.File.Data)
}

func TestDecode_SkipsPartWithoutDisposition(t *testing.T) {
	boundary := "bnd"
	raw := "--bnd\r\n" +
		"X-Other: value\r\n" +
		"\r\n" +
		"ignored\r\n" +
		"--bnd\r\n" +
		"Content-Disposition: form-data; name=\"folderId\"\r\n" +
		"\r\n" +
		"f-1\r\n" +
		"--bnd--\r\n"

	form, err := Decode([]byte(raw), boundary, false)
	require.NoError(t, err)
	assert.Equal(t, "f-1", form.Fields["folderId"])
	assert.Nil(t, form.File)
}

func TestDecode_FilenameDoesNotSatisfyName(t *testing.T) {
	boundary := "bnd"
	// A malformed part: filename but no name parameter. Must be skipped,
	// not misparsed as name="x.bin".
	raw := "--bnd\r\n" +
		"Content-Disposition: form-data; filename=\"x.bin\"\r\n" +
		"\r\n" +
		"data\r\n" +
		"--bnd--\r\n"

	_, err := Decode([]byte(raw), boundary, false)
	assert.ErrorIs(t, err, ErrEmptyBody)
}

func TestDecode_SemicolonInQuotedFilename(t *testing.T) {
	// Semicolons separate disposition parameters but are legal inside a
	// quoted value; the filename must come back whole.
	payload := []byte("binary")
	body, boundary := encodeForm(t, map[string]string{"folderId": "f-1"}, "a;b.pdf", payload)

	form, err := Decode(body, boundary, false)
	require.NoError(t, err)
	assert.Equal(t, "f-1", form.Fields["folderId"])
	require.NotNil(t, form.File)
	assert.Equal(t, "file", form.File.Name)
	assert.Equal(t, "a;b.pdf", form.File.Filename)
	assert.Equal(t, payload, form.File.Data)
}

func TestDecode_Errors(t *testing.T) {
	body, boundary := encodeForm(t, map[string]string{"a": "b"}, "", nil)

	tests := []struct {
		name     string
		body     []byte
		boundary string
		wantErr  error
	}{
		{"empty body", nil, boundary, ErrEmptyBody},
		{"empty boundary", body, "", ErrNoBoundary},
		{"boundary absent", body, "some-other-boundary", ErrNoBoundary},
		{"only closing delimiter", []byte("--bnd--\r\n"), "bnd", ErrEmptyBody},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.body, tt.boundary, false)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDecode_FirstFileWins(t *testing.T) {
	boundary := "bnd"
	raw := "--bnd\r\n" +
		"Content-Disposition: form-data; name=\"file\"; filename=\"one.txt\"\r\n" +
		"\r\n" +
		"first\r\n" +
		"--bnd\r\n" +
		"Content-Disposition: form-data; name=\"file2\"; filename=\"two.txt\"\r\n" +
		"\r\n" +
		"second\r\n" +
		"--bnd--\r\n"

	form, err := Decode([]byte(raw), boundary, false)
	require.NoError(t, err)
	require.NotNil(t, form.File)
	assert.Equal(t, "one.txt", form.File.Filename)
	assert.Equal(t, []byte("first"), form.File.Data)
}
