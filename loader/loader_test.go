package loader

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildDOCX(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"></Types>`))
	require.NoError(t, err)
	w, err = zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestResolveType(t *testing.T) {
	r := NewRegistry(Options{})
	docx := buildDOCX(t, `<w:p><w:r><w:t>x</w:t></w:r></w:p>`)

	tests := []struct {
		name     string
		filename string
		declared string
		data     []byte
		want     string
		wantErr  bool
	}{
		{name: "declared pdf", filename: "a.bin", declared: "application/pdf", want: MimePDF},
		{name: "declared with params", filename: "a", declared: "text/plain; charset=utf-8", want: MimeText},
		{name: "octet stream guessed by extension", filename: "Guide.MD", declared: "application/octet-stream", want: MimeMarkdown},
		{name: "docx extension", filename: "a.docx", declared: "", want: MimeDOCX},
		{name: "sniffed text", filename: "README", declared: "", data: []byte("plain words here"), want: MimeText},
		{name: "sniffed docx", filename: "upload", declared: "application/octet-stream", data: docx, want: MimeDOCX},
		{name: "unsupported", filename: "a.exe", declared: "application/x-msdownload", data: []byte{0x4d, 0x5a, 0x00, 0x00}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.ResolveType(tt.filename, tt.declared, tt.data)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnsupportedType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadText(t *testing.T) {
	r := NewRegistry(Options{})
	doc, err := r.Load(context.Background(), "faq.txt", MimeText, []byte("hello\nworld"))
	require.NoError(t, err)
	assert.Equal(t, "hello\nworld", doc.Text)
	assert.Equal(t, "faq.txt", doc.Source)
}

func TestLoadUnsupported(t *testing.T) {
	r := NewRegistry(Options{})
	_, err := r.Load(context.Background(), "x.png", "image/png", []byte{1})
	require.ErrorIs(t, err, ErrUnsupportedType)
}

func TestLoadBadPDF(t *testing.T) {
	r := NewRegistry(Options{})
	_, err := r.Load(context.Background(), "broken.pdf", MimePDF, []byte("not a pdf at all"))
	require.ErrorIs(t, err, ErrExtract)
}

func TestExtractDOCX(t *testing.T) {
	data := buildDOCX(t,
		`<w:p><w:r><w:t>Return policy</w:t></w:r></w:p>`+
			`<w:p><w:r><w:t xml:space="preserve">Items </w:t></w:r><w:r><w:t>ship</w:t><w:tab/><w:t>fast</w:t></w:r></w:p>`)

	text, err := ExtractDOCX(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, "Return policy\nItems ship\tfast", text)
}

func TestExtractDOCXSkipsRevisionsAndFieldCodes(t *testing.T) {
	data := buildDOCX(t,
		`<w:p><w:hyperlink><w:r><w:t>see site</w:t></w:r></w:hyperlink></w:p>`+
			`<w:tbl><w:tr>`+
			`<w:tc><w:p><w:r><w:t>Size</w:t></w:r></w:p></w:tc>`+
			`<w:tc><w:p><w:r><w:t>M</w:t></w:r></w:p></w:tc>`+
			`</w:tr></w:tbl>`+
			`<w:p><w:del><w:r><w:delText>old</w:delText></w:r></w:del>`+
			`<w:ins><w:r><w:t>new</w:t></w:r></w:ins>`+
			`<w:r><w:instrText xml:space="preserve"> PAGE </w:instrText></w:r>`+
			`<w:r><w:t xml:space="preserve"> price</w:t></w:r></w:p>`)

	text, err := ExtractDOCX(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, "see site\nSize\nM\nnew price", text)
}

func TestExtractDOCXNotZip(t *testing.T) {
	_, err := ExtractDOCX(context.Background(), []byte("plain"))
	require.Error(t, err)
}

func TestExtractMarkdown(t *testing.T) {
	src := "# Shipping\n\nOrders ship in **two** days.\n\n- fast\n- cheap\n\n```\ncode line\n```\n"
	text, err := ExtractMarkdown(context.Background(), []byte(src))
	require.NoError(t, err)

	assert.Contains(t, text, "Shipping\n\nOrders ship in two days.")
	assert.Contains(t, text, "* fast")
	assert.Contains(t, text, "* cheap")
	assert.Contains(t, text, "code line")
	assert.NotContains(t, text, "**")
	assert.NotContains(t, text, "#")
}

func TestExtractHTML(t *testing.T) {
	page := `<html><head><title>t</title><style>body{}</style></head>
<body><h1>Opening hours</h1><script>var x = 1;</script><p>Mon - Fri, 9 to 5.</p></body></html>`
	text, err := ExtractHTML(context.Background(), []byte(page))
	require.NoError(t, err)

	assert.Contains(t, text, "Opening hours")
	assert.Contains(t, text, "Mon - Fri, 9 to 5.")
	assert.NotContains(t, text, "var x")
	assert.NotContains(t, text, "body{}")
}

func TestURLLoader(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><body><p>Remote page text</p></body></html>"))
	})
	mux.HandleFunc("/notes.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("remote notes"))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	l := NewURLLoader(NewRegistry(Options{}), time.Second, 1<<20)
	ctx := context.Background()

	doc, err := l.Fetch(ctx, srv.URL+"/page")
	require.NoError(t, err)
	assert.Equal(t, "Remote page text", doc.Text)
	assert.Equal(t, srv.URL+"/page", doc.Source)

	doc, err = l.Fetch(ctx, srv.URL+"/notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "remote notes", doc.Text)
	assert.Equal(t, srv.URL+"/notes.txt", doc.Source)

	_, err = l.Fetch(ctx, srv.URL+"/missing")
	require.Error(t, err)

	_, err = l.Fetch(ctx, "ftp://example.com/file")
	require.ErrorIs(t, err, ErrUnsupportedType)
}

func TestURLLoaderSizeLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		if r.URL.Path == "/streamed.txt" {
			// no Content-Length, the limit has to catch it while reading
			w.(http.Flusher).Flush()
		}
		w.Write([]byte(strings.Repeat("x", 20)))
	}))
	defer srv.Close()
	ctx := context.Background()

	exact := NewURLLoader(NewRegistry(Options{}), time.Second, 20)
	doc, err := exact.Fetch(ctx, srv.URL+"/exact.txt")
	require.NoError(t, err)
	assert.Len(t, doc.Text, 20)

	small := NewURLLoader(NewRegistry(Options{}), time.Second, 19)
	_, err = small.Fetch(ctx, srv.URL+"/declared.txt")
	require.ErrorIs(t, err, ErrTooLarge)
	_, err = small.Fetch(ctx, srv.URL+"/streamed.txt")
	require.ErrorIs(t, err, ErrTooLarge)
}
