package fetch

import (
	"bytes"
	"context"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tableflip.dev/tilegrid/pkg/imagecache"
)

func TestHTTPTransportFetch(t *testing.T) {
	var gotPath, gotAgent, gotAccept, gotRequestID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotAgent = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		gotRequestID = r.Header.Get("X-Request-Id")
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	tr, err := NewHTTPTransport(HTTPConfig{URLTemplate: srv.URL + "/img/{id}/{size}/{face}.png"})
	if err != nil {
		t.Fatal(err)
	}
	data, err := tr.Fetch(context.Background(), imagecache.Key{ID: "a b", Face: imagecache.FaceBack})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "png-bytes" {
		t.Errorf("body = %q", data)
	}
	if want := "/img/a%20b/normal/back.png"; gotPath != want {
		t.Errorf("path = %q, want %q", gotPath, want)
	}
	if gotAgent != "tilegrid/1.0" {
		t.Errorf("user agent = %q", gotAgent)
	}
	if gotAccept != "image/*" {
		t.Errorf("accept = %q", gotAccept)
	}
	if gotRequestID == "" {
		t.Error("missing request id")
	}
}

func TestHTTPTransportErrors(t *testing.T) {
	tests := map[string]struct {
		handler  http.HandlerFunc
		maxBytes int64
		want     string
	}{
		"not found": {
			handler: func(w http.ResponseWriter, _ *http.Request) { http.Error(w, "nope", http.StatusNotFound) },
			want:    "http 404",
		},
		"oversize": {
			handler:  func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(strings.Repeat("x", 64))) },
			maxBytes: 16,
			want:     "exceeds 16 bytes",
		},
		"empty": {
			handler: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) },
			want:    "empty body",
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()
			tr, err := NewHTTPTransport(HTTPConfig{URLTemplate: srv.URL + "/{id}", MaxBytes: tc.maxBytes})
			if err != nil {
				t.Fatal(err)
			}
			_, err = tr.Fetch(context.Background(), imagecache.Key{ID: "x"})
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want it to mention %q", err, tc.want)
			}
		})
	}
}

func TestNewHTTPTransportValidates(t *testing.T) {
	for _, tmpl := range []string{
		"https://img.example.com/static.png",
		"ftp://img.example.com/{id}",
		"",
	} {
		if _, err := NewHTTPTransport(HTTPConfig{URLTemplate: tmpl}); err == nil {
			t.Errorf("template %q: expected an error", tmpl)
		}
	}
	if _, err := NewHTTPTransport(HTTPConfig{URLTemplate: "https://img.example.com/{id}.jpg"}); err != nil {
		t.Errorf("valid template rejected: %v", err)
	}
}

func TestSyntheticTransport(t *testing.T) {
	tr := SyntheticTransport{}
	a, err := tr.Fetch(context.Background(), imagecache.Key{ID: "a", Size: imagecache.SizeSmall})
	if err != nil {
		t.Fatal(err)
	}
	again, _ := tr.Fetch(context.Background(), imagecache.Key{ID: "a", Size: imagecache.SizeSmall})
	if string(a) != string(again) {
		t.Fatal("synthetic images should be deterministic")
	}
	img, err := png.Decode(bytes.NewReader(a))
	if err != nil {
		t.Fatal(err)
	}
	w, h := Dimensions(imagecache.SizeSmall)
	if b := img.Bounds(); b.Dx() != w || b.Dy() != h {
		t.Fatalf("bounds = %v, want %dx%d", b, w, h)
	}
	back, _ := tr.Fetch(context.Background(), imagecache.Key{ID: "a", Size: imagecache.SizeSmall, Face: imagecache.FaceBack})
	if string(back) == string(a) {
		t.Fatal("back face should differ from the front")
	}
}
