package catstatus

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestImageURL(t *testing.T) {
	p := NewHTTPProvider(HTTPProviderConfig{})
	if url := p.ImageURL(404); url != "https://http.cat/404.jpg" {
		t.Fatalf("ImageURL(404) = %s", url)
	}
	p = NewHTTPProvider(HTTPProviderConfig{BaseURL: "http://localhost:1234/"})
	if url := p.ImageURL(200); url != "http://localhost:1234/200.jpg" {
		t.Fatalf("ImageURL(200) = %s", url)
	}
}

func TestFetchReturnsBody(t *testing.T) {
	var requested string
	images := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = r.URL.Path
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpeg bytes"))
	}))
	defer images.Close()

	b, err := NewHTTPProvider(HTTPProviderConfig{BaseURL: images.URL}).Fetch(context.Background(), 400)
	if err != nil {
		t.Fatalf("Fetch error = %v", err)
	}
	if string(b) != "jpeg bytes" {
		t.Fatalf("Fetch body = %q", b)
	}
	if requested != "/400.jpg" {
		t.Fatalf("requested %s, want /400.jpg", requested)
	}
}

func TestFetchNonSuccessIsFetchError(t *testing.T) {
	images := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusServiceUnavailable)
	}))
	defer images.Close()

	_, err := NewHTTPProvider(HTTPProviderConfig{BaseURL: images.URL}).Fetch(context.Background(), 404)
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("error = %v, want *FetchError", err)
	}
	if fetchErr.Code != 404 {
		t.Fatalf("FetchError.Code = %d, want 404", fetchErr.Code)
	}
}

func TestFetchUnreachableIsFetchError(t *testing.T) {
	images := httptest.NewServer(http.NotFoundHandler())
	url := images.URL
	images.Close()

	_, err := NewHTTPProvider(HTTPProviderConfig{BaseURL: url}).Fetch(context.Background(), 500)
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) || fetchErr.Code != 500 {
		t.Fatalf("error = %v, want *FetchError for 500", err)
	}
	if fetchErr.Unwrap() == nil {
		t.Fatal("FetchError does not wrap the cause")
	}
}
