package news

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	client := NewClient("", "key", 0)

	if client == nil {
		t.Fatal("Expected client to be initialized, got nil")
	}

	if client.baseURL != "https://newsapi.org" {
		t.Errorf("Expected baseURL to be 'https://newsapi.org', got '%s'", client.baseURL)
	}

	if client.client == nil || client.client.Timeout != 15*time.Second {
		t.Fatal("Expected HTTP client with default timeout")
	}
}

func TestFetchHeadlines(t *testing.T) {
	var gotQuery string
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/everything" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		gotQuery = r.URL.RawQuery
		gotKey = r.Header.Get("X-Api-Key")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","articles":[
			{"source":{"name":"Wire"},"title":"Bitcoin &amp; ETFs <b>surge</b>","url":"https://a","publishedAt":"2024-10-10T10:10:10Z"},
			{"source":{"name":"Wire"},"title":"[Removed]","url":"https://b","publishedAt":"2024-10-10T09:10:10Z"},
			{"source":{"name":"Desk"},"title":"Bitcoin miners sell","url":"https://c","publishedAt":"2024-10-10T08:10:10Z"}
		]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret", time.Second)
	articles, err := client.FetchHeadlines(context.Background(), "bitcoin", 5)
	if err != nil {
		t.Fatalf("FetchHeadlines() error = %v", err)
	}

	if gotKey != "secret" {
		t.Errorf("Expected api key header, got %q", gotKey)
	}
	for _, want := range []string{"q=bitcoin", "searchIn=title", "language=en", "sortBy=publishedAt", "pageSize=5"} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("Expected query to contain %q, got %q", want, gotQuery)
		}
	}

	titles := Titles(articles)
	if len(titles) != 2 {
		t.Fatalf("Expected 2 headlines, got %d: %v", len(titles), titles)
	}
	if titles[0] != "Bitcoin & ETFs surge" {
		t.Errorf("Expected cleaned title, got %q", titles[0])
	}
	if articles[1].Source != "Desk" {
		t.Errorf("Expected source Desk, got %q", articles[1].Source)
	}
}

func TestFetchHeadlinesErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"status":"error","code":"apiKeyInvalid","message":"Your API key is invalid."}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "bad", time.Second)
	_, err := client.FetchHeadlines(context.Background(), "bitcoin", 5)
	if err == nil {
		t.Fatal("Expected error for 401 response")
	}
	if !strings.Contains(err.Error(), "Your API key is invalid.") {
		t.Errorf("Expected provider message in error, got %v", err)
	}
}

func TestFetchHeadlinesMissingKey(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "", time.Second)
	if _, err := client.FetchHeadlines(context.Background(), "bitcoin", 5); err == nil {
		t.Fatal("Expected error when api key is missing")
	}
}

func TestCleanTitle(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{
			input:    "<p>Hello <strong>world</strong>!</p>",
			expected: "Hello world!",
		},
		{
			input:    "Text with &amp; entities &lt;test&gt;",
			expected: "Text with & entities <test>",
		},
		{
			input:    "  Whitespace  around  ",
			expected: "Whitespace  around",
		},
	}

	for _, tc := range testCases {
		result := cleanTitle(tc.input)
		if result != tc.expected {
			t.Errorf("cleanTitle(%q) = %q, expected %q", tc.input, result, tc.expected)
		}
	}
}
