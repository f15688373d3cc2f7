package clean

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/joseph-ayodele/retypeset/internal/common"
)

func TestChunkTextGroupsSentences(t *testing.T) {
	text := "First sentence here. Second one follows! Third is a question? Fourth closes."
	chunks := chunkText(text, 50)

	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want at least 2", len(chunks))
	}
	for i, ch := range chunks {
		if len(ch) > 50 && strings.Count(ch, ".")+strings.Count(ch, "!")+strings.Count(ch, "?") > 1 {
			t.Fatalf("chunk %d exceeds limit with multiple sentences: %q", i, ch)
		}
	}
	joined := strings.Join(chunks, " ")
	for _, want := range []string{"First sentence here.", "Second one follows!", "Third is a question?", "Fourth closes."} {
		if !strings.Contains(joined, want) {
			t.Fatalf("sentence %q lost in chunking: %q", want, joined)
		}
	}
}

func TestChunkTextOversizedSentence(t *testing.T) {
	long := strings.Repeat("word ", 200) + "end."
	chunks := chunkText(long, 100)
	if len(chunks) != 1 {
		t.Fatalf("oversized sentence split into %d chunks", len(chunks))
	}
}

func TestFilterResponseDropsBoilerplate(t *testing.T) {
	raw := "Here is the corrected text:\nThe quick brown fox.\n* a bullet\n# heading\nSecond line stays."
	got := filterResponse(raw)
	want := "The quick brown fox.\nSecond line stays."
	if got != want {
		t.Fatalf("filtered %q, want %q", got, want)
	}
}

func TestValidateGenerateResponse(t *testing.T) {
	good := []byte(`{"model":"phi3:3.8b","response":"text","done":true}`)
	if err := ValidateJSONAgainstSchema(generateResponseSchema, good); err != nil {
		t.Fatalf("valid response rejected: %v", err)
	}
	bad := []byte(`{"model":"phi3:3.8b","done":true}`)
	if err := ValidateJSONAgainstSchema(generateResponseSchema, bad); err == nil {
		t.Fatal("response without text accepted")
	}
}

// fakeOllama answers /api/tags and /api/generate.
func fakeOllama(t *testing.T, models []string, generate func(prompt string) string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			type m struct {
				Name string `json:"name"`
			}
			var ms []m
			for _, name := range models {
				ms = append(ms, m{Name: name})
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"models": ms})
		case "/api/generate":
			var req generateRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"model": req.Model, "response": generate(req.Prompt), "done": true,
			})
		default:
			http.NotFound(w, r)
		}
	}))
}

func newTestCleaner(url string) *OllamaCleaner {
	return NewOllamaCleaner(common.CleanConfig{URL: url, Model: "phi3:3.8b", MaxChunkChars: 600}, nil)
}

func TestCleanTextRoundTrip(t *testing.T) {
	srv := fakeOllama(t, []string{"phi3:3.8b"}, func(prompt string) string {
		// The chunk is the last paragraph of the prompt.
		idx := strings.LastIndex(prompt, "\n\n")
		chunk := prompt[idx+2:]
		return strings.ReplaceAll(chunk, "c0mpany", "company")
	})
	defer srv.Close()

	c := newTestCleaner(srv.URL)
	got, err := c.CleanText(context.Background(), "In 2021, the c0mpany grew fast.")
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	if got != "In 2021, the company grew fast." {
		t.Fatalf("cleaned %q", got)
	}
}

func TestCleanTextModelFallback(t *testing.T) {
	srv := fakeOllama(t, []string{"llama3:8b"}, func(prompt string) string {
		idx := strings.LastIndex(prompt, "\n\n")
		return prompt[idx+2:]
	})
	defer srv.Close()

	c := newTestCleaner(srv.URL)
	model, err := c.CheckConnection(context.Background())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if model != "llama3:8b" {
		t.Fatalf("fell back to %q", model)
	}
}

func TestCleanTextKeepsOriginalWhenTooShort(t *testing.T) {
	srv := fakeOllama(t, []string{"phi3:3.8b"}, func(string) string { return "ok" })
	defer srv.Close()

	c := newTestCleaner(srv.URL)
	in := "This sentence is clearly much longer than the two characters the model returned."
	got, err := c.CleanText(context.Background(), in)
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	if got != in {
		t.Fatalf("degenerate completion accepted: %q", got)
	}
}

func TestCleanTextRecoversFromTransientServerError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			_ = json.NewEncoder(w).Encode(map[string]any{"models": []map[string]string{{"name": "phi3:3.8b"}}})
			return
		}
		calls++
		if calls == 1 {
			http.Error(w, "busy", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"model": "phi3:3.8b", "response": "All recovered fine here.", "done": true})
	}))
	defer srv.Close()

	c := newTestCleaner(srv.URL)
	got, err := c.CleanText(context.Background(), "All rec0vered fine here.")
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	if got != "All recovered fine here." {
		t.Fatalf("cleaned %q", got)
	}
	if calls != 2 {
		t.Fatalf("generate called %d times, want 2", calls)
	}
}

func TestCleanTextUnreachableServerReturnsInput(t *testing.T) {
	c := newTestCleaner("http://127.0.0.1:1")
	in := "Untouched text."
	got, err := c.CleanText(context.Background(), in)
	if err == nil {
		t.Fatal("unreachable server reported no error")
	}
	if got != in {
		t.Fatalf("input not preserved: %q", got)
	}
}
