package ocr

import (
	"context"
	"errors"
	"image"
	"strings"
	"testing"
)

const sampleTSV = `level	page_num	block_num	par_num	line_num	word_num	left	top	width	height	conf	text
1	1	0	0	0	0	0	0	640	480	-1
4	1	1	1	1	0	40	30	560	24	-1
5	1	1	1	1	1	40	30	80	24	96.52	Invoice
5	1	1	1	1	2	130	31	60	22	91.03	Total
5	1	1	1	2	1	40	70	90	24	42.10	$1O0.00
5	1	1	1	2	2	140	70	30	24	-1
`

func TestParseTSV(t *testing.T) {
	words := parseTSV(sampleTSV)
	if len(words) != 3 {
		t.Fatalf("parsed %d words, want 3", len(words))
	}
	if words[0].Text != "Invoice" {
		t.Fatalf("first word %q", words[0].Text)
	}
	if got, want := words[0].Box, image.Rect(40, 30, 120, 54); got != want {
		t.Fatalf("first box %v, want %v", got, want)
	}
	if words[0].Confidence < 0.96 || words[0].Confidence > 0.97 {
		t.Fatalf("first confidence %.4f", words[0].Confidence)
	}
	// Low-confidence recognition is kept, not dropped.
	if words[2].Text != "$1O0.00" || words[2].Confidence > 0.5 {
		t.Fatalf("low-confidence word mishandled: %+v", words[2])
	}
}

// fakeRunner serves canned stdout per leading argument pattern.
type fakeRunner struct {
	version string
	tsv     string
	err     error
	calls   int
}

func (r *fakeRunner) Run(_ context.Context, _ string, args ...string) ([]byte, []byte, error) {
	r.calls++
	if r.err != nil {
		return nil, []byte("boom"), r.err
	}
	if len(args) > 0 && args[0] == "--version" {
		return []byte(r.version), nil, nil
	}
	return []byte(r.tsv), nil, nil
}

func TestResolveVersion(t *testing.T) {
	e := NewTesseractEngine(Config{Language: "eng"}, nil)
	e.runner = &fakeRunner{version: "tesseract 5.3.4\n libgif 5.2.1\n"}

	v, err := e.ResolveVersion(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if v != "tesseract/5.3.4" {
		t.Fatalf("version %q", v)
	}
	if e.Version() != v {
		t.Fatal("Version() does not return the cached value")
	}
}

func TestResolveVersionFailureIsFatal(t *testing.T) {
	e := NewTesseractEngine(Config{}, nil)
	e.runner = &fakeRunner{err: errors.New("no such binary")}
	if _, err := e.ResolveVersion(context.Background()); err == nil {
		t.Fatal("missing binary did not fail version resolution")
	}
}

func TestRecognizeParsesRunnerOutput(t *testing.T) {
	fr := &fakeRunner{tsv: sampleTSV}
	e := NewTesseractEngine(Config{Language: "eng", PSM: 6, OEM: 1}, nil)
	e.runner = fr

	words, err := e.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 10, 10)))
	if err != nil {
		t.Fatalf("recognize: %v", err)
	}
	if len(words) != 3 {
		t.Fatalf("got %d words, want 3", len(words))
	}
	if fr.calls != 1 {
		t.Fatalf("runner called %d times, want 1", fr.calls)
	}
}

func TestRecognizeWrapsRunnerError(t *testing.T) {
	e := NewTesseractEngine(Config{}, nil)
	e.runner = &fakeRunner{err: errors.New("timed out")}

	_, err := e.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 10, 10)))
	if err == nil || !strings.Contains(err.Error(), "tesseract tsv") {
		t.Fatalf("error not wrapped: %v", err)
	}
}
