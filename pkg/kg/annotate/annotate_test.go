package annotate

import (
	"context"
	"testing"

	"github.com/solitaryfield/textkg/pkg/kg"
)

func TestChunkOffsets(t *testing.T) {
	text := "Alice works with Bob at Acme. Bob moved to Berlin last year."

	var sents []kg.Sentence
	Chunk(text)(func(s kg.Sentence) bool {
		sents = append(sents, s)
		return true
	})

	if len(sents) != 2 {
		t.Fatalf("got %d sentences, want 2", len(sents))
	}
	if sents[0].Text != "Alice works with Bob at Acme." {
		t.Errorf("first sentence = %q", sents[0].Text)
	}
	for i, s := range sents {
		if s.Index != i {
			t.Errorf("sentence %d has index %d", i, s.Index)
		}
		if text[s.Start:s.End] != s.Text {
			t.Errorf("offsets of sentence %d do not recover its text: %q != %q",
				i, text[s.Start:s.End], s.Text)
		}
	}
	if sents[1].Start <= sents[0].Start {
		t.Error("sentence offsets are not increasing")
	}
}

func TestChunkEmpty(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t  \n"} {
		count := 0
		Chunk(text)(func(kg.Sentence) bool {
			count++
			return true
		})
		if count != 0 {
			t.Errorf("Chunk(%q) yielded %d sentences, want 0", text, count)
		}
	}
}

func TestChunkNoTerminalPunctuation(t *testing.T) {
	count := 0
	Chunk("Alice met Bob in Berlin")(func(s kg.Sentence) bool {
		count++
		if s.Text != "Alice met Bob in Berlin" {
			t.Errorf("sentence = %q", s.Text)
		}
		return true
	})
	if count != 1 {
		t.Fatalf("got %d sentences, want 1", count)
	}
}

func TestChunkRestartable(t *testing.T) {
	seq := Chunk("First sentence here. Second sentence here. Third sentence here.")

	first := 0
	seq(func(kg.Sentence) bool {
		first++
		return false // break after the first sentence
	})
	if first != 1 {
		t.Fatalf("early break consumed %d sentences", first)
	}

	second := 0
	seq(func(s kg.Sentence) bool {
		if s.Index != second {
			t.Errorf("restarted sequence out of order: index %d at position %d", s.Index, second)
		}
		second++
		return true
	})
	if second != 3 {
		t.Fatalf("restarted range got %d sentences, want 3", second)
	}
}

func TestChunkRepeatedSentence(t *testing.T) {
	// The same sentence text appears twice; offsets must not collapse
	// onto the first occurrence.
	text := "Bob smiled. Bob smiled."

	var sents []kg.Sentence
	Chunk(text)(func(s kg.Sentence) bool {
		sents = append(sents, s)
		return true
	})
	if len(sents) != 2 {
		t.Fatalf("got %d sentences, want 2", len(sents))
	}
	if sents[1].Start <= sents[0].Start {
		t.Errorf("second occurrence starts at %d, not after %d", sents[1].Start, sents[0].Start)
	}
	for i, s := range sents {
		if text[s.Start:s.End] != s.Text {
			t.Errorf("offsets of sentence %d do not recover its text", i)
		}
	}
}

func TestAnnotate(t *testing.T) {
	text := "Alice works with Bob at Acme. Bob moved to Berlin."

	sents, err := NewProse().Annotate(context.Background(), text)
	if err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	if len(sents) != 2 {
		t.Fatalf("got %d sentences, want 2", len(sents))
	}
	for i, s := range sents {
		if len(s.Tokens) == 0 {
			t.Errorf("sentence %d has no tokens", i)
		}
		if text[s.Start:s.End] != s.Text {
			t.Errorf("sentence %d offsets do not recover its text", i)
		}
		for _, tok := range s.Tokens {
			if tok.Tag == "" {
				t.Errorf("token %q in sentence %d has no tag", tok.Text, i)
			}
		}
	}
}

func TestAnnotateEmpty(t *testing.T) {
	sents, err := NewProse().Annotate(context.Background(), "   ")
	if err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	if len(sents) != 0 {
		t.Fatalf("got %d sentences, want 0", len(sents))
	}
}

func TestAnnotateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewProse().Annotate(ctx, "Alice works at Acme."); err == nil {
		t.Fatal("expected context cancellation error")
	}
}

func TestLemma(t *testing.T) {
	cases := []struct {
		text string
		tag  string
		want string
	}{
		{"works", "VBZ", "work"},
		{"working", "VBG", "work"},
		{"worked", "VBD", "work"},
		{"joined", "VBD", "join"},
		{"joins", "VBZ", "join"},
		{"left", "VBD", "leave"},
		{"promoted", "VBN", "promote"},
		{"studies", "VBZ", "study"},
		{"planned", "VBD", "plan"},
		{"organized", "VBD", "organize"},
		{"organizes", "VBZ", "organize"},
		{"collaborates", "VBZ", "collaborate"},
		{"volunteering", "VBG", "volunteer"},
		{"is", "VBZ", "be"},
		{"was", "VBD", "be"},
		{"went", "VBD", "go"},
		{"founded", "VBD", "found"},
		{"passes", "VBZ", "pass"},
		// Non-verb tags are lowercased only.
		{"Alice", "NNP", "alice"},
		{"Left", "NNP", "left"},
		{"organized", "JJ", "organized"},
	}
	for _, c := range cases {
		if got := Lemma(c.text, c.tag); got != c.want {
			t.Errorf("Lemma(%q, %s) = %q, want %q", c.text, c.tag, got, c.want)
		}
	}
}
