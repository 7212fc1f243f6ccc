package demux

import (
	"testing"

	"github.com/avelsen/vision-consensus/internal/consensus"
)

func TestDemultiplex_LabeledSegments(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		filenames []string
		want      []string
	}{
		{
			name:      "image-prefixed labels",
			raw:       "Image cat.jpg: A\nImage dog.jpg: B",
			filenames: []string{"cat.jpg", "dog.jpg"},
			want:      []string{"A", "B"},
		},
		{
			name:      "bare filename labels",
			raw:       "cat.jpg: A\ndog.jpg: B",
			filenames: []string{"cat.jpg", "dog.jpg"},
			want:      []string{"A", "B"},
		},
		{
			name:      "case insensitive labels",
			raw:       "IMAGE Cat.JPG: A\nimage DOG.jpg: B",
			filenames: []string{"cat.jpg", "dog.jpg"},
			want:      []string{"A", "B"},
		},
		{
			name:      "multi-line segment captured up to next label",
			raw:       "Image q1.png: the capital is Paris\nbecause of history\nImage q2.png: 42",
			filenames: []string{"q1.png", "q2.png"},
			want:      []string{"the capital is Paris\nbecause of history", "42"},
		},
		{
			name:      "labels out of order still resolved",
			raw:       "Image dog.jpg: B\nImage cat.jpg: A",
			filenames: []string{"cat.jpg", "dog.jpg"},
			want:      []string{"A", "B"},
		},
		{
			name:      "filename with regex metacharacters",
			raw:       "Image q(1).png: C",
			filenames: []string{"q(1).png"},
			want:      []string{"C"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Demultiplex(Combined{
				Model:     "model-a",
				RawText:   tt.raw,
				Filenames: tt.filenames,
				OK:        true,
			})

			if len(got) != len(tt.filenames) {
				t.Fatalf("got %d answers, want %d", len(got), len(tt.filenames))
			}
			for i, want := range tt.want {
				if got[i].Text != want {
					t.Errorf("answer[%d].Text = %q, want %q", i, got[i].Text, want)
				}
				if !got[i].OK {
					t.Errorf("answer[%d] not OK", i)
				}
				if got[i].Unresolved {
					t.Errorf("answer[%d] unexpectedly unresolved", i)
				}
			}
		})
	}
}

func TestDemultiplex_FailedBatch(t *testing.T) {
	got := Demultiplex(Combined{
		Model:        "model-a",
		Filenames:    []string{"a.jpg", "b.jpg"},
		OK:           false,
		ErrorMessage: "timeout",
	})

	if len(got) != 2 {
		t.Fatalf("got %d answers, want 2", len(got))
	}
	for i, a := range got {
		if a.OK {
			t.Errorf("answer[%d] should have failed", i)
		}
		if a.ErrorMessage != "timeout" {
			t.Errorf("answer[%d].ErrorMessage = %q, want %q", i, a.ErrorMessage, "timeout")
		}
	}
}

func TestDemultiplex_OrdinalLines(t *testing.T) {
	got := Demultiplex(Combined{
		Model:     "model-a",
		RawText:   "Here are the answers:\n1. A\n2) B\n3. C",
		Filenames: []string{"one.jpg", "two.jpg", "three.jpg"},
		OK:        true,
	})

	want := []string{"A", "B", "C"}
	for i, w := range want {
		if got[i].Text != w {
			t.Errorf("answer[%d].Text = %q, want %q", i, got[i].Text, w)
		}
	}
}

func TestDemultiplex_PositionalLetters(t *testing.T) {
	// No labels, no ordinals: fall through to scanning standalone letters.
	got := Demultiplex(Combined{
		Model:     "model-a",
		RawText:   "The answers are A then C",
		Filenames: []string{"one.jpg", "two.jpg"},
		OK:        true,
	})

	if got[0].Text != "A" || got[1].Text != "C" {
		t.Errorf("got %q and %q, want A and C", got[0].Text, got[1].Text)
	}
}

func TestDemultiplex_LineByLine(t *testing.T) {
	// Three letters for two images defeats positional extraction; the
	// line-based fallback takes over.
	got := Demultiplex(Combined{
		Model:     "model-a",
		RawText:   "first answer is B or D or A\n\nsecond answer is unknown",
		Filenames: []string{"one.jpg", "two.jpg"},
		OK:        true,
	})

	if got[0].Text != "B" {
		t.Errorf("answer[0].Text = %q, want B (letter token on line)", got[0].Text)
	}
	if got[1].Text != "second answer is unknown" {
		t.Errorf("answer[1].Text = %q, want whole trimmed line", got[1].Text)
	}
}

func TestDemultiplex_TerminalFallback(t *testing.T) {
	raw := "everything is E"
	got := Demultiplex(Combined{
		Model:     "model-a",
		RawText:   raw,
		Filenames: []string{"one.jpg", "two.jpg"},
		OK:        true,
	})

	// one.jpg gets the single non-blank line; two.jpg has nothing left and
	// receives the whole response, flagged as unresolved.
	if got[0].Text != "everything is E" || got[0].Unresolved {
		t.Errorf("answer[0] = %+v, want resolved line", got[0])
	}
	if got[1].Text != raw {
		t.Errorf("answer[1].Text = %q, want entire response", got[1].Text)
	}
	if !got[1].Unresolved {
		t.Error("answer[1] should be flagged unresolved")
	}
}

func TestDemultiplex_AnswersFeedAnalyzer(t *testing.T) {
	got := Demultiplex(Combined{
		Model:     "model-a",
		RawText:   "Image cat.jpg: A",
		Filenames: []string{"cat.jpg"},
		OK:        true,
	})

	analyzed := consensus.Analyze(got)
	if analyzed[0].Status != consensus.StatusConsensus || analyzed[0].Matches != 1 {
		t.Errorf("analyzed = %+v, want consensus with one match", analyzed[0])
	}
}

func TestPositionalLetters_Guard(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		total  int
		wantOK bool
	}{
		{"exact count fires", "A B", 2, true},
		{"too many letters is ambiguous", "A B C", 2, false},
		{"too few letters is ambiguous", "A", 2, false},
		{"letters outside A-D ignored", "E F", 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := positionalLetters(tt.raw, "x.jpg", 0, tt.total)
			if ok != tt.wantOK {
				t.Errorf("positionalLetters(%q) ok = %v, want %v", tt.raw, ok, tt.wantOK)
			}
		})
	}
}
