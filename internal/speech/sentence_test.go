package speech

import (
	"testing"
	"time"
)

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "simple story lines",
			text: "Mina found a kite. It was red! Would it fly?",
			want: []string{"Mina found a kite.", "It was red!", "Would it fly?"},
		},
		{
			name: "honorific does not split",
			text: "Mr. Fox waved hello. Mina waved back.",
			want: []string{"Mr. Fox waved hello.", "Mina waved back."},
		},
		{
			name: "decimal number stays whole",
			text: "The kite flew 3.5 meters high. Everyone cheered.",
			want: []string{"The kite flew 3.5 meters high.", "Everyone cheered."},
		},
		{
			name: "ellipsis stays whole",
			text: "She waited... then she jumped.",
			want: []string{"She waited... then she jumped."},
		},
		{
			name: "quoted speech",
			text: `"Hold on tight!" said the bunny. They flew up high.`,
			want: []string{`"Hold on tight!" said the bunny.`, "They flew up high."},
		},
		{
			name: "quoted question",
			text: `"Are we there yet?" asked Milo. Not yet.`,
			want: []string{`"Are we there yet?" asked Milo.`, "Not yet."},
		},
		{
			name: "no terminator",
			text: "a gentle ending without punctuation",
			want: []string{"a gentle ending without punctuation"},
		},
		{
			name: "empty",
			text: "   ",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitSentences(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d sentences %q, want %d", len(got), got, len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("sentence %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestEstimateDuration(t *testing.T) {
	// 150 words at the base rate is one minute.
	words := make([]byte, 0)
	for i := 0; i < 150; i++ {
		words = append(words, "word "...)
	}
	text := string(words)

	if got := EstimateDuration(text, 1.0); got != time.Minute {
		t.Errorf("EstimateDuration = %v, want 1m", got)
	}
	if got := EstimateDuration(text, 2.0); got != 30*time.Second {
		t.Errorf("EstimateDuration at 2x = %v, want 30s", got)
	}
	if got := EstimateDuration("", 1.0); got != 0 {
		t.Errorf("EstimateDuration(empty) = %v, want 0", got)
	}

	// Out-of-range speeds clamp rather than explode.
	if got := EstimateDuration(text, 100); got != 30*time.Second {
		t.Errorf("EstimateDuration clamped = %v, want 30s", got)
	}
}
