package calendar

import (
	"testing"
	"time"
)

func TestResolveDate(t *testing.T) {
	// A Wednesday.
	now := time.Date(2026, 6, 10, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		text string
		want time.Time
		ok   bool
	}{
		{
			name: "month name and day",
			text: "Need a quote for June 15 for 80 people",
			want: time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC),
			ok:   true,
		},
		{
			name: "ordinal suffix",
			text: "are you free august 2nd?",
			want: time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC),
			ok:   true,
		},
		{
			name: "abbreviated month",
			text: "thinking Jun 20 or so",
			want: time.Date(2026, 6, 20, 0, 0, 0, 0, time.UTC),
			ok:   true,
		},
		{
			name: "passed date rolls to next year",
			text: "same setup as January 5",
			want: time.Date(2027, 1, 5, 0, 0, 0, 0, time.UTC),
			ok:   true,
		},
		{
			name: "numeric slash",
			text: "does 6/15 work for you",
			want: time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC),
			ok:   true,
		},
		{
			name: "numeric with year",
			text: "booked for 6/15/2026 already",
			want: time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC),
			ok:   true,
		},
		{
			name: "today",
			text: "can you call me today",
			want: time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC),
			ok:   true,
		},
		{
			name: "tomorrow",
			text: "deliver tomorrow morning",
			want: time.Date(2026, 6, 11, 0, 0, 0, 0, time.UTC),
			ok:   true,
		},
		{
			name: "bare weekday",
			text: "see you friday",
			want: time.Date(2026, 6, 12, 0, 0, 0, 0, time.UTC),
			ok:   true,
		},
		{
			name: "next weekday skips a week",
			text: "how about next friday",
			want: time.Date(2026, 6, 19, 0, 0, 0, 0, time.UTC),
			ok:   true,
		},
		{
			name: "same weekday means next occurrence",
			text: "wednesday works",
			want: time.Date(2026, 6, 17, 0, 0, 0, 0, time.UTC),
			ok:   true,
		},
		{
			name: "explicit date wins over relative word",
			text: "June 15 works, confirming today",
			want: time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC),
			ok:   true,
		},
		{
			name: "no date",
			text: "can we swap margarita for paloma",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveDate(tt.text, now)
			if ok != tt.ok {
				t.Fatalf("ResolveDate(%q) ok = %v, want %v", tt.text, ok, tt.ok)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("ResolveDate(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}
