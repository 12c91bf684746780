package handlers

import (
	"testing"
	"time"
)

func TestParseSinceBucket(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{name: "empty_means_all", raw: "", want: 0},
		{name: "all_keyword", raw: "all", want: 0},
		{name: "all_uppercase", raw: "ALL", want: 0},
		{name: "minutes", raw: "30m", want: 30 * time.Minute},
		{name: "hours", raw: "2h", want: 2 * time.Hour},
		{name: "days", raw: "7d", want: 7 * 24 * time.Hour},
		{name: "garbage", raw: "soon", wantErr: true},
		{name: "negative", raw: "-2h", wantErr: true},
		{name: "zero_days", raw: "0d", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseSinceBucket(tc.raw)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("parseSinceBucket(%q) accepted, want error", tc.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseSinceBucket(%q): %v", tc.raw, err)
			}
			if got != tc.want {
				t.Fatalf("parseSinceBucket(%q)=%v, want %v", tc.raw, got, tc.want)
			}
		})
	}
}

func TestSplitCSV(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want int
	}{
		{name: "empty", raw: "", want: 0},
		{name: "single", raw: "alice", want: 1},
		{name: "two_with_spaces", raw: "alice, bob", want: 2},
		{name: "trailing_comma", raw: "alice,bob,", want: 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := splitCSV(tc.raw); len(got) != tc.want {
				t.Fatalf("splitCSV(%q)=%v, want %d values", tc.raw, got, tc.want)
			}
		})
	}
}
