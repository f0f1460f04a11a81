package scan

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
)

// collectMatches runs matchBlock and returns the emitted lines sorted,
// since arrival order is not guaranteed.
func collectMatches(block []byte, q Query, target, headroom, parallelism int) []string {
	var mu sync.Mutex
	var out []byte
	matchBlock(block, q, target, headroom, parallelism, func(buf []byte) {
		mu.Lock()
		out = append(out, buf...)
		mu.Unlock()
	})
	lines := strings.Split(strings.TrimSuffix(string(out), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil
	}
	sort.Strings(lines)
	return lines
}

func TestStripeSpansPartition(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 500; i++ {
		fmt.Fprintf(&sb, "user%04d@example.com:password%04d\n", i, i)
	}
	block := []byte(sb.String())

	for _, target := range []int{16, 100, 1000, len(block) * 2} {
		spans := stripeSpans(block, target, 64)

		// Spans must cover the block with no gap and no overlap.
		pos := 0
		for i, s := range spans {
			if s.start != pos {
				t.Fatalf("target %d: span %d starts at %d, want %d", target, i, s.start, pos)
			}
			if s.end <= s.start {
				t.Fatalf("target %d: span %d is empty or inverted", target, i)
			}
			pos = s.end
		}
		if pos != len(block) {
			t.Fatalf("target %d: spans end at %d, want %d", target, pos, len(block))
		}

		// Every boundary but the last must sit just past a terminator.
		for i, s := range spans[:len(spans)-1] {
			if block[s.end-1] != '\n' {
				t.Errorf("target %d: span %d ends mid-line at %d", target, i, s.end)
			}
		}
	}
}

// A line longer than the headroom window widens its stripe instead of
// being cut.
func TestStripeSpansLongLine(t *testing.T) {
	long := strings.Repeat("x", 10_000)
	block := []byte("short\n" + long + "\nshort again\n")

	spans := stripeSpans(block, 64, 16)
	for i, s := range spans[:len(spans)-1] {
		if block[s.end-1] != '\n' {
			t.Errorf("span %d ends mid-line despite long-line fallback", i)
		}
	}
}

func TestMatchSingleKeyword(t *testing.T) {
	block := []byte("foo bar\nfoo baz\nqux\n")
	got := collectMatches(block, NewQuery("foo"), 0, 0, 1)
	want := []string{"foo bar", "foo baz"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("match %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

// A line containing the pattern more than once is emitted exactly once.
func TestMatchRepeatedOccurrence(t *testing.T) {
	block := []byte("foo and foo and foo\nnothing here\nfoo again\n")
	got := collectMatches(block, NewQuery("foo"), 0, 0, 1)
	want := []string{"foo again", "foo and foo and foo"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("match %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMatchANDSemantics(t *testing.T) {
	cases := []struct {
		name  string
		line  string
		match bool
	}{
		{"both once", "has foo and bar here", true},
		{"a twice b zero", "foo plus foo but nothing else", false},
		{"b only", "only bar present", false},
		{"neither", "plain line", false},
		{"adjacent", "foobar", true},
	}
	q := NewQuery("foo", "bar")
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			block := []byte(tc.line + "\n")
			got := collectMatches(block, q, 0, 0, 1)
			if tc.match && (len(got) != 1 || got[0] != tc.line) {
				t.Errorf("got %v, want exactly [%q]", got, tc.line)
			}
			if !tc.match && len(got) != 0 {
				t.Errorf("got %v, want no matches", got)
			}
		})
	}
}

// The match set must not depend on stripe geometry or parallelism.
func TestMatchBlockStripeIndependence(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 2000; i++ {
		if i%7 == 0 {
			fmt.Fprintf(&sb, "target%d@breach.example:leaked%d\n", i, i)
		} else {
			fmt.Fprintf(&sb, "other%d@elsewhere.example:safe%d\n", i, i)
		}
	}
	block := []byte(sb.String())
	q := NewQuery("target")

	want := collectMatches(block, q, len(block)*2, 0, 1)
	if len(want) == 0 {
		t.Fatal("expected matches in reference run")
	}

	for _, target := range []int{1, 64, 4096, 1 << 20} {
		for _, par := range []int{1, 4, 0} {
			got := collectMatches(block, q, target, 128, par)
			if len(got) != len(want) {
				t.Fatalf("target %d par %d: got %d matches, want %d", target, par, len(got), len(want))
			}
			for i := range want {
				if got[i] != want[i] {
					t.Errorf("target %d par %d: match %d: got %q, want %q", target, par, i, got[i], want[i])
				}
			}
		}
	}
}

func TestMatchUnterminatedFinalLine(t *testing.T) {
	block := []byte("foo first\nfoo last without terminator")
	got := collectMatches(block, NewQuery("foo"), 0, 0, 1)
	want := []string{"foo first", "foo last without terminator"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("match %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSuperChunksLineAligned(t *testing.T) {
	var sb bytes.Buffer
	for i := 0; i < 300; i++ {
		fmt.Fprintf(&sb, "record-%04d\n", i)
	}
	data := sb.Bytes()

	spans := superChunks(data, 100)
	pos := 0
	for i, s := range spans {
		if s.start != pos {
			t.Fatalf("span %d starts at %d, want %d", i, s.start, pos)
		}
		pos = s.end
	}
	if pos != len(data) {
		t.Fatalf("spans end at %d, want %d", pos, len(data))
	}
	for i, s := range spans[:len(spans)-1] {
		if data[s.end-1] != '\n' {
			t.Errorf("super-chunk %d ends mid-line", i)
		}
	}
}
