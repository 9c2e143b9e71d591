package scoring

import "testing"

func TestExtractScore(t *testing.T) {
	cases := []struct {
		name string
		resp map[string]any
		want float64
	}{
		{"lowercase key", map[string]any{"score": 7.5}, 7.5},
		{"capitalized key", map[string]any{"Score": 6}, 6},
		{"nested evaluation", map[string]any{"evaluation": map[string]any{"score": 9}}, 9},
		{"string number", map[string]any{"score": "8.5"}, 8.5},
		{"int value", map[string]any{"score": 4}, 4},
		{"int64 value", map[string]any{"score": int64(3)}, 3},
		{"unparsable string", map[string]any{"score": "excellent"}, 0},
		{"missing key", map[string]any{"feedback": "nice"}, 0},
		{"nil response", nil, 0},
		{"above range", map[string]any{"score": 15.0}, 10},
		{"below range", map[string]any{"score": -3.0}, 0},
		{"wrong type", map[string]any{"score": []any{7}}, 0},
	}
	for _, tc := range cases {
		if got := extractScore(tc.resp); got != tc.want {
			t.Fatalf("%s: extractScore = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestNarrativeBands(t *testing.T) {
	cases := []struct {
		pct  int
		want string
	}{
		{100, narrativeExceptional},
		{80, narrativeExceptional},
		{79, narrativeSolid},
		{50, narrativeSolid},
		{49, narrativeNeedsWork},
		{0, narrativeNeedsWork},
	}
	for _, tc := range cases {
		if got := narrativeFor(tc.pct); got != tc.want {
			t.Fatalf("narrativeFor(%d) = %q, want %q", tc.pct, got, tc.want)
		}
	}
}
