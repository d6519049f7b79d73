package kb

import "testing"

func TestVectorLiteral(t *testing.T) {
	cases := []struct {
		in   []float32
		want string
	}{
		{in: nil, want: "[]"},
		{in: []float32{1}, want: "[1]"},
		{in: []float32{0.5, -2, 3.25}, want: "[0.5,-2,3.25]"},
	}
	for _, tc := range cases {
		if got := vectorLiteral(tc.in); got != tc.want {
			t.Fatalf("vectorLiteral(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
