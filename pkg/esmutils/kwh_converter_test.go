package esmutils

import "testing"

func TestKwhToWh(t *testing.T) {
	cases := map[float64]uint64{
		12345.678: 12345678,
		0.0004:    0,
		-3:        0,
	}
	for in, want := range cases {
		if got := KwhToWh(in); got != want {
			t.Fatalf("KwhToWh(%v)=%d want %d", in, got, want)
		}
	}
	if got := WhToKwh(987654); got != 987.654 {
		t.Fatalf("WhToKwh=%v", got)
	}
}
