package core

import (
	"encoding/json"
	"math"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"0", 0, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half away from zero
		{" 2.50 ", 250, true},
		{"4043", 404300, true},
		{"-1", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
		{"NaN", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.Cents != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got.Cents, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestCoerceAmount(t *testing.T) {
	cases := []struct {
		name string
		in   any
		out  int64
	}{
		{"nil", nil, 0},
		{"float", 12.5, 1250},
		{"nan", math.NaN(), 0},
		{"inf", math.Inf(1), 0},
		{"int", 3, 300},
		{"json number", json.Number("7.25"), 725},
		{"numeric string", "99.99", 9999},
		{"garbage string", "lots", 0},
		{"empty string", "", 0},
		{"bool", true, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CoerceAmount(tc.in); got.Cents != tc.out {
				t.Errorf("CoerceAmount(%v) = %d, want %d", tc.in, got.Cents, tc.out)
			}
		})
	}
}

func TestMoneyString(t *testing.T) {
	cases := map[int64]string{
		0:      "0",
		50000:  "500",
		1250:   "12.5",
		404301: "4043.01",
	}
	for cents, want := range cases {
		if got := (Money{Cents: cents}).String(); got != want {
			t.Errorf("Money{%d}.String() = %q, want %q", cents, got, want)
		}
	}
}
