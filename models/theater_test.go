package models

import "testing"

func TestDerivePrefix(t *testing.T) {
	cases := []struct {
		name string
		id   string
		want string
	}{
		{"Guild Cinema", "abc", "GU"},
		{"pvr icon", "abc", "PV"},
		{"42 Screens", "abc", "SC"},
		{"42", "ab12cd", "AB"},
		{"", "9f3a", "9F"},
		{"", "7", "7X"},
		{"", "", "XX"},
	}
	for _, c := range cases {
		if got := derivePrefix(c.name, c.id); got != c.want {
			t.Errorf("derivePrefix(%q, %q) = %q, want %q", c.name, c.id, got, c.want)
		}
	}
}
