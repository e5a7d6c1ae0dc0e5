package validation

import (
	"strings"
	"testing"
)

func TestEmail(t *testing.T) {
	tests := map[string]bool{
		"jane@print.test":   true,
		" jane@print.test ": true,
		"jane":              false,
		"@print.test":       false,
		"jane@":             false,
		"jane@localhost":    false,
		"jane doe@x.test":   false,
	}
	for in, ok := range tests {
		v := Violations{}
		Email("email", in, v)
		if v.Empty() != ok {
			t.Errorf("Email(%q) violations=%v, want valid=%v", in, v, ok)
		}
	}
}

func TestURL(t *testing.T) {
	tests := map[string]bool{
		"https://files.print.test/flyer.pdf": true,
		"http://cdn.print.test/a.png?v=2":    true,
		"":                                   true,
		"ftp://files.print.test/a.pdf":       false,
		"javascript:alert(1)":                false,
		"/relative/path.pdf":                 false,
		"https://":                           false,
	}
	for in, ok := range tests {
		v := Violations{}
		URL("url", in, v)
		if v.Empty() != ok {
			t.Errorf("URL(%q) violations=%v, want valid=%v", in, v, ok)
		}
	}
}

func TestFirstViolationWins(t *testing.T) {
	v := Violations{}
	Required("url", " ", v)
	URL("url", "nope", v)
	MaxLen("url", strings.Repeat("x", 10), 3, v)
	if v["url"] != "required" {
		t.Fatalf("url = %q, want the first violation", v["url"])
	}
}

func TestListAndNumbers(t *testing.T) {
	v := Violations{}
	NotEmpty("items", 0, v)
	PositiveInt("quantity", 0, v)
	PositiveInt("copies", 3, v)
	MaxLen("name", "Épreuve", 7, v)
	if v["items"] != "required" || v["quantity"] != "must_be_positive" {
		t.Fatalf("unexpected violations %v", v)
	}
	if _, ok := v["copies"]; ok {
		t.Error("positive count flagged")
	}
	if _, ok := v["name"]; ok {
		t.Error("MaxLen counted bytes instead of runes")
	}
}
