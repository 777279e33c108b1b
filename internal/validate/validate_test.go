package validate

import "testing"

type sample struct {
	Title string  `json:"title" validate:"required,max=5"`
	Email string  `json:"email" validate:"omitempty,email"`
	URL   *string `json:"url" validate:"omitempty,weburl"`
	Mode  string  `json:"mode" validate:"omitempty,oneof=A B"`
}

func strp(s string) *string { return &s }

func TestStructValid(t *testing.T) {
	if fields := Struct(sample{Title: "ok", URL: strp("https://example.com/x")}); fields != nil {
		t.Errorf("fields = %v, want nil", fields)
	}
	if fields := Struct(sample{Title: "ok", URL: strp("")}); fields != nil {
		t.Errorf("empty optional url: fields = %v, want nil", fields)
	}
}

func TestStructFieldMessages(t *testing.T) {
	fields := Struct(sample{
		Title: "too long",
		Email: "nope",
		URL:   strp("ftp://example.com"),
		Mode:  "C",
	})
	want := map[string]string{
		"title": "must be at most 5 characters",
		"email": "must be a valid email",
		"url":   "must be an absolute http or https URL",
		"mode":  "must be one of A B",
	}
	for k, msg := range want {
		if fields[k] != msg {
			t.Errorf("fields[%q] = %q, want %q", k, fields[k], msg)
		}
	}

	fields = Struct(sample{})
	if fields["title"] != "is required" {
		t.Errorf("fields[title] = %q, want required", fields["title"])
	}
}

func TestIsWebURL(t *testing.T) {
	tests := map[string]bool{
		"https://example.com":      true,
		"http://example.com/a?b=c": true,
		"example.com":              false,
		"/relative/path":           false,
		"mailto:a@example.com":     false,
		"https://":                 false,
	}
	for in, want := range tests {
		if got := IsWebURL(in); got != want {
			t.Errorf("IsWebURL(%q) = %v, want %v", in, got, want)
		}
	}
}
