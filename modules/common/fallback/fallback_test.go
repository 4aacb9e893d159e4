package fallback

import "testing"

func TestSafeString(t *testing.T) {
	if got := SafeString("  hello  ", "x"); got != "hello" {
		t.Errorf("SafeString trimmed = %q", got)
	}
	if got := SafeString("", "x"); got != "x" {
		t.Errorf("SafeString empty = %q", got)
	}
	if got := SafeString(42, "x"); got != "x" {
		t.Errorf("SafeString non-string = %q", got)
	}
}

func TestSafeFloatShapes(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  float64
	}{
		{"float64", 5.5, 5.5},
		{"int", 7, 7},
		{"numeric string", "3.25", 3.25},
		{"garbage string", "abc", 9},
		{"negative falls back", -2.0, 9},
		{"nil", nil, 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SafeFloat(tt.value, 9); got != tt.want {
				t.Errorf("SafeFloat(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestFirstString(t *testing.T) {
	m := map[string]interface{}{
		"imageUrl": "https://cdn.test/a.webp",
		"empty":    "",
	}
	if got := FirstString(m, "image_url", "imageUrl"); got != "https://cdn.test/a.webp" {
		t.Errorf("FirstString = %q", got)
	}
	if got := FirstString(m, "missing", "empty"); got != "" {
		t.Errorf("FirstString absent = %q", got)
	}
}

func TestSafeStringSlice(t *testing.T) {
	value := []interface{}{"a", "", 3, "b"}
	got := SafeStringSlice(value)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("SafeStringSlice = %v", got)
	}
	if SafeStringSlice("not a slice") != nil {
		t.Error("non-slice should yield nil")
	}
}
