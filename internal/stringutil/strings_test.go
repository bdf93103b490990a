package stringutil

import "testing"

func TestFold(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello", "hello"},
		{"collapse", "  hello \t\n world  ", "hello world"},
		{"full width", "ｈｅｌｌｏ　１２３", "hello 123"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Fold(tt.in); got != tt.want {
				t.Errorf("Fold(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short", "Kia ora", 20, "Kia ora"},
		{"exact", "Kia ora", 7, "Kia ora"},
		{"cut", "Kia ora koutou", 9, "Kia ora k"},
		{"cut at space", "Kia ora koutou", 8, "Kia ora"},
		{"multibyte", "Māori kupu", 3, "Māo"},
		{"zero", "Kia ora", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Truncate(tt.in, tt.n); got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
		})
	}
}

func TestEllipsize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short", "hello", 10, "hello"},
		{"exact", "hello", 5, "hello"},
		{"long", "hello world", 8, "hello..."},
		{"multibyte", "ｈｅｌｌｏ ｗｏｒｌｄ", 6, "ｈｅｌ..."},
		{"tiny limit", "hello", 2, "he"},
		{"negative", "hello", -1, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Ellipsize(tt.in, tt.n); got != tt.want {
				t.Errorf("Ellipsize(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
		})
	}
}
