package validate

import "testing"

func TestCharacterClasses(t *testing.T) {
	tests := []struct {
		name  string
		fn    func(string) bool
		value string
		want  bool
	}{
		{"nchar accepts unreserved", NChar, "abc-._~123", true},
		{"nchar rejects space", NChar, "a b", false},
		{"nchar rejects empty", NChar, "", false},
		{"nqchar accepts bang", NQChar, "!abc", true},
		{"nqchar rejects quote", NQChar, `a"b`, false},
		{"nqchar rejects space", NQChar, "a b", false},
		{"nqschar accepts space separated scopes", NQSChar, "read write", true},
		{"nqschar rejects backslash", NQSChar, `read\write`, false},
		{"nqschar rejects quote", NQSChar, `"read"`, false},
		{"unicode accepts non ascii", UnicodeCharNoCRLF, "jöhn døe", true},
		{"unicode accepts tab", UnicodeCharNoCRLF, "a\tb", true},
		{"unicode rejects newline", UnicodeCharNoCRLF, "a\nb", false},
		{"unicode rejects carriage return", UnicodeCharNoCRLF, "a\rb", false},
		{"unicode rejects invalid utf8", UnicodeCharNoCRLF, "ab\xff", false},
		{"unicode rejects lone continuation byte", UnicodeCharNoCRLF, "\x80", false},
		{"uri accepts https", URI, "https://example.com/cb", true},
		{"uri accepts custom scheme", URI, "com.example.app:/cb", true},
		{"uri rejects relative path", URI, "/callback", false},
		{"uri rejects plain word", URI, "callback", false},
		{"vschar accepts printable", VSChar, "state 123 !~", true},
		{"vschar rejects non ascii", VSChar, "stäte", false},
		{"vschar rejects control", VSChar, "a\x01", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.value); got != tt.want {
				t.Errorf("got %v, want %v for %q", got, tt.want, tt.value)
			}
		})
	}
}
