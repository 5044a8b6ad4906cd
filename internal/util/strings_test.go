package util

import "testing"

func TestSafeTruncate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{
			name:   "string shorter than maxLen",
			input:  "short",
			maxLen: 10,
			want:   "short",
		},
		{
			name:   "string equal to maxLen",
			input:  "exactly10c",
			maxLen: 10,
			want:   "exactly10c",
		},
		{
			name:   "string longer than maxLen",
			input:  "this-is-a-very-long-token-string",
			maxLen: 8,
			want:   "this-is-",
		},
		{
			name:   "empty string",
			input:  "",
			maxLen: 5,
			want:   "",
		},
		{
			name:   "maxLen is zero",
			input:  "test",
			maxLen: 0,
			want:   "",
		},
		{
			name:   "maxLen is negative (edge case)",
			input:  "test",
			maxLen: -1,
			want:   "",
		},
		{
			name:   "unicode characters",
			input:  "hello世界test",
			maxLen: 8,
			want:   "hello世",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SafeTruncate(tt.input, tt.maxLen)
			if got != tt.want {
				t.Errorf("SafeTruncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestSplitScope(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "empty", input: "", want: nil},
		{name: "single", input: "read", want: []string{"read"}},
		{name: "multiple", input: "read write", want: []string{"read", "write"}},
		{name: "extra spaces", input: "  read   write ", want: []string{"read", "write"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitScope(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("SplitScope(%q) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("SplitScope(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestScopeSubset(t *testing.T) {
	tests := []struct {
		name      string
		requested string
		granted   string
		want      bool
	}{
		{name: "equal", requested: "read write", granted: "read write", want: true},
		{name: "narrower", requested: "read", granted: "read write", want: true},
		{name: "reordered", requested: "write read", granted: "read write", want: true},
		{name: "empty request", requested: "", granted: "read", want: true},
		{name: "wider", requested: "read admin", granted: "read write", want: false},
		{name: "nothing granted", requested: "read", granted: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ScopeSubset(tt.requested, tt.granted); got != tt.want {
				t.Errorf("ScopeSubset(%q, %q) = %v, want %v", tt.requested, tt.granted, got, tt.want)
			}
		})
	}
}
