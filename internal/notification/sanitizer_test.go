package notification

import "testing"

func TestSanitizer_Text(t *testing.T) {
	s := NewSanitizer()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text passes through", "Invalid credentials", "Invalid credentials"},
		{"empty string", "", ""},
		{"strips tags", "<b>Saved</b> successfully", "Saved successfully"},
		{"drops script", `<script>alert(1)</script>Welcome`, "Welcome"},
		{"keeps apostrophes", "Don't panic", "Don't panic"},
		{"trims surrounding space", "  hello  ", "hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Text(tt.in); got != tt.want {
				t.Errorf("Text(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
