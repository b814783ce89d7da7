package domain

import (
	"errors"
	"testing"
)

func TestNormalizeVideoURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		err  error
	}{
		{name: "watch", in: "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s", want: "https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
		{name: "no scheme", in: "youtube.com/watch?v=dQw4w9WgXcQ", want: "https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
		{name: "short link", in: "https://youtu.be/dQw4w9WgXcQ", want: "https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
		{name: "mobile", in: "https://m.youtube.com/watch?v=dQw4w9WgXcQ", want: "https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
		{name: "embed", in: "https://www.youtube.com/embed/dQw4w9WgXcQ", want: "https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
		{name: "shorts", in: "https://www.youtube.com/shorts/abcdefghijk", err: ErrUnsupportedSource},
		{name: "other host", in: "https://vimeo.com/12345678", err: ErrInvalidSource},
		{name: "missing id", in: "https://www.youtube.com/watch", err: ErrInvalidSource},
		{name: "empty", in: "   ", err: ErrInvalidSource},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeVideoURL(tt.in)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("expected %v, got %v", tt.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}
