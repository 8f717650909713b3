package translate

import (
	"context"
	"testing"

	logx "instanotify/pkg/logx"
)

func TestParseResponse(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{
			name: "single segment",
			raw:  `[[["Hello","안녕하세요",null,null,10]],null,"ko"]`,
			want: "Hello",
		},
		{
			name: "multiple segments concatenated",
			raw:  `[[["Hello ","안녕 ",null,null,1],["world","세계",null,null,1]],null,"ko"]`,
			want: "Hello world",
		},
		{
			name: "non-string first element skipped",
			raw:  `[[[null,"x"],["ok","y"]],null,"ko"]`,
			want: "ok",
		},
		{
			name:    "empty outer array",
			raw:     `[]`,
			wantErr: true,
		},
		{
			name:    "no segments",
			raw:     `[[],null,"ko"]`,
			wantErr: true,
		},
		{
			name:    "not an array",
			raw:     `{"error":"captcha"}`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseResponse([]byte(tt.raw))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("got %q, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEnabled(t *testing.T) {
	t.Parallel()
	if New("", logx.Nop()).Enabled() {
		t.Error("empty target should disable translation")
	}
	if !New("en", logx.Nop()).Enabled() {
		t.Error("target set but disabled")
	}
	var nilT *Translator
	if nilT.Enabled() {
		t.Error("nil receiver should be disabled")
	}
}

func TestTranslateDisabledPassthrough(t *testing.T) {
	t.Parallel()
	tr := New("", logx.Nop())
	got, err := tr.Translate(context.Background(), "unchanged")
	if err != nil || got != "unchanged" {
		t.Fatalf("got %q err=%v", got, err)
	}
}

func TestTranslateBlankPassthrough(t *testing.T) {
	t.Parallel()
	tr := New("en", logx.Nop())
	got, err := tr.Translate(context.Background(), "   ")
	if err != nil || got != "   " {
		t.Fatalf("got %q err=%v", got, err)
	}
}
