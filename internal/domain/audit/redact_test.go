package audit

import (
	"strings"
	"testing"
)

func TestRedactArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args map[string]any
		want map[string]bool // key -> should be redacted
	}{
		{
			name: "plain keys untouched",
			args: map[string]any{"testPath": "tests", "verbose": true},
			want: map[string]bool{"testPath": false, "verbose": false},
		},
		{
			name: "sensitive keys redacted",
			args: map[string]any{
				"password":      "hunter2",
				"api_key":       "sk-123",
				"Authorization": "Bearer xyz",
				"testPath":      "tests",
			},
			want: map[string]bool{
				"password":      true,
				"api_key":       true,
				"Authorization": true,
				"testPath":      false,
			},
		},
		{
			name: "case insensitive substring match",
			args: map[string]any{
				"DB_PASSWORD":   "p",
				"SessionCookie": "c",
				"myToken":       "t",
				"clientSecret":  "s",
			},
			want: map[string]bool{
				"DB_PASSWORD":   true,
				"SessionCookie": true,
				"myToken":       true,
				"clientSecret":  true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := RedactArgs(tt.args)
			for k, wantRedacted := range tt.want {
				if wantRedacted && got[k] != RedactedPlaceholder {
					t.Errorf("key %q = %v, want placeholder", k, got[k])
				}
				if !wantRedacted && got[k] == RedactedPlaceholder {
					t.Errorf("key %q was redacted, want original", k)
				}
			}
			// Original map must not be mutated.
			for k, v := range tt.args {
				if v == RedactedPlaceholder && k != "" {
					t.Errorf("original map mutated at %q", k)
				}
			}
		})
	}
}

func TestRedactArgs_Nested(t *testing.T) {
	t.Parallel()

	args := map[string]any{
		"config": map[string]any{
			"token": "abc",
			"path":  "tests",
		},
	}
	got := RedactArgs(args)
	nested, ok := got["config"].(map[string]any)
	if !ok {
		t.Fatalf("config is %T, want map", got["config"])
	}
	if nested["token"] != RedactedPlaceholder {
		t.Errorf("nested token = %v, want placeholder", nested["token"])
	}
	if nested["path"] != "tests" {
		t.Errorf("nested path = %v, want tests", nested["path"])
	}
}

func TestHashArgs(t *testing.T) {
	t.Parallel()

	a := HashArgs(map[string]any{"x": 1, "y": "two"})
	b := HashArgs(map[string]any{"y": "two", "x": 1})
	if a == "" {
		t.Fatal("HashArgs returned empty")
	}
	if a != b {
		t.Errorf("hash depends on insertion order: %q != %q", a, b)
	}

	// Hash must cover the redacted form: two maps whose only difference
	// is a secret value hash identically.
	c := HashArgs(map[string]any{"token": "one", "path": "p"})
	d := HashArgs(map[string]any{"token": "two", "path": "p"})
	if c != d {
		t.Errorf("hash leaks sensitive values: %q != %q", c, d)
	}
	if strings.Contains(c, "one") {
		t.Error("hash contains plaintext secret")
	}
}
