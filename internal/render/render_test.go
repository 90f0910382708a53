package render_test

import (
	"testing"

	"github.com/sendloop/sendloop-backend/internal/render"
)

func TestRenderBothSyntaxes(t *testing.T) {
	tpl := "Hi {{first_name}}, visit {cta_link}"
	vars := map[string]string{"first_name": "Ana", "cta_link": "https://x.com"}

	got := render.Render(tpl, vars)
	want := "Hi Ana, visit https://x.com"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestRenderWhitespaceTolerant(t *testing.T) {
	got := render.Render("Hello {{  name  }}!", map[string]string{"name": "Bob"})
	if got != "Hello Bob!" {
		t.Errorf("expected %q, got %q", "Hello Bob!", got)
	}
}

func TestRenderMissingKeyKeepsPlaceholder(t *testing.T) {
	tpl := "Hi {{first_name}}, visit {cta_link}"
	vars := map[string]string{"first_name": "Ana"}

	got := render.Render(tpl, vars)
	want := "Hi Ana, visit {cta_link}"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestRenderEmptyValueIsSubstituted(t *testing.T) {
	// An empty string is still a present value, not a missing key.
	got := render.Render("a{x}b", map[string]string{"x": ""})
	if got != "ab" {
		t.Errorf("expected %q, got %q", "ab", got)
	}
}

func TestRenderIdempotent(t *testing.T) {
	tpl := "Hello {first_name} {last_name}, see {{ offer }}"
	vars := map[string]string{
		"first_name": "Alice",
		"last_name":  "Smith",
		"offer":      "https://shop.example/offer",
	}

	once := render.Render(tpl, vars)
	twice := render.Render(once, vars)
	if once != twice {
		t.Errorf("render not idempotent: %q vs %q", once, twice)
	}
}

func TestRenderNoPlaceholders(t *testing.T) {
	got := render.Render("plain text", map[string]string{"x": "y"})
	if got != "plain text" {
		t.Errorf("expected unchanged text, got %q", got)
	}
}

func TestMergeOverridesWin(t *testing.T) {
	base := map[string]string{"cta_link": "https://x.com", "brand": "Sendloop"}
	over := map[string]string{"cta_link": "https://custom.example"}

	merged := render.Merge(base, over)
	if merged["cta_link"] != "https://custom.example" {
		t.Errorf("expected override to win, got %q", merged["cta_link"])
	}
	if merged["brand"] != "Sendloop" {
		t.Errorf("expected base key to survive, got %q", merged["brand"])
	}
	if base["cta_link"] != "https://x.com" {
		t.Errorf("base map was mutated")
	}
}
