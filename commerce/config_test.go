package commerce

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadSettings(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		settings, err := LoadSettings("")
		if err != nil {
			t.Fatalf("LoadSettings failed: %v", err)
		}
		if diff := cmp.Diff(DefaultSettings(), settings); diff != "" {
			t.Errorf("settings mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("yaml file overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "commerce.yaml")
		content := "order_number_prefix: SHOP-\ncurrency_code: eur\n"
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write config: %v", err)
		}

		settings, err := LoadSettings(path)
		if err != nil {
			t.Fatalf("LoadSettings failed: %v", err)
		}
		if settings.OrderNumberPrefix != "SHOP-" {
			t.Errorf("expected SHOP-, got %s", settings.OrderNumberPrefix)
		}
		if settings.CurrencyCode != "eur" {
			t.Errorf("expected eur, got %s", settings.CurrencyCode)
		}
	})

	t.Run("environment overrides everything", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "commerce.yaml")
		if err := os.WriteFile(path, []byte("currency_code: eur\n"), 0o600); err != nil {
			t.Fatalf("write config: %v", err)
		}
		t.Setenv("COMMERCE_CURRENCY_CODE", "gbp")
		t.Setenv("COMMERCE_EVENT_PREFIX", "shop")

		settings, err := LoadSettings(path)
		if err != nil {
			t.Fatalf("LoadSettings failed: %v", err)
		}
		if settings.CurrencyCode != "gbp" {
			t.Errorf("expected gbp, got %s", settings.CurrencyCode)
		}
		if settings.EventPrefix != "shop" {
			t.Errorf("expected shop, got %s", settings.EventPrefix)
		}
	})

	t.Run("missing file errors", func(t *testing.T) {
		if _, err := LoadSettings("/nonexistent/commerce.yaml"); err == nil {
			t.Error("expected error")
		}
	})
}
