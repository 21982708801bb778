package envconfig

import "testing"

func TestConfig(t *testing.T) {
	t.Setenv("PALETTE_DEBUG", "")
	t.Setenv("PALETTE_PREFETCH", "")
	t.Setenv("PALETTE_SEED", "")
	LoadConfig()
	if Debug {
		t.Error("Debug = true, want false")
	}
	if Prefetch != 2 {
		t.Errorf("Prefetch = %d, want 2", Prefetch)
	}

	t.Setenv("PALETTE_DEBUG", "1")
	t.Setenv("PALETTE_PREFETCH", "8")
	t.Setenv("PALETTE_SEED", "1234")
	LoadConfig()
	if !Debug {
		t.Error("Debug = false, want true")
	}
	if Prefetch != 8 {
		t.Errorf("Prefetch = %d, want 8", Prefetch)
	}
	if Seed != 1234 {
		t.Errorf("Seed = %d, want 1234", Seed)
	}

	t.Setenv("PALETTE_DEBUG", "totally")
	t.Setenv("PALETTE_PREFETCH", "-1")
	LoadConfig()
	if !Debug {
		t.Error("Debug = false, want true for non-boolean value")
	}
	if Prefetch != 2 {
		t.Errorf("Prefetch = %d, want default after invalid value", Prefetch)
	}
}
