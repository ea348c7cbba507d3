package cmd

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDispatcherVerbsRegistered(t *testing.T) {
	want := []string{"build", "down", "down-v", "makemigrations", "migrate", "bash", "env", "superuser"}

	registered := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		registered[cmd.Name()] = true
	}

	for _, name := range want {
		if !registered[name] {
			t.Errorf("dispatcher verb %q not registered", name)
		}
	}
}

func TestCoreCommandsRegistered(t *testing.T) {
	registered := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		registered[cmd.Name()] = true
	}

	for _, name := range []string{"serve", "status", "ps", "history", "config"} {
		if !registered[name] {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestComposeConfigDefaults(t *testing.T) {
	initConfig()

	config := composeConfig()
	if config.AppService != "session" {
		t.Errorf("default app service = %q, want session", config.AppService)
	}
}

func TestWatchDebounce(t *testing.T) {
	initConfig()

	viper.Set("watch.debounce", "150ms")
	if got := watchDebounce(); got != 150*time.Millisecond {
		t.Errorf("watchDebounce = %v, want 150ms", got)
	}

	viper.Set("watch.debounce", "bogus")
	if got := watchDebounce(); got != 300*time.Millisecond {
		t.Errorf("watchDebounce fallback = %v, want 300ms", got)
	}

	viper.Set("watch.debounce", "300ms")
}

func TestCurrentSettingsListsFixedPorts(t *testing.T) {
	initConfig()

	settings := currentSettings()
	ports := make(map[string]int)
	for _, svc := range settings.Services {
		ports[svc.Name] = svc.Port
	}

	if ports["session"] != 8000 {
		t.Errorf("session port in settings = %d, want 8000", ports["session"])
	}
	if ports["wallet"] != 8001 {
		t.Errorf("wallet port in settings = %d, want 8001", ports["wallet"])
	}
	if ports["beat"] != 0 {
		t.Errorf("beat must not list a port, got %d", ports["beat"])
	}
}

func TestFormatBytes(t *testing.T) {
	cases := map[uint64]string{
		512:     "512 B",
		2048:    "2.0 KiB",
		3 << 20: "3.0 MiB",
		5 << 30: "5.0 GiB",
	}
	for in, want := range cases {
		if got := formatBytes(in); got != want {
			t.Errorf("formatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}
