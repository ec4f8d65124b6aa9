package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const minimalYAML = `
hotel:
  name: 墾丁灣旅店
pms:
  base_url: https://pms.example.com/api
`

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.TenantID != "ktw" {
		t.Errorf("TenantID = %q, want ktw", cfg.TenantID)
	}
	if cfg.Hotel.Location != "車城鄉" {
		t.Errorf("Location = %q", cfg.Hotel.Location)
	}
	if cfg.Database.DSN != "concierge.db" {
		t.Errorf("DSN = %q", cfg.Database.DSN)
	}
	if cfg.Server.Addr != ":8090" {
		t.Errorf("Addr = %q", cfg.Server.Addr)
	}
	if cfg.Chat.APIBase != "https://api.line.me/v2/bot" {
		t.Errorf("APIBase = %q", cfg.Chat.APIBase)
	}
	if cfg.LLM.Model != "gemini-2.0-flash" || cfg.LLM.VisionModel != "gemini-2.0-flash" {
		t.Errorf("LLM = %+v", cfg.LLM)
	}
	if cfg.PMS.TimeoutSeconds != 5 {
		t.Errorf("TimeoutSeconds = %d", cfg.PMS.TimeoutSeconds)
	}
}

func TestParseExplicitValuesWin(t *testing.T) {
	cfg, err := Parse([]byte(`
tenant_id: south-bay
hotel:
  name: 墾丁灣旅店
  front_desk: 08-8821234
  booking_url: https://booking.example.com
server:
  addr: ":9000"
pms:
  base_url: https://pms.example.com/api
  timeout_seconds: 12
llm:
  model: gemini-2.0-pro
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.TenantID != "south-bay" {
		t.Errorf("TenantID = %q", cfg.TenantID)
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("Addr = %q", cfg.Server.Addr)
	}
	if cfg.PMS.TimeoutSeconds != 12 {
		t.Errorf("TimeoutSeconds = %d", cfg.PMS.TimeoutSeconds)
	}
	// vision model follows the chat model unless set
	if cfg.LLM.VisionModel != "gemini-2.0-pro" {
		t.Errorf("VisionModel = %q", cfg.LLM.VisionModel)
	}
}

func TestParseValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing hotel name",
			yaml:    "pms:\n  base_url: https://pms.example.com\n",
			wantErr: "hotel.name is required",
		},
		{
			name:    "missing pms base url",
			yaml:    "hotel:\n  name: 墾丁灣旅店\n",
			wantErr: "pms.base_url is required",
		},
		{
			name:    "negative timeout",
			yaml:    "hotel:\n  name: 墾丁灣旅店\npms:\n  base_url: https://x\n  timeout_seconds: -1\n",
			wantErr: "timeout_seconds must not be negative",
		},
		{
			name:    "bad yaml",
			yaml:    "hotel: [",
			wantErr: "config: parse",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Parse succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load succeeded on a missing file")
	}
}

func TestLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(minimalYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Hotel.Name != "墾丁灣旅店" {
		t.Errorf("Name = %q", cfg.Hotel.Name)
	}
}

func TestPMSTimeoutEnvOverride(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	t.Setenv("PMS_API_TIMEOUT", "9")
	if got := cfg.PMSTimeout(); got.Seconds() != 9 {
		t.Errorf("PMSTimeout = %v, want 9s", got)
	}
	t.Setenv("PMS_API_TIMEOUT", "not-a-number")
	if got := cfg.PMSTimeout(); got.Seconds() != 5 {
		t.Errorf("PMSTimeout = %v, want yaml fallback 5s", got)
	}
}
