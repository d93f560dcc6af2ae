package kb

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultSnapshot(t *testing.T) {
	b := Default()
	th := b.Snapshot(TopicThresholds)
	iprem, ok := th.Float("iprem_monthly")
	if !ok || iprem <= 0 {
		t.Errorf("expected a positive IPREM, got %v %v", iprem, ok)
	}
	for _, topic := range []string{TopicFees, TopicHealthInsurance, TopicApostille, TopicRelocation} {
		if len(b.Snapshot(topic)) == 0 {
			t.Errorf("topic %s is empty", topic)
		}
	}
	if len(b.Snapshot("unknown")) != 0 {
		t.Error("unknown topics should be empty")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	b := Default()
	s := b.Snapshot(TopicFees)
	s["visa_application"] = "0"
	if b.Snapshot(TopicFees).Get("visa_application") == "0" {
		t.Error("mutating a snapshot must not change the base")
	}
}

func TestLoadOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kb.yaml")
	data := []byte("as_of: \"2026-01\"\ntopics:\n  thresholds:\n    iprem_monthly: \"612,50\"\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	b, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if v, _ := b.Snapshot(TopicThresholds).Float("iprem_monthly"); v != 612.5 {
		t.Errorf("expected 612.5, got %v", v)
	}
	if b.AsOf != "2026-01" || len(b.TopicNames()) != 1 {
		t.Errorf("unexpected base %+v", b)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for a missing file")
	}
	if _, err := Parse([]byte("as_of: x\n")); err == nil {
		t.Error("expected error for a base without topics")
	}
}

func TestApostilleRegion(t *testing.T) {
	tests := []struct {
		issuer string
		want   string
	}{
		{"Ohio", RegionUS},
		{"New York, USA", RegionUS},
		{"Estados Unidos", RegionUS},
		{" England ", RegionUK},
		{"Reino Unido", RegionUK},
		{"Mexico", RegionOther},
		{"", RegionOther},
	}
	for _, tt := range tests {
		if got := ApostilleRegion(tt.issuer); got != tt.want {
			t.Errorf("ApostilleRegion(%q) = %q, want %q", tt.issuer, got, tt.want)
		}
	}
}

func TestApostilleAuthority(t *testing.T) {
	facts := Default().Snapshot(TopicApostille)
	if got := ApostilleAuthority(facts, "Ohio", "en"); got != "Secretary of State of the issuing state" {
		t.Errorf("US authority in English: %q", got)
	}
	if got := ApostilleAuthority(facts, "Scotland", "es"); got != facts.Get("authority_uk_es") || got == "" {
		t.Errorf("UK authority in Spanish: %q", got)
	}
	if got := ApostilleAuthority(facts, "Peru", "es"); got != facts.Get("authority_other_es") || got == "" {
		t.Errorf("other authority in Spanish: %q", got)
	}
	if got := ApostilleAuthority(Snapshot{"authority_us": "SoS"}, "Texas", "es"); got != "SoS" {
		t.Errorf("missing translation should fall back to English, got %q", got)
	}
}
