package board

import "testing"

func TestModelByPersonalityRun(t *testing.T) {
	m, pers, ok := ModelByPersonality(0x16C0, 0x0483)
	if !ok {
		t.Fatal("expected a match for Teensy run VID:PID")
	}
	if pers != PersonalityRun {
		t.Errorf("personality = %v, want PersonalityRun", pers)
	}
	if m.Name == "" {
		t.Error("matched model should have a name")
	}
}

func TestModelByPersonalityBootloader(t *testing.T) {
	_, pers, ok := ModelByPersonality(0x16C0, 0x0478)
	if !ok {
		t.Fatal("expected a match for Teensy bootloader VID:PID")
	}
	if pers != PersonalityBootloader {
		t.Errorf("personality = %v, want PersonalityBootloader", pers)
	}
}

func TestModelByPersonalityUnknown(t *testing.T) {
	if _, _, ok := ModelByPersonality(0xDEAD, 0xBEEF); ok {
		t.Error("expected no match for an unregistered VID:PID")
	}
}

func TestCapabilityHas(t *testing.T) {
	c := CapUpload | CapReset
	if !c.Has(CapUpload) {
		t.Error("expected Has(CapUpload) true")
	}
	if c.Has(CapReboot) {
		t.Error("expected Has(CapReboot) false")
	}
	if !c.Has(CapUpload | CapReset) {
		t.Error("expected Has of both set bits true")
	}
}
