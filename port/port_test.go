package port

import "testing"

func TestDefaultSerialConfigValid(t *testing.T) {
	cfg := DefaultSerialConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultSerialConfig() failed validation: %v", err)
	}
}

func TestSerialConfigValidateBaud(t *testing.T) {
	cfg := DefaultSerialConfig()
	cfg.Baud = 123456
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unsupported baud rate")
	}
}

func TestSerialConfigValidateDataBits(t *testing.T) {
	cfg := DefaultSerialConfig()
	cfg.DataBits = 4
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for out-of-range data bits")
	}
	cfg.DataBits = 9
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for out-of-range data bits")
	}
}

func TestSerialConfigValidateStopBits(t *testing.T) {
	cfg := DefaultSerialConfig()
	cfg.StopBits = 3
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid stop bits")
	}
}

func TestModeReadWrite(t *testing.T) {
	if ModeReadWrite&ModeRead == 0 || ModeReadWrite&ModeWrite == 0 {
		t.Error("ModeReadWrite should include both ModeRead and ModeWrite bits")
	}
}
