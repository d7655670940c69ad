package bitget

import "testing"

func TestSigner_HeadersAt(t *testing.T) {
	s := NewSigner("key", "secret", "pass")
	h := s.headersAt("1700000000000", "GET", "/api/v2/spot/account/assets", "")

	if h["ACCESS-KEY"] != "key" {
		t.Errorf("ACCESS-KEY = %q", h["ACCESS-KEY"])
	}
	if h["ACCESS-PASSPHRASE"] != "pass" {
		t.Errorf("ACCESS-PASSPHRASE = %q", h["ACCESS-PASSPHRASE"])
	}
	if h["ACCESS-TIMESTAMP"] != "1700000000000" {
		t.Errorf("ACCESS-TIMESTAMP = %q", h["ACCESS-TIMESTAMP"])
	}
	if h["ACCESS-SIGN"] == "" {
		t.Error("ACCESS-SIGN is empty")
	}

	// same inputs must sign identically, different payloads must not
	again := s.headersAt("1700000000000", "GET", "/api/v2/spot/account/assets", "")
	if h["ACCESS-SIGN"] != again["ACCESS-SIGN"] {
		t.Error("signature not deterministic for identical payloads")
	}
	other := s.headersAt("1700000000000", "POST", "/api/v2/spot/account/assets", "")
	if h["ACCESS-SIGN"] == other["ACCESS-SIGN"] {
		t.Error("signature identical for different payloads")
	}
}

func TestSigner_Wipe(t *testing.T) {
	s := NewSigner("key", "secret", "pass")
	s.Wipe()
	for _, b := range s.secretKey {
		if b != 0 {
			t.Fatal("secret key not wiped")
		}
	}

	// Wipe on nil must not panic
	var nilSigner *Signer
	nilSigner.Wipe()
}
