package bitget

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"
)

// Signer produces Bitget V2 authentication headers.
// Keys are held as []byte so they can be wiped when the session closes.
type Signer struct {
	accessKey  []byte
	secretKey  []byte
	passphrase []byte
}

// NewSigner creates a signer from the credential strings.
func NewSigner(accessKey, secretKey, passphrase string) *Signer {
	return &Signer{
		accessKey:  []byte(accessKey),
		secretKey:  []byte(secretKey),
		passphrase: []byte(passphrase),
	}
}

// Wipe zeroes the key material in memory.
func (s *Signer) Wipe() {
	if s == nil {
		return
	}
	wipe(s.accessKey)
	wipe(s.secretKey)
	wipe(s.passphrase)
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Headers builds the signed header set for one request.
// Signature payload: timestamp + method + path(+query) + body.
func (s *Signer) Headers(method, pathWithQuery, body string) map[string]string {
	timestamp := fmt.Sprintf("%d", time.Now().UnixMilli())
	return s.headersAt(timestamp, method, pathWithQuery, body)
}

func (s *Signer) headersAt(timestamp, method, pathWithQuery, body string) map[string]string {
	payload := timestamp + method + pathWithQuery + body
	mac := hmac.New(sha256.New, s.secretKey)
	mac.Write([]byte(payload))
	sign := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return map[string]string{
		"ACCESS-KEY":        string(s.accessKey),
		"ACCESS-SIGN":       sign,
		"ACCESS-TIMESTAMP":  timestamp,
		"ACCESS-PASSPHRASE": string(s.passphrase),
		"Content-Type":      "application/json",
		"locale":            "en-US",
	}
}
