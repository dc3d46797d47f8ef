package cookie

import (
	"encoding/base64"
	"strings"
	"testing"

	"golang.org/x/crypto/nacl/box"
)

func testRecipient(t *testing.T) (pub [32]byte, priv [32]byte) {
	t.Helper()
	p, s, err := box.GenerateKey(strings.NewReader(strings.Repeat("x", 64)))
	if err != nil {
		t.Fatalf("box.GenerateKey: %v", err)
	}
	return *p, *s
}

func TestMakeCookieShape(t *testing.T) {
	pub, _ := testRecipient(t)
	c, err := Make(Params{
		SessionID:          "abcdef01",
		TargetAddress:      "example.com:443",
		RecipientPublicKey: pub,
		ObfuscationKeyword: "",
	})
	if err != nil {
		t.Fatalf("Make: %v", err)
	}

	idx := strings.IndexByte(c, '=')
	if idx != 1 {
		t.Fatalf("expected single-letter prefix before '=', got %q", c)
	}
	letter := c[0]
	if letter < 'A' || letter > 'Z' {
		t.Fatalf("cookie-name letter %q not in A-Z", letter)
	}

	decoded, err := base64.StdEncoding.DecodeString(c[idx+1:])
	if err != nil {
		t.Fatalf("cookie value is not valid base64: %v", err)
	}
	// ephemeral pubkey (32) + box overhead (16) + smallest plausible
	// descriptor ciphertext.
	if len(decoded) < 32+16+len(`{"v":1,"s":"","p":""}`) {
		t.Fatalf("decoded cookie too short: %d bytes", len(decoded))
	}
}

func TestMakeCookieWithObfuscation(t *testing.T) {
	pub, _ := testRecipient(t)
	c, err := Make(Params{
		SessionID:          "abcdef01",
		TargetAddress:      "example.com:443",
		RecipientPublicKey: pub,
		ObfuscationKeyword: "shared-secret",
	})
	if err != nil {
		t.Fatalf("Make: %v", err)
	}
	if len(c) == 0 {
		t.Fatalf("empty cookie")
	}
}

func TestMakeCookieVariesLetterAndBytes(t *testing.T) {
	pub, _ := testRecipient(t)
	seen := map[byte]bool{}
	values := map[string]bool{}
	for i := 0; i < 200; i++ {
		c, err := Make(Params{SessionID: "s", TargetAddress: "t:1", RecipientPublicKey: pub})
		if err != nil {
			t.Fatalf("Make: %v", err)
		}
		seen[c[0]] = true
		values[c[2:]] = true
	}
	if len(seen) < 2 {
		t.Fatalf("cookie-name letter never varied across 200 samples")
	}
	if len(values) != 200 {
		t.Fatalf("cookie value repeated across 200 samples: %d distinct", len(values))
	}
}
