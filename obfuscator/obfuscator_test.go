package obfuscator

import (
	"bytes"
	"crypto/rc4"
	"crypto/sha256"
	"testing"
)

func TestSeedMessageLengthBounded(t *testing.T) {
	for i := 0; i < 64; i++ {
		o, err := New("some-keyword")
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if n := len(o.SeedMessage()); n < SeedLength+lengthFieldLength || n > maxPaddingLength {
			t.Fatalf("seed message length %d out of bounds", n)
		}
	}
}

func TestObfuscateIsReversibleStreamXOR(t *testing.T) {
	o, err := New("keyword")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	payload := []byte("the quick brown fox jumps over the lazy dog")
	orig := append([]byte{}, payload...)

	obfuscated := append([]byte{}, payload...)
	o.Obfuscate(obfuscated)
	if bytes.Equal(obfuscated, orig) {
		t.Fatalf("obfuscated payload equals plaintext")
	}

	// A holder of the keyword re-derives the keystream from the seed, skips
	// the length field and padding, and recovers the payload.
	seedMsg := o.SeedMessage()
	key := sha256.Sum256(append(append([]byte{}, seedMsg[:SeedLength]...), []byte("keyword")...))
	stream, err := rc4.NewCipher(key[:])
	if err != nil {
		t.Fatalf("rc4.NewCipher: %v", err)
	}
	stream.XORKeyStream(make([]byte, len(seedMsg)-SeedLength), seedMsg[SeedLength:])
	stream.XORKeyStream(obfuscated, obfuscated)
	if !bytes.Equal(obfuscated, orig) {
		t.Fatalf("re-derived keystream did not recover the payload")
	}
}

func TestTwoObfuscatorsProduceDifferentSeeds(t *testing.T) {
	a, err := New("keyword")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b, err := New("keyword")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if bytes.Equal(a.SeedMessage()[:SeedLength], b.SeedMessage()[:SeedLength]) {
		t.Fatalf("two independently generated seeds collided")
	}
}
