package cipher

import (
	"strings"
	"testing"
)

func TestCodec_RoundTrip(t *testing.T) {
	codec, err := NewCodec("test-encryption-secret")
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}

	tests := []struct {
		name      string
		plaintext string
	}{
		{"clinical note", "Patient reports mild headache. Take ibuprofen 200mg twice daily for 5 days."},
		{"unicode", "Paciente con fiebre: tomar paracetamol"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := codec.Encrypt(tt.plaintext)
			if err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}

			if tt.plaintext != "" && strings.Contains(enc, tt.plaintext) {
				t.Error("Encrypt() output contains plaintext")
			}

			dec, err := codec.Decrypt(enc)
			if err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}

			if dec != tt.plaintext {
				t.Errorf("Decrypt() = %q, want %q", dec, tt.plaintext)
			}
		})
	}
}

func TestCodec_NonceIsRandom(t *testing.T) {
	codec, _ := NewCodec("test-encryption-secret")

	a, _ := codec.Encrypt("same text")
	b, _ := codec.Encrypt("same text")

	if a == b {
		t.Error("Encrypt() produced identical ciphertexts for the same plaintext")
	}
}

func TestCodec_WrongKey(t *testing.T) {
	codecA, _ := NewCodec("secret-a")
	codecB, _ := NewCodec("secret-b")

	enc, _ := codecA.Encrypt("private")

	if _, err := codecB.Decrypt(enc); err == nil {
		t.Error("Decrypt() with wrong key expected error but got none")
	}
}

func TestCodec_Malformed(t *testing.T) {
	codec, _ := NewCodec("test-encryption-secret")

	for _, input := range []string{"not base64!!", "c2hvcnQ="} {
		if _, err := codec.Decrypt(input); err != ErrMalformedCiphertext {
			t.Errorf("Decrypt(%q) error = %v, want ErrMalformedCiphertext", input, err)
		}
	}
}

func TestNewCodec_EmptySecret(t *testing.T) {
	if _, err := NewCodec(""); err == nil {
		t.Error("NewCodec() expected error for empty secret")
	}
}
