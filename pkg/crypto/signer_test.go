package crypto

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestGenerateKey(t *testing.T) {
	signer, err := GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	if signer.Address() == (common.Address{}) {
		t.Error("generated zero address")
	}
	if len(signer.PrivateKeyHex()) != 64 {
		t.Errorf("private key hex length = %d, want 64", len(signer.PrivateKeyHex()))
	}
	if len(signer.PublicKeyHex()) != 130 {
		t.Errorf("public key hex length = %d, want 130", len(signer.PublicKeyHex()))
	}
}

func TestFromPrivateKeyHex(t *testing.T) {
	signer1, _ := GenerateKey()
	privHex := signer1.PrivateKeyHex()

	signer2, err := FromPrivateKeyHex(privHex)
	if err != nil {
		t.Fatalf("failed to load key: %v", err)
	}
	if signer2.Address() != signer1.Address() {
		t.Errorf("address mismatch: %s != %s", signer2.Address(), signer1.Address())
	}

	signer3, err := FromPrivateKeyHex("0x" + privHex)
	if err != nil {
		t.Fatalf("failed to load 0x-prefixed key: %v", err)
	}
	if signer3.Address() != signer1.Address() {
		t.Error("0x prefix changed the derived address")
	}
}

func TestSignAndRecover(t *testing.T) {
	signer, _ := GenerateKey()
	digest := OrderDigest("mkt-1", 0, 0, 40, 10, 7)

	sig, err := signer.Sign(digest)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if len(sig) != 65 {
		t.Fatalf("signature length = %d, want 65", len(sig))
	}

	addr, err := RecoverAddress(digest, sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if addr != signer.Address() {
		t.Errorf("recovered %s, want %s", addr, signer.Address())
	}
	if !VerifySignature(signer.Address(), digest, sig) {
		t.Error("verify failed for valid signature")
	}

	other, _ := GenerateKey()
	if VerifySignature(other.Address(), digest, sig) {
		t.Error("verify passed for wrong address")
	}
}

func TestSignRejectsBadDigest(t *testing.T) {
	signer, _ := GenerateKey()
	if _, err := signer.Sign([]byte("short")); err == nil {
		t.Error("expected error for non-32-byte digest")
	}
}

func TestDigestsAreDistinct(t *testing.T) {
	base := OrderDigest("mkt-1", 0, 0, 40, 10, 7)
	cases := [][]byte{
		OrderDigest("mkt-2", 0, 0, 40, 10, 7),
		OrderDigest("mkt-1", 1, 0, 40, 10, 7),
		OrderDigest("mkt-1", 0, 1, 40, 10, 7),
		OrderDigest("mkt-1", 0, 0, 41, 10, 7),
		OrderDigest("mkt-1", 0, 0, 40, 11, 7),
		OrderDigest("mkt-1", 0, 0, 40, 10, 8),
		CancelDigest("mkt-1", 40, 7),
		WithdrawDigest("mkt-1", 40, 7),
		ClaimDigest("mkt-1", 7),
	}
	for i, d := range cases {
		if string(d) == string(base) {
			t.Errorf("case %d collides with base digest", i)
		}
	}
}

func TestSignMessage(t *testing.T) {
	signer, _ := GenerateKey()
	sig, err := signer.SignMessage([]byte("hello"))
	if err != nil {
		t.Fatalf("sign message: %v", err)
	}
	if len(sig) != 65 {
		t.Errorf("signature length = %d, want 65", len(sig))
	}
}
