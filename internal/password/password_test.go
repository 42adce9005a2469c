package password

import "testing"

func TestHashAndVerify(t *testing.T) {
	t.Parallel()

	digest, err := Hash("Str0ngP@ss")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if digest == "Str0ngP@ss" {
		t.Fatalf("digest must not equal plaintext")
	}
	if !Verify("Str0ngP@ss", digest) {
		t.Fatalf("Verify rejected the correct password")
	}
	if Verify("wrongpass", digest) {
		t.Fatalf("Verify accepted an incorrect password")
	}
}

func TestHashIsSaltedPerCall(t *testing.T) {
	t.Parallel()

	first, err := Hash("same-input")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	second, err := Hash("same-input")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if first == second {
		t.Fatalf("two hashes of the same plaintext must differ")
	}
}

func TestVerifyMalformedDigest(t *testing.T) {
	t.Parallel()

	if Verify("anything", "not-a-bcrypt-digest") {
		t.Fatalf("Verify accepted a malformed digest")
	}
	if Verify("anything", "") {
		t.Fatalf("Verify accepted an empty digest")
	}
}
