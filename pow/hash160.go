package pow

import "golang.org/x/crypto/ripemd160" //nolint:staticcheck // required for address derivation, not a security primitive

// H160 computes RIPEMD160(SHA256(x)), the address-derivation hash used to
// shorten a public key or script into the payload an address encodes.
func H160(x []byte) []byte {
	sha := sha256Sum(x)

	hasher := ripemd160.New()
	hasher.Write(sha) //nolint:errcheck // ripemd160.digest.Write never errors

	return hasher.Sum(nil)
}
