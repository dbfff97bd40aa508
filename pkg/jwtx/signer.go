package jwtx

// Signer is our interface for anything that can sign tokens.
type Signer interface {
	Alg() string
	Sign(Claims) (string, error)
	Validate() error
}

// SupportedAlgorithms lists the HMAC algorithms a Codec can be built with.
func SupportedAlgorithms() []string {
	return []string{"HS256", "HS384", "HS512"}
}
