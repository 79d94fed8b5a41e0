package testutil

// FixedTokenGenerator returns the same transaction token every time.
//
// Tests that count records rather than correlate transactions use it to
// keep UUID generation out of the picture. It satisfies engine.TokenGenerator.
type FixedTokenGenerator struct {
	token string
}

// NewFixedTokenGenerator creates a generator for token.
// An empty token becomes "tx-fixed".
func NewFixedTokenGenerator(token string) FixedTokenGenerator {
	if token == "" {
		token = "tx-fixed"
	}
	return FixedTokenGenerator{token: token}
}

// Generate returns the fixed token.
func (g FixedTokenGenerator) Generate() string {
	return g.token
}
