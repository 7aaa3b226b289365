package oidc

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testIssuer    = "https://accounts.example.com"
	testDiscovery = "https://accounts.example.com/.well-known/openid-configuration"
	testJWKS      = "https://accounts.example.com/certs"
	testAudience  = "quizzy-client-id"
)

var (
	keyOnce sync.Once
	keyA    *rsa.PrivateKey
	keyB    *rsa.PrivateKey
)

func testKeys(t *testing.T) (*rsa.PrivateKey, *rsa.PrivateKey) {
	t.Helper()
	keyOnce.Do(func() {
		var err error
		if keyA, err = rsa.GenerateKey(rand.Reader, 2048); err != nil {
			panic(err)
		}
		if keyB, err = rsa.GenerateKey(rand.Reader, 2048); err != nil {
			panic(err)
		}
	})
	return keyA, keyB
}

func publicJWK(kid, alg string, pub *rsa.PublicKey) jsonWebKey {
	return jsonWebKey{
		Kty: "RSA",
		Use: "sig",
		Alg: alg,
		Kid: kid,
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}

// fakeProvider es un Fetcher en memoria que cuenta los fetch por documento.
type fakeProvider struct {
	mu   sync.Mutex
	keys []jsonWebKey
	fail error
	gate chan struct{}

	discoveryHits atomic.Int32
	jwksHits      atomic.Int32
}

func newFakeProvider(keys ...jsonWebKey) *fakeProvider {
	return &fakeProvider{keys: keys}
}

func (p *fakeProvider) setKeys(keys ...jsonWebKey) {
	p.mu.Lock()
	p.keys = keys
	p.mu.Unlock()
}

func (p *fakeProvider) setFail(err error) {
	p.mu.Lock()
	p.fail = err
	p.mu.Unlock()
}

func (p *fakeProvider) Fetch(ctx context.Context, url string) ([]byte, error) {
	p.mu.Lock()
	gate, fail, keys := p.gate, p.fail, p.keys
	p.mu.Unlock()
	if gate != nil {
		<-gate
	}
	switch url {
	case testDiscovery:
		p.discoveryHits.Add(1)
		if fail != nil {
			return nil, fail
		}
		return json.Marshal(DiscoveryDocument{
			Issuer:                testIssuer,
			AuthorizationEndpoint: testIssuer + "/auth",
			TokenEndpoint:         testIssuer + "/token",
			JWKSURI:               testJWKS,
		})
	case testJWKS:
		p.jwksHits.Add(1)
		return json.Marshal(jsonWebKeySet{Keys: keys})
	}
	return nil, fmt.Errorf("unexpected url %s", url)
}

var testNow = time.Unix(1_700_000_000, 0)

func validClaims() jwtv5.MapClaims {
	return jwtv5.MapClaims{
		"iss":            testIssuer,
		"sub":            "110169484474386276334",
		"aud":            testAudience,
		"exp":            testNow.Add(time.Hour).Unix(),
		"iat":            testNow.Add(-time.Minute).Unix(),
		"auth_time":      testNow.Add(-2 * time.Minute).Unix(),
		"nonce":          "n-0S6_WzA2Mj",
		"sid":            "session-1",
		"email":          "admin@example.com",
		"email_verified": true,
		"azp":            testAudience,
		"name":           "Ada Admin",
	}
}

func sign(t *testing.T, key any, alg, kid string, claims jwtv5.MapClaims) string {
	t.Helper()
	tok := jwtv5.NewWithClaims(jwtv5.GetSigningMethod(alg), claims)
	if kid != "" {
		tok.Header["kid"] = kid
	}
	s, err := tok.SignedString(key)
	require.NoError(t, err)
	return s
}

func newTestVerifier(p *fakeProvider, opts ...VerifierOption) (*Verifier, *KeySet) {
	ks := NewKeySet(testDiscovery, p, WithKeySetLogger(zap.NewNop()))
	opts = append([]VerifierOption{
		WithClock(func() time.Time { return testNow }),
		WithVerifierLogger(zap.NewNop()),
	}, opts...)
	return NewVerifier(ks, testAudience, opts...), ks
}
