package auth

import (
	"errors"
	"time"
)

// Issuer mints and checks session tokens with a shared secret.
type Issuer struct {
	secret string
	ttl    time.Duration
}

func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if len(secret) < 16 {
		return nil, errors.New("token secret must be at least 16 bytes")
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Issuer{secret: secret, ttl: ttl}, nil
}

func (i *Issuer) Issue(sessionID, actorID, role string, now time.Time) (string, time.Time, error) {
	exp := now.Add(i.ttl)
	tok, err := SignHS256(Claims{
		Sub:     actorID,
		Session: sessionID,
		Role:    role,
		Iat:     now.Unix(),
		Exp:     exp.Unix(),
	}, i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tok, exp, nil
}

func (i *Issuer) Verify(token string, now time.Time) (*Claims, error) {
	return ParseAndVerifyHS256(token, i.secret, now)
}
