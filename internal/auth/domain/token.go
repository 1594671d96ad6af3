package domain

import "time"

// TokenPair is the access/refresh credential pair minted at login and at
// each successful refresh rotation.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
}
