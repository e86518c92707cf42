package order

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

const (
	tokenMin = 1000
	tokenMax = 9999

	maxTokenAttempts = 20
)

// TokenSource yields candidate pickup tokens; uniqueness is checked by the caller.
type TokenSource func() string

func RandomToken() string {
	return strconv.Itoa(tokenMin + rand.IntN(tokenMax-tokenMin+1))
}

// NormalizeToken accepts what customers type ("#4821", " 4821 ").
func NormalizeToken(raw string) string {
	return strings.TrimPrefix(strings.TrimSpace(raw), "#")
}

func IsValidToken(token string) bool {
	n, err := strconv.Atoi(token)
	return err == nil && len(token) == 4 && n >= tokenMin && n <= tokenMax
}

// businessDay truncates t to midnight in loc; pickup tokens are unique per such day.
func businessDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
