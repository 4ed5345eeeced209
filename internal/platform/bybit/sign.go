package bybit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// sign computes the Bybit v5 request signature: lowercase hex of
// HMAC-SHA256 over timestamp + apiKey + recvWindow + payload, where the
// payload is the raw query string for GET requests and the JSON body for
// POST requests.
func sign(secret, timestamp, apiKey, recvWindow, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + apiKey + recvWindow + payload))
	return hex.EncodeToString(mac.Sum(nil))
}
