package linepay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// Sign computes the LINE Pay v3 request signature: base64 of an
// HMAC-SHA256 keyed with the channel secret over the concatenation
// secret + uri + body + nonce. The nonce must be fresh per request,
// a reused nonce makes the signature replayable.
func Sign(channelSecret, uri string, body []byte, nonce string) string {
	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write([]byte(channelSecret))
	mac.Write([]byte(uri))
	mac.Write(body)
	mac.Write([]byte(nonce))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
