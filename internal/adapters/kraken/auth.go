package kraken

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"strconv"
)

// Sign computes the API-Sign header of a private call:
// base64(HMAC-SHA512(secret, path + SHA256(nonce + postData))).
func Sign(secret []byte, path string, nonce int64, postData string) string {
	sum := sha256.Sum256([]byte(strconv.FormatInt(nonce, 10) + postData))

	mac := hmac.New(sha512.New, secret)
	mac.Write([]byte(path))
	mac.Write(sum[:])
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// nextNonce returns a strictly increasing nonce (unix nanoseconds).
func (c *Client) nextNonce() int64 {
	c.nonceMu.Lock()
	defer c.nonceMu.Unlock()

	n := c.now().UnixNano()
	if n <= c.lastNonce {
		n = c.lastNonce + 1
	}
	c.lastNonce = n
	return n
}
