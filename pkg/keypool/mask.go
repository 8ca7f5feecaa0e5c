package keypool

// maskVisible is how many trailing characters of a key survive masking.
const maskVisible = 4

// MaskKey returns a redacted form of a credential safe for logs and API
// responses: everything but the last four characters is replaced. Keys too
// short to keep a suffix are fully redacted.
func MaskKey(key string) string {
	if len(key) <= maskVisible*2 {
		return "****"
	}
	return "****" + key[len(key)-maskVisible:]
}
