package upstream

import "errors"

// IsKeySpecific reports whether the error indicts the credential used for
// the attempt: rejected auth, exhausted quota, or an upstream server
// failure. These count against the key's consecutive failure threshold and
// the dispatcher moves on to the next key.
func IsKeySpecific(err error) bool {
	return errors.Is(err, ErrAuth) ||
		errors.Is(err, ErrQuota) ||
		errors.Is(err, ErrServer)
}

// IsTransient reports whether the error says nothing about the credential:
// a timeout or a network fault. The dispatcher tries another key but the
// failed key's counter is left alone.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrNetwork)
}

// IsClient reports whether the request itself was rejected. No key can
// serve it, so the dispatcher fails immediately without retrying.
func IsClient(err error) bool {
	return errors.Is(err, ErrClient)
}
