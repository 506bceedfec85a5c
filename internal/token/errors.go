package token

import (
	"errors"
	"fmt"
)

// Kind classifies why a relay address could not be decoded
type Kind string

const (
	KindMalformed   Kind = "MALFORMED"
	KindAuthFailed  Kind = "AUTH_FAILED"
	KindWrongDomain Kind = "WRONG_DOMAIN"
)

// Sentinels for errors.Is matching against a *DecodeError
var (
	ErrMalformed   = &DecodeError{Kind: KindMalformed}
	ErrAuthFailed  = &DecodeError{Kind: KindAuthFailed}
	ErrWrongDomain = &DecodeError{Kind: KindWrongDomain}
)

// DecodeError reports a relay address that is not a valid reply token. It is
// never a system fault.
type DecodeError struct {
	Kind   Kind
	Detail string
}

func (e *DecodeError) Error() string {
	if e.Detail == "" {
		return "token: " + string(e.Kind)
	}
	return fmt.Sprintf("token: %s: %s", e.Kind, e.Detail)
}

// Is matches any DecodeError of the same kind
func (e *DecodeError) Is(target error) bool {
	t, ok := target.(*DecodeError)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of a decode error, or "" when err is not one
func KindOf(err error) Kind {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

func decodeErr(kind Kind, format string, args ...any) *DecodeError {
	return &DecodeError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
