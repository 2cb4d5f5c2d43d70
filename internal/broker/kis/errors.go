package kis

import "fmt"

// AuthError indicates the broker rejected our credentials or a token mint
// failed in a way the caller cannot recover from by retrying with the same
// key pair.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("kis auth failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("kis auth failed: %s", e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

// APIError carries the broker's non-zero return code and message verbatim.
// No mapping of broker codes to semantic kinds happens at this layer.
type APIError struct {
	ReturnCode string // rt_cd
	MsgCode    string // msg_cd
	Msg        string // msg1
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kis API error: rt_cd=%s %s - %s", e.ReturnCode, e.MsgCode, e.Msg)
}
