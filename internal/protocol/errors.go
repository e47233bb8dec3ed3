package protocol

// InputError marks a malformed or unrecognized host event. It is non-fatal
// to the host: callers report it to the operator and fall back to the
// safest decision for the event they expected. Kind is set when the
// discriminator parsed before the payload failed, so callers can pick that
// per-kind fallback.
type InputError struct {
	Kind EventKind
	Err  error
}

func (e *InputError) Error() string {
	return "hook input error: " + e.Err.Error()
}

func (e *InputError) Unwrap() error {
	return e.Err
}
