package lab

import "errors"

var (
	// ErrAlreadyConnected is returned by Connect when the target already has a
	// recorded pairing from the source. Disconnect first.
	ErrAlreadyConnected = errors.New("already connected")

	// ErrNotConnected is returned by Disconnect when no pairing is recorded for
	// the target.
	ErrNotConnected = errors.New("not connected")

	// ErrVoiceUnderflow marks a voice index that does not exist. It is never
	// returned; the index is clamped and the error is logged.
	ErrVoiceUnderflow = errors.New("voice index out of range")

	// ErrBackendDisconnect marks a failed voice-level disconnect. It is logged
	// and the pair is treated as already severed.
	ErrBackendDisconnect = errors.New("backend disconnect failed")

	// ErrBackendConnect marks a failed voice-level connect. The edge is logged
	// and left out of the pairing record.
	ErrBackendConnect = errors.New("backend connect failed")

	ErrNodeNotFound       = errors.New("node not found")
	ErrParamNotFound      = errors.New("param not found")
	ErrDuplicateParam     = errors.New("duplicate param name")
	ErrDisposed           = errors.New("node disposed")
	ErrStaticPolyTarget   = errors.New("static poly node cannot be a connection target")
	ErrAutoPolyVoiceCount = errors.New("auto poly voice count is derived from sources")
	ErrInvalidVoiceCount  = errors.New("invalid voice count")
	ErrInvalidMode        = errors.New("invalid mode")
	ErrNilFactory         = errors.New("nil voice factory")

	ErrInvalidTimeConstant = errors.New("negative time constant")
)
