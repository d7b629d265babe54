package patch

import "errors"

var (
	// ErrFeedbackCycle is returned together with a connection that would close
	// a loop. The connection is kept but is not live.
	ErrFeedbackCycle = errors.New("feedback cycle")

	ErrUnknownKind         = errors.New("unknown node kind")
	ErrDuplicateNode       = errors.New("duplicate node name")
	ErrNodeNotFound        = errors.New("node not found")
	ErrPortNotFound        = errors.New("port not found")
	ErrPortDirection       = errors.New("connections run from an output port to an input port")
	ErrForeignPort         = errors.New("port does not belong to this patch")
	ErrDuplicateConnection = errors.New("ports already connected")
	ErrConnNotFound        = errors.New("connection not found")
	ErrUnknownOp           = errors.New("unknown operation")
)
