// Package canaserr defines the CANaerospace error taxonomy shared by every
// layer of the protocol engine, from frame parsing up through the core
// orchestrator. Every public operation of the protocol engine signals one
// of these sentinels (wrapped with context via fmt.Errorf("%w: ...")),
// never a bare ad-hoc error, so callers can dispatch on them with
// errors.Is. The setup calls of the ambient packages (slcan.Open,
// daemonconfig.Load) instead wrap the errors of their serial and
// configuration libraries.
package canaserr

import "errors"

// Sentinel errors. See companion spec, "Error Handling Design": the
// taxonomy is semantic, not tied to any single language's error type.
var (
	// ErrArgument signals a caller-supplied argument violates a precondition.
	ErrArgument = errors.New("canas: invalid argument")
	// ErrNotEnoughMemory signals allocator exhaustion.
	ErrNotEnoughMemory = errors.New("canas: allocator exhausted")
	// ErrDriver signals every configured interface's driver write failed.
	ErrDriver = errors.New("canas: driver error")
	// ErrNoSuchEntry signals a lookup by id/channel found nothing.
	ErrNoSuchEntry = errors.New("canas: no such entry")
	// ErrEntryExists signals a duplicate subscribe/advertise/register.
	ErrEntryExists = errors.New("canas: entry already exists")
	// ErrBadDataType signals a reserved tag, or a length/tag mismatch.
	ErrBadDataType = errors.New("canas: bad data type")
	// ErrBadMessageID signals a message id outside any routing group.
	ErrBadMessageID = errors.New("canas: bad message id")
	// ErrBadNodeID signals an illegal node id for the operation attempted.
	ErrBadNodeID = errors.New("canas: bad node id")
	// ErrBadRedundChan signals a redundancy channel outside the
	// subscription's configured channel count, or out of the 0..255 range.
	ErrBadRedundChan = errors.New("canas: bad redundancy channel")
	// ErrBadServiceChan signals a service channel outside the valid ranges.
	ErrBadServiceChan = errors.New("canas: bad service channel")
	// ErrBadCANFrame signals a malformed CAN frame (dlc out of range, RTR set).
	ErrBadCANFrame = errors.New("canas: bad CAN frame")
	// ErrQuotaExceeded signals a bounded resource (pending slots, sessions)
	// has no room for a new request.
	ErrQuotaExceeded = errors.New("canas: quota exceeded")
	// ErrLogic signals an internal invariant violation — never expected in
	// correct operation, but returned rather than panicking.
	ErrLogic = errors.New("canas: internal logic error")
)
