package tcp

import "github.com/pkg/errors"

var (
	// ErrClosed is delivered to a reader/writer task when the connection has
	// been closed, either locally or by the peer (spec §5 Cancellation).
	ErrClosed = errors.New("tcp: connection closed")
	// ErrReaderBusy/ErrWriterBusy name the double-acquire programming error
	// (spec §7 taxonomy #1). No function returns them: acquireReader and
	// acquireWriter panic with a plain string when a token is already held.
	ErrReaderBusy = errors.New("tcp: another task is already reading")
	ErrWriterBusy = errors.New("tcp: another task is already writing")
	// ErrTimeout names a Timer-Queue-backed deadline expiring before the
	// awaited event (spec §7 taxonomy #3). No function in this package
	// returns it: WaitForData reports an expired deadline as (false, nil).
	ErrTimeout = errors.New("tcp: operation timed out")
	// ErrUnsupportedConn means the supplied net.Conn cannot be adopted
	// because it doesn't expose a raw file descriptor.
	ErrUnsupportedConn = errors.New("tcp: connection does not support SyscallConn")
)
