package assigner

import "errors"

// ErrNoRegisteredReaders is returned when Assign is called with no
// registered readers to choose from. The Enumerator logs an assigner error
// and leaves that whole batch unassigned; the error does not stop it.
var ErrNoRegisteredReaders = errors.New("assigner: no registered readers available")
