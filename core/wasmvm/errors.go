package wasmvm

import "errors"

// ErrImmutableState is raised when a contract attempts db_write, db_remove,
// or db_remove_range while Env.ReadOnly is set (§4.6 "State mutability":
// "this check is in the host, not the guest — a malicious contract calling
// db_write directly still fails").
var ErrImmutableState = errors.New("wasmvm: write attempted in read-only (query) context")

// ErrExceedMaxQueryDepth is raised when query_chain would open a nested
// instance deeper than MaxQueryDepth (§4.6 "Query recursion").
var ErrExceedMaxQueryDepth = errors.New("wasmvm: exceeded maximum query recursion depth")

// ErrUnknownIterator is raised when db_next/db_next_key/db_next_value is
// called with an iterator handle that was never opened, or was already
// closed, in the current call.
var ErrUnknownIterator = errors.New("wasmvm: unknown iterator handle")
