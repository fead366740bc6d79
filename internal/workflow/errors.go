package workflow

import (
	"errors"
	"fmt"
)

// ErrUnknownNodeKind is returned at load time for node kinds outside the
// closed variant set.
var ErrUnknownNodeKind = errors.New("unknown node kind")

// ErrGraphIntegrity signals a corrupt or incompletely migrated graph
// (cursor pointing at a node that no longer exists). The interpreter
// recovers by resetting the cursor to START.
var ErrGraphIntegrity = errors.New("workflow graph integrity violation")

// ErrWorkflowLoop is returned when a turn exceeds the traversal cap.
// The conversation is left at its pre-turn cursor.
var ErrWorkflowLoop = errors.New("workflow traversal cap exceeded")

// ErrNoMatchingEdge is returned when no outgoing edge matches and no
// default port exists; callers hand the turn to the intent router.
var ErrNoMatchingEdge = errors.New("no matching outgoing edge")

// NodeExecutionError wraps a failure from an AI call, action lookup or
// template rendering. The cursor is not advanced so the node retries
// on the next inbound message.
type NodeExecutionError struct {
	NodeID string
	Kind   NodeKind
	Err    error
}

func (e *NodeExecutionError) Error() string {
	return fmt.Sprintf("node %s (%s) execution failed: %v", e.NodeID, e.Kind, e.Err)
}

func (e *NodeExecutionError) Unwrap() error {
	return e.Err
}
