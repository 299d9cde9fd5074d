package graph

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

const (
	maxAttempts      = 3
	initialBackoff   = 200 * time.Millisecond
	statementErrCode = "Neo.ClientError.Statement"
)

// IsStatementError reports whether err is a statement-syntax-class failure
// (bad Cypher), as opposed to a transient or connectivity problem. The query
// tool repairs these once; they are never retried here.
func IsStatementError(err error) bool {
	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) {
		return strings.HasPrefix(neoErr.Code, statementErrCode)
	}
	return false
}

// StatementErrorDetail returns the error class and message for a statement
// error, for use in internal repair prompts. Empty for other errors.
func StatementErrorDetail(err error) string {
	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) && strings.HasPrefix(neoErr.Code, statementErrCode) {
		return neoErr.Code + ": " + neoErr.Msg
	}
	return ""
}

// isTransient reports whether err is worth retrying.
func isTransient(err error) bool {
	if IsStatementError(err) {
		return false
	}
	if neo4j.IsConnectivityError(err) {
		return true
	}
	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) {
		return strings.HasPrefix(neoErr.Code, "Neo.TransientError")
	}
	return false
}

// withRetry runs op up to maxAttempts times with exponential backoff on
// transient errors. Non-transient errors return immediately.
func withRetry(ctx context.Context, label string, op func(ctx context.Context) error) error {
	backoff := initialBackoff
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if !isTransient(err) || attempt == maxAttempts {
			return err
		}
		slog.Warn("Transient graph error, retrying",
			"op", label, "attempt", attempt, "backoff", backoff, "error", err)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}
	return err
}
