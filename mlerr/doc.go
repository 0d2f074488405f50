// Package mlerr defines the error taxonomy shared by the sqlite-ml packages.
// Every failure surfaced to a caller is an *Error whose Kind is one of the
// exported sentinels, so callers can branch with errors.Is while messages
// still name the offending table, column or parameter.
package mlerr
