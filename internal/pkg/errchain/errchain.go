// Package errchain renders wrapped errors as a readable cause chain.
package errchain

import (
	"errors"
	"strings"
)

// Causes returns err followed by every error it wraps, depth first.
// Errors that wrap several causes (errors.Join, fmt.Errorf with many %w)
// contribute each branch in order.
func Causes(err error) []error {
	var out []error
	var walk func(error)
	walk = func(e error) {
		if e == nil {
			return
		}
		out = append(out, e)
		switch u := e.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				walk(inner)
			}
		default:
			walk(errors.Unwrap(e))
		}
	}
	walk(err)
	return out
}

// Format renders err and its causes, one per line:
//
//	send confirmation email: post email: context deadline exceeded
//	Caused by:
//		post email: context deadline exceeded
//		context deadline exceeded
func Format(err error) string {
	if err == nil {
		return ""
	}

	causes := Causes(err)
	var b strings.Builder
	b.WriteString(err.Error())
	if len(causes) > 1 {
		b.WriteString("\nCaused by:")
		for _, c := range causes[1:] {
			b.WriteString("\n\t")
			b.WriteString(c.Error())
		}
	}
	return b.String()
}
