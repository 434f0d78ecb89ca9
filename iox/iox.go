// Package iox provides cleanup helpers for plugins and command teardown.
package iox

import (
	"errors"
	"io"
)

// DiscardClose closes c and discards the error. Use in defer statements
// where a close error cannot change the outcome:
//
//	defer iox.DiscardClose(resp.Body)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc returns a cleanup function that closes c, for t.Cleanup:
//
//	t.Cleanup(iox.CloseFunc(p))
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// CloseAll closes every non-nil closer in reverse order and joins the
// errors.
func CloseAll(closers ...io.Closer) error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if closers[i] == nil {
			continue
		}
		if err := closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AsCloser returns v as an io.Closer, or nil when v has no Close method.
func AsCloser(v any) io.Closer {
	if c, ok := v.(io.Closer); ok {
		return c
	}
	return nil
}
