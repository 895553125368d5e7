package poller

import (
	"fmt"
	"io"
)

// Opener opens a URL as a new navigation target.
type Opener interface {
	Open(url string) error
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(url string) error

func (f OpenerFunc) Open(url string) error { return f(url) }

// WriterOpener "opens" a URL by printing it, for terminals without a browser.
type WriterOpener struct {
	W io.Writer
}

func (o WriterOpener) Open(url string) error {
	_, err := fmt.Fprintln(o.W, url)
	return err
}
