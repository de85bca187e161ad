package imap

import (
	"time"
)

// Client is the subset of an IMAP session needed to pull raw messages
type Client interface {
	Connect(server string) error
	Login(user, password string) error
	SelectMailbox(name string) error
	ListUIDs(since time.Duration) ([]uint32, error)
	FetchRaw(uid uint32) ([]byte, error)
	Close() error
}
