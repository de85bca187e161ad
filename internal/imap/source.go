package imap

import (
	"context"
	"fmt"
	"time"

	"smtp-forensics/internal/logging"
	"smtp-forensics/internal/models"
)

// Source feeds raw messages of one mailbox to the message processor, in
// the same form as objects exported from a capture.
type Source struct {
	client   Client
	server   string
	login    string
	password string
	mailbox  string
	since    time.Duration
}

// NewSource creates a Source from the imap section of the configuration
func NewSource(client Client, cfg models.IMAPConfig) *Source {
	mailbox := cfg.MailBox
	if mailbox == "" {
		mailbox = "INBOX"
	}
	return &Source{
		client:   client,
		server:   cfg.Server,
		login:    cfg.Login,
		password: cfg.Password,
		mailbox:  mailbox,
		since:    cfg.Since,
	}
}

// Objects connects, lists the mailbox and fetches every message. A message
// that cannot be fetched is reported on its object; connection, login and
// search failures are fatal.
func (s *Source) Objects(ctx context.Context) ([]models.RawObject, error) {
	if err := s.client.Connect(s.server); err != nil {
		return nil, err
	}
	defer func() {
		if err := s.client.Close(); err != nil {
			logging.Log.Warnf("Error closing IMAP session: %v", err)
		}
	}()

	if err := s.client.Login(s.login, s.password); err != nil {
		return nil, fmt.Errorf("IMAP login error: %w", err)
	}
	if err := s.client.SelectMailbox(s.mailbox); err != nil {
		return nil, fmt.Errorf("error selecting mailbox %s: %w", s.mailbox, err)
	}

	uids, err := s.client.ListUIDs(s.since)
	if err != nil {
		return nil, err
	}
	logging.Log.Infof("Fetching %d messages from %s", len(uids), s.mailbox)

	objects := make([]models.RawObject, 0, len(uids))
	for _, uid := range uids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		obj := models.RawObject{Name: fmt.Sprintf("%s-uid-%d", s.mailbox, uid)}
		obj.Data, obj.Err = s.client.FetchRaw(uid)
		objects = append(objects, obj)
	}
	return objects, nil
}
