package jetstream

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	nats "github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

const (
	StreamName    = "SIDEKICK_CACHE"
	SubjectPrefix = "sidekick.cache."
	// ListSubject announces that the subject list changed.
	ListSubject = SubjectPrefix + "threads"
)

const (
	ScopeDetail = "detail"
	ScopeList   = "list"
)

func EnsureStream(js nats.JetStreamContext) error {
	_, err := js.AddStream(&nats.StreamConfig{
		Name:              StreamName,
		Subjects:          []string{SubjectPrefix + ">"},
		Storage:           nats.FileStorage,
		MaxAge:            time.Hour,
		Retention:         nats.LimitsPolicy,
		MaxMsgsPerSubject: 1,
	})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return err
	}
	return nil
}

// DetailSubject is where invalidations of one subject's detail go. Dots and
// wildcards in the id are replaced so the id stays a single token.
func DetailSubject(subjectID string) string {
	return SubjectPrefix + "thread." + subjectToken(subjectID)
}

func subjectToken(id string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, id)
}

// Invalidation is the message published for each cache scope.
type Invalidation struct {
	SubjectID string    `json:"subject_id"`
	Scope     string    `json:"scope"`
	At        time.Time `json:"at"`
}

// Invalidator publishes cache invalidations to JetStream.
type Invalidator struct {
	js nats.JetStreamContext
}

func NewInvalidator(js nats.JetStreamContext) *Invalidator {
	return &Invalidator{js: js}
}

// Invalidate announces that both the subject's detail and the subject list
// are stale.
func (i *Invalidator) Invalidate(ctx context.Context, subjectID string) error {
	now := time.Now().UTC()
	for _, target := range []struct{ subject, scope string }{
		{DetailSubject(subjectID), ScopeDetail},
		{ListSubject, ScopeList},
	} {
		data, err := json.Marshal(Invalidation{SubjectID: subjectID, Scope: target.scope, At: now})
		if err != nil {
			return err
		}
		if _, err := i.js.Publish(target.subject, data, nats.Context(ctx)); err != nil {
			return fmt.Errorf("publish %s: %w", target.subject, err)
		}
	}
	log.Debug().Str("subject_id", subjectID).Msg("cache invalidated")
	return nil
}

// WatchInvalidations delivers invalidations published from now on.
func WatchInvalidations(js nats.JetStreamContext, fn func(Invalidation)) (*nats.Subscription, error) {
	return js.Subscribe(SubjectPrefix+">", func(msg *nats.Msg) {
		var inv Invalidation
		if err := json.Unmarshal(msg.Data, &inv); err != nil {
			log.Warn().Err(err).Str("subject", msg.Subject).Msg("skipping malformed invalidation")
			return
		}
		fn(inv)
	}, nats.DeliverNew())
}
