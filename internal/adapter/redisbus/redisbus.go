// Package redisbus relays record changes between server instances over Redis
// pub/sub.
package redisbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"weightlog/internal/app"
)

// DefaultChannel is the pub/sub channel used when none is configured.
const DefaultChannel = "weightlog:records"

type message struct {
	UserID int64  `json:"userId"`
	Origin string `json:"origin"`
}

// Relay notifies local subscribers directly and tells other instances
// through Redis.
type Relay struct {
	log     logrus.FieldLogger
	rdb     goredis.UniversalClient
	channel string
	origin  string
	local   app.ChangeNotifier
}

var _ app.ChangeNotifier = (*Relay)(nil)

// New creates a relay on an existing client. local receives every change,
// whichever instance made it.
func New(rdb goredis.UniversalClient, channel string, local app.ChangeNotifier, log logrus.FieldLogger) *Relay {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Relay{
		log:     log.WithField("component", "redisbus"),
		rdb:     rdb,
		channel: channel,
		origin:  uuid.NewString(),
		local:   local,
	}
}

// Dial connects to addr and verifies the connection.
func Dial(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// RecordsChanged implements app.ChangeNotifier.
func (r *Relay) RecordsChanged(ctx context.Context, userID int64) {
	r.local.RecordsChanged(ctx, userID)

	raw, err := json.Marshal(message{UserID: userID, Origin: r.origin})
	if err != nil {
		r.log.WithError(err).Error("encode change")
		return
	}
	if err := r.rdb.Publish(ctx, r.channel, raw).Err(); err != nil {
		r.log.WithError(err).WithField("user_id", userID).Warn("publish change")
	}
}

// Run forwards changes published by other instances until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer sub.Close() //nolint:errcheck

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("redis subscribe: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return fmt.Errorf("redis subscription closed")
			}
			r.handle(ctx, m.Payload)
		}
	}
}

func (r *Relay) handle(ctx context.Context, payload string) {
	var msg message
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		r.log.WithError(err).Warn("bad redis payload")
		return
	}
	if msg.Origin == r.origin {
		return
	}
	r.local.RecordsChanged(ctx, msg.UserID)
}
