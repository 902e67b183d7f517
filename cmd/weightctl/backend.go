package main

import (
	"context"

	"weightlog/internal/adapter/sqlite"
	"weightlog/internal/api"
	"weightlog/internal/app"
	"weightlog/internal/client"
	"weightlog/internal/domain"

	"github.com/sirupsen/logrus"
)

// backend is where the CLI reads and writes records: the local database or
// a remote server.
type backend interface {
	Add(ctx context.Context, day string, weightKg float64) (*domain.WeightObservation, error)
	Records(ctx context.Context, days int) (*app.Summary, error)
	Between(ctx context.Context, from, to string) (*app.Summary, error)
	// Latest returns the most recent record, or nil.
	Latest(ctx context.Context) (*domain.WeightObservation, error)
	Delete(ctx context.Context, id int64) error
	Settings(ctx context.Context) (domain.UserPreferences, error)
	UpdateSettings(ctx context.Context, upd api.SettingsUpdate) error
	Close() error
}

type localBackend struct {
	store    *sqlite.Store
	weights  *app.WeightService
	settings *app.SettingsService
}

func openLocal(path string, log logrus.FieldLogger) (*localBackend, error) {
	st, err := sqlite.Open(path, log)
	if err != nil {
		return nil, err
	}
	return &localBackend{
		store:    st,
		weights:  app.NewWeightService(st, nil, nil),
		settings: app.NewSettingsService(st, nil),
	}, nil
}

func (b *localBackend) Add(ctx context.Context, day string, weightKg float64) (*domain.WeightObservation, error) {
	if day == "" {
		day = b.weights.Today()
	}
	return b.weights.RecordAt(ctx, sqlite.LocalUserID, day, weightKg)
}

func (b *localBackend) Records(ctx context.Context, days int) (*app.Summary, error) {
	return b.weights.Summary(ctx, sqlite.LocalUserID, days)
}

func (b *localBackend) Between(ctx context.Context, from, to string) (*app.Summary, error) {
	obs, err := b.weights.Between(ctx, sqlite.LocalUserID, from, to)
	if err != nil {
		return nil, err
	}
	return app.Summarize(obs), nil
}

func (b *localBackend) Latest(ctx context.Context) (*domain.WeightObservation, error) {
	return b.weights.Latest(ctx, sqlite.LocalUserID)
}

func (b *localBackend) Delete(ctx context.Context, id int64) error {
	return b.weights.Delete(ctx, sqlite.LocalUserID, id)
}

func (b *localBackend) Settings(ctx context.Context) (domain.UserPreferences, error) {
	return b.settings.Get(ctx, sqlite.LocalUserID)
}

func (b *localBackend) UpdateSettings(ctx context.Context, upd api.SettingsUpdate) error {
	p, err := upd.Preferences()
	if err != nil {
		return err
	}
	_, err = b.settings.Update(ctx, sqlite.LocalUserID, p)
	return err
}

func (b *localBackend) Close() error {
	return b.store.Close()
}

type remoteBackend struct {
	c *client.Client
}

func (b remoteBackend) Add(ctx context.Context, day string, weightKg float64) (*domain.WeightObservation, error) {
	return b.c.AddRecord(ctx, day, weightKg)
}

func (b remoteBackend) Records(ctx context.Context, days int) (*app.Summary, error) {
	return b.c.Records(ctx, client.RecordsQuery{Days: days})
}

func (b remoteBackend) Between(ctx context.Context, from, to string) (*app.Summary, error) {
	return b.c.Records(ctx, client.RecordsQuery{From: from, To: to})
}

// Latest has no endpoint of its own; the widest window ends with it.
func (b remoteBackend) Latest(ctx context.Context) (*domain.WeightObservation, error) {
	sum, err := b.c.Records(ctx, client.RecordsQuery{Days: app.MaxRangeDays})
	if err != nil || len(sum.Records) == 0 {
		return nil, err
	}
	return &sum.Records[len(sum.Records)-1], nil
}

func (b remoteBackend) Delete(ctx context.Context, id int64) error {
	return b.c.DeleteRecord(ctx, id)
}

func (b remoteBackend) Settings(ctx context.Context) (domain.UserPreferences, error) {
	s, err := b.c.Settings(ctx)
	if err != nil {
		return domain.UserPreferences{}, err
	}
	return s.Preferences(0)
}

func (b remoteBackend) UpdateSettings(ctx context.Context, upd api.SettingsUpdate) error {
	return b.c.UpdateSettings(ctx, upd)
}

func (b remoteBackend) Close() error { return nil }
