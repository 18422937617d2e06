package command

import (
	"context"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/google/uuid"
)

// LocationCommandConfig wires the location sharing commands.
type LocationCommandConfig struct {
	Store  types.DocumentStore
	Cache  Invalidator
	Clock  types.Clock
	Logger types.Logger
}

// LocationSaveInput shares the user's current position.
type LocationSaveInput struct {
	UserID    uuid.UUID
	Latitude  float64
	Longitude float64
	Result    *types.Location
}

// Type implements gocommand.Message.
func (LocationSaveInput) Type() string {
	return "command.location.save"
}

// Validate implements gocommand.Message.
func (input LocationSaveInput) Validate() error {
	if input.UserID == uuid.Nil {
		return ErrUserIDRequired
	}
	if input.Latitude < -90 || input.Latitude > 90 || input.Longitude < -180 || input.Longitude > 180 {
		return ErrCoordinatesInvalid
	}
	return nil
}

// LocationSaveCommand upserts the locations document keyed by user id.
type LocationSaveCommand struct {
	store  types.DocumentStore
	cache  Invalidator
	clock  types.Clock
	logger types.Logger
}

// NewLocationSaveCommand constructs the location save handler.
func NewLocationSaveCommand(cfg LocationCommandConfig) *LocationSaveCommand {
	return &LocationSaveCommand{
		store:  cfg.Store,
		cache:  cfg.Cache,
		clock:  safeClock(cfg.Clock),
		logger: safeLogger(cfg.Logger),
	}
}

var _ gocommand.Commander[LocationSaveInput] = (*LocationSaveCommand)(nil)

// Execute implements gocommand.Commander.
func (c *LocationSaveCommand) Execute(ctx context.Context, input LocationSaveInput) error {
	if err := input.Validate(); err != nil {
		return err
	}
	if c.store == nil {
		return types.ErrMissingDocumentStore
	}
	id := input.UserID.String()
	stamp := now(c.clock)
	fields := map[string]any{
		"user_id":    id,
		"latitude":   input.Latitude,
		"longitude":  input.Longitude,
		"updated_at": stamp,
	}
	err := c.store.Write(ctx, types.CollectionLocations, id, fields)
	if types.IsNotFound(err) {
		fields["id"] = id
		_, err = c.store.Insert(ctx, types.CollectionLocations, fields)
	}
	if err != nil {
		return err
	}
	invalidate(c.cache)
	c.logger.Debug("location saved", "user_id", id)
	if input.Result != nil {
		*input.Result = types.Location{
			ID:        id,
			UserID:    id,
			Latitude:  input.Latitude,
			Longitude: input.Longitude,
			Valid:     true,
			UpdatedAt: stamp,
		}
	}
	return nil
}

// LocationRemoveInput stops sharing the user's position.
type LocationRemoveInput struct {
	UserID uuid.UUID
}

// Type implements gocommand.Message.
func (LocationRemoveInput) Type() string {
	return "command.location.remove"
}

// Validate implements gocommand.Message.
func (input LocationRemoveInput) Validate() error {
	if input.UserID == uuid.Nil {
		return ErrUserIDRequired
	}
	return nil
}

// LocationRemoveCommand deletes the user's locations document.
type LocationRemoveCommand struct {
	store types.DocumentStore
	cache Invalidator
}

// NewLocationRemoveCommand constructs the location remove handler.
func NewLocationRemoveCommand(cfg LocationCommandConfig) *LocationRemoveCommand {
	return &LocationRemoveCommand{store: cfg.Store, cache: cfg.Cache}
}

var _ gocommand.Commander[LocationRemoveInput] = (*LocationRemoveCommand)(nil)

// Execute implements gocommand.Commander.
func (c *LocationRemoveCommand) Execute(ctx context.Context, input LocationRemoveInput) error {
	if err := input.Validate(); err != nil {
		return err
	}
	if c.store == nil {
		return types.ErrMissingDocumentStore
	}
	if err := c.store.Delete(ctx, types.CollectionLocations, input.UserID.String()); err != nil {
		return err
	}
	invalidate(c.cache)
	return nil
}
