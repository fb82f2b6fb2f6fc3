package events

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Bus carries UI, model and API events on three independent channels. There
// is no ordering between channels.
type Bus struct {
	ui    *Channel[UIEvent]
	model *Channel[ModelEvent]
	api   *Channel[APIEvent]

	start sync.Once
	log   *zap.Logger
}

func NewBus(log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("events")
	return &Bus{
		ui:    NewChannel[UIEvent]("ui", log),
		model: NewChannel[ModelEvent]("model", log),
		api:   NewChannel[APIEvent]("api", log),
		log:   log,
	}
}

func (b *Bus) UI() *Channel[UIEvent]       { return b.ui }
func (b *Bus) Model() *Channel[ModelEvent] { return b.model }
func (b *Bus) API() *Channel[APIEvent]     { return b.api }

func (b *Bus) RegisterUIHandler(h Handler[UIEvent])       { b.ui.Register(h) }
func (b *Bus) RegisterModelHandler(h Handler[ModelEvent]) { b.model.Register(h) }
func (b *Bus) RegisterAPIHandler(h Handler[APIEvent])     { b.api.Register(h) }

func (b *Bus) PublishUI(ev UIEvent) error       { return b.ui.Publish(ev) }
func (b *Bus) PublishModel(ev ModelEvent) error { return b.model.Publish(ev) }
func (b *Bus) PublishAPI(ev APIEvent) error     { return b.api.Publish(ev) }

// StartEventDistribution launches one loop per channel. Later calls are no-ops.
// The loops stop when ctx ends or Close is called.
func (b *Bus) StartEventDistribution(ctx context.Context) {
	b.start.Do(func() {
		b.log.Debug("starting event distribution")
		go b.ui.run(ctx)
		go b.model.run(ctx)
		go b.api.run(ctx)
	})
}

func (b *Bus) Close() {
	b.ui.Close()
	b.model.Close()
	b.api.Close()
}
