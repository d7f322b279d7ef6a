package processor

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/namikmesic/sidekick-stream/internal/consumer"
	"github.com/namikmesic/sidekick-stream/internal/reasoning"
	"github.com/namikmesic/sidekick-stream/internal/storage"
	"github.com/namikmesic/sidekick-stream/internal/stream"
	"github.com/rs/zerolog/log"
)

// MessagePayload is the body of a message frame.
type MessagePayload struct {
	Type      string `json:"type"`
	MessageID string `json:"message_id"`
	Delta     string `json:"delta"`
	Done      bool   `json:"done"`
}

// Sink receives write jobs; *storage.BatchWriter satisfies it.
type Sink interface {
	Enqueue(job storage.WriteJob)
}

type Config struct {
	SubjectID string
	OpenTag   string
	CloseTag  string
	// Reasoning and Visible receive the two content channels. Either may
	// be nil to drop that channel.
	Reasoning io.Writer
	Visible   io.Writer
	// Sink, when set, receives the frames of each run on disconnect.
	Sink Sink
}

// Processor turns the frames of one subject into two text channels and an
// audit trail.
type Processor struct {
	cfg Config

	mu        sync.Mutex
	parser    *reasoning.Parser
	messageID string
	runID     uuid.UUID
	frames    []storage.FrameRecord
	index     int
	reasoned  int
	visible   int
}

func New(cfg Config) *Processor {
	var opts []reasoning.Option
	if cfg.OpenTag != "" && cfg.CloseTag != "" {
		opts = append(opts, reasoning.WithTags(cfg.OpenTag, cfg.CloseTag))
	}
	return &Processor{
		cfg:    cfg,
		parser: reasoning.NewParser(opts...),
		runID:  uuid.New(),
	}
}

// Handlers wraps base with the processor's frame handlers. Base lifecycle
// callbacks still run after the processor's own.
func (p *Processor) Handlers(base consumer.Handlers) consumer.Handlers {
	h := base
	h.OnMessageEvent = func(f stream.MessageFrame) {
		p.HandleMessage(f)
	}
	h.OnSessionEvent = func(f stream.SessionFrame) {
		p.Record(f)
		if base.OnSessionEvent != nil {
			base.OnSessionEvent(f)
		}
	}
	h.OnThreadEvent = func(f stream.ThreadFrame) {
		p.Record(f)
		if base.OnThreadEvent != nil {
			base.OnThreadEvent(f)
		}
	}
	h.OnErrorEvent = func(f stream.ErrorFrame) {
		p.Record(f)
		log.Warn().RawJSON("payload", f.Payload()).Str("subject_id", p.cfg.SubjectID).Msg("error frame")
		if base.OnErrorEvent != nil {
			base.OnErrorEvent(f)
		}
	}
	h.OnConnected = func() {
		p.Begin()
		if base.OnConnected != nil {
			base.OnConnected()
		}
	}
	h.OnDisconnect = func() {
		p.Flush()
		if base.OnDisconnect != nil {
			base.OnDisconnect()
		}
	}
	return h
}

// Begin starts a new run: a fresh run id and a clean parser.
func (p *Processor) Begin() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runID = uuid.New()
	p.frames = nil
	p.index = 0
	p.reasoned, p.visible = 0, 0
	p.messageID = ""
	p.parser.Reset()
}

// HandleMessage feeds the frame's delta to the reasoning parser and writes
// whatever it emits. A new message id starts a new logical stream.
func (p *Processor) HandleMessage(f stream.MessageFrame) reasoning.Delta {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record(f)

	var msg MessagePayload
	if err := json.Unmarshal(f.Payload(), &msg); err != nil {
		log.Warn().Err(err).Str("subject_id", p.cfg.SubjectID).Msg("skipping undecodable message frame")
		return reasoning.Delta{}
	}

	if msg.MessageID != p.messageID {
		p.parser.Reset()
		p.messageID = msg.MessageID
	}

	d := p.parser.Parse(msg.Delta)
	if d.Reasoning != nil {
		p.reasoned += len(*d.Reasoning)
		write(p.cfg.Reasoning, *d.Reasoning)
	}
	if d.Visible != nil {
		p.visible += len(*d.Visible)
		write(p.cfg.Visible, *d.Visible)
	}

	if msg.Done {
		if held := p.parser.Buffered(); held != "" {
			log.Debug().
				Str("message_id", msg.MessageID).
				Int("held_bytes", len(held)).
				Msg("message ended with unresolved reasoning markup")
		}
		p.parser.Reset()
		p.messageID = ""
	}
	return d
}

func (p *Processor) Record(f stream.Frame) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record(f)
}

func (p *Processor) record(f stream.Frame) {
	p.index++
	if p.cfg.Sink == nil {
		return
	}
	p.frames = append(p.frames, storage.FrameRecord{
		Timestamp: time.Now(),
		Index:     p.index,
		Frame:     f,
	})
}

// Flush hands the run's frames to the sink.
func (p *Processor) Flush() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cfg.Sink != nil && len(p.frames) > 0 {
		p.cfg.Sink.Enqueue(storage.InsertFramesJob(p.cfg.SubjectID, p.runID, p.frames))
	}

	log.Debug().
		Str("subject_id", p.cfg.SubjectID).
		Str("run_id", p.runID.String()).
		Int("frames", p.index).
		Int("reasoning_bytes", p.reasoned).
		Int("visible_bytes", p.visible).
		Msg("run complete")

	p.frames = nil
}

func write(w io.Writer, s string) {
	if w == nil {
		return
	}
	if _, err := io.WriteString(w, s); err != nil {
		log.Warn().Err(err).Msg("write output failed")
	}
}
