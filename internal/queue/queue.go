// Package queue publishes simulated station events to Kafka as JSON
// messages, for consumers that want the event stream without polling
// the SQL store.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"

	"github.com/RaoOfPhysics/sapphire/sim"
)

// messageWriter is the slice of kafka.Writer the publisher needs;
// tests inject a recorder.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// RunMessage announces a simulation run on the topic.
type RunMessage struct {
	Type     string `json:"type"` // "run"
	RunID    string `json:"run_id"`
	Seed     int64  `json:"seed"`
	NShowers int    `json:"n_showers"`
	Model    string `json:"model"`
}

// StationEventMessage carries one station's response to one shower.
type StationEventMessage struct {
	Type         string    `json:"type"` // "station_event"
	RunID        string    `json:"run_id"`
	ShowerID     int       `json:"shower_id"`
	StationID    int       `json:"station_id"`
	Triggered    bool      `json:"triggered"`
	ExtTimestamp *uint64   `json:"ext_timestamp,omitempty"`
	N            []float64 `json:"n"`
	T            []float64 `json:"t"`
}

// Publisher writes simulation messages to one Kafka topic, keyed by
// station ID so per-station ordering survives partitioning.
type Publisher struct {
	writer messageWriter
}

// NewPublisher connects a publisher to the given brokers and topic.
func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// Close releases the underlying writer.
func (p *Publisher) Close() error { return p.writer.Close() }

func (p *Publisher) publish(ctx context.Context, key string, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: value}); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// Sink adapts a Publisher to the simulation's result sink interface.
type Sink struct {
	pub   *Publisher
	runID string
}

// NewSink wraps a publisher as a simulation result sink.
func NewSink(pub *Publisher) *Sink { return &Sink{pub: pub} }

// WriteRunMetadata publishes the run announcement and pins the run ID
// for the event messages that follow.
func (s *Sink) WriteRunMetadata(meta sim.RunMetadata) error {
	s.runID = meta.RunID.String()
	return s.pub.publish(context.Background(), s.runID, RunMessage{
		Type:     "run",
		RunID:    s.runID,
		Seed:     meta.Seed,
		NShowers: meta.NShowers,
		Model:    meta.Model,
	})
}

// WriteShower publishes one message per station.
func (s *Sink) WriteShower(params sim.ShowerParameters, stations []sim.StationObservables) error {
	for _, st := range stations {
		msg := StationEventMessage{
			Type:      "station_event",
			RunID:     s.runID,
			ShowerID:  params.ID,
			StationID: st.StationID,
			Triggered: st.Triggered,
		}
		if st.HasTimestamp {
			ext := st.ExtTimestamp
			msg.ExtTimestamp = &ext
		}
		for _, d := range st.Detectors {
			msg.N = append(msg.N, d.N)
			msg.T = append(msg.T, d.T)
		}
		if err := s.pub.publish(context.Background(), strconv.Itoa(st.StationID), msg); err != nil {
			return err
		}
	}
	return nil
}

var _ sim.ResultSink = (*Sink)(nil)

// FanOut forwards every write to all wrapped sinks, failing on the
// first error.
type FanOut []sim.ResultSink

func (f FanOut) WriteRunMetadata(meta sim.RunMetadata) error {
	for _, sink := range f {
		if err := sink.WriteRunMetadata(meta); err != nil {
			return err
		}
	}
	return nil
}

func (f FanOut) WriteShower(params sim.ShowerParameters, stations []sim.StationObservables) error {
	for _, sink := range f {
		if err := sink.WriteShower(params, stations); err != nil {
			return err
		}
	}
	return nil
}
