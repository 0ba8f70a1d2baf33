// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package telemetry records OpenTelemetry metrics about the traffic of a peer.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/tochemey/orbit/telemetry"

// Meter returns the meter of the given provider, or of the global provider when nil
func Meter(provider metric.MeterProvider) metric.Meter {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	return provider.Meter(instrumentationName)
}

// PipelineMetric defines the pipeline instrumentation
type PipelineMetric struct {
	// Specifies the total number of messages by direction and type
	messageCount metric.Int64Counter
	// Specifies the total number of packets by direction
	packetCount metric.Int64Counter
	// Specifies the size of packets in bytes
	packetSize metric.Int64Histogram
	// Specifies the total number of errors raised by the pipeline
	errorCount metric.Int64Counter
}

// NewPipelineMetric creates an instance of PipelineMetric
func NewPipelineMetric(meter metric.Meter) (*PipelineMetric, error) {
	pipelineMetric := new(PipelineMetric)
	var err error
	if pipelineMetric.messageCount, err = meter.Int64Counter(
		"orbit_message_count",
		metric.WithDescription("Total number of messages sent or received"),
	); err != nil {
		return nil, fmt.Errorf("failed to create messageCount instrument, %w", err)
	}

	if pipelineMetric.packetCount, err = meter.Int64Counter(
		"orbit_packet_count",
		metric.WithDescription("Total number of packets sent or received"),
	); err != nil {
		return nil, fmt.Errorf("failed to create packetCount instrument, %w", err)
	}

	if pipelineMetric.packetSize, err = meter.Int64Histogram(
		"orbit_packet_size",
		metric.WithDescription("The size of packets sent or received"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, fmt.Errorf("failed to create packetSize instrument, %w", err)
	}

	if pipelineMetric.errorCount, err = meter.Int64Counter(
		"orbit_pipeline_error_count",
		metric.WithDescription("Total number of errors raised while handling inbound traffic"),
	); err != nil {
		return nil, fmt.Errorf("failed to create errorCount instrument, %w", err)
	}
	return pipelineMetric, nil
}

// MessageCount returns the message counter
func (x *PipelineMetric) MessageCount() metric.Int64Counter {
	return x.messageCount
}

// PacketCount returns the packet counter
func (x *PipelineMetric) PacketCount() metric.Int64Counter {
	return x.packetCount
}

// PacketSize returns the packet size histogram
func (x *PipelineMetric) PacketSize() metric.Int64Histogram {
	return x.packetSize
}

// ErrorCount returns the error counter
func (x *PipelineMetric) ErrorCount() metric.Int64Counter {
	return x.errorCount
}

// ObserveActors reports the number of activated actors returned by count
// through an asynchronous gauge. The returned registration must be
// unregistered when the peer stops.
func ObserveActors(meter metric.Meter, count func() int64) (metric.Registration, error) {
	gauge, err := meter.Int64ObservableGauge(
		"orbit_active_actors",
		metric.WithDescription("Number of actors activated on this node"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create activeActors instrument, %w", err)
	}

	registration, err := meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		observer.ObserveInt64(gauge, count())
		return nil
	}, gauge)
	if err != nil {
		return nil, fmt.Errorf("failed to register activeActors callback, %w", err)
	}
	return registration, nil
}
