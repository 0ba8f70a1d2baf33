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

package nats

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
)

const (
	// DefaultSubject is the subject prefix shared by the nodes of a cluster
	DefaultSubject = "orbit"
	// DefaultHeartbeatInterval is the delay between presence announcements
	DefaultHeartbeatInterval = time.Second
	// DefaultConnectAttempts is the number of attempts made to reach the server
	DefaultConnectAttempts = 5
)

// Config defines the NATS peer configuration
type Config struct {
	// Server is the NATS server url
	Server string
	// Subject is the prefix of every subject the peer uses
	Subject string
	// NodeName identifies this node. A random name is chosen when empty.
	NodeName string
	// HeartbeatInterval is the delay between presence announcements
	HeartbeatInterval time.Duration
	// Expiry is how long a node stays in the view without announcing itself.
	// It defaults to three heartbeat intervals.
	Expiry time.Duration
	// Observer makes the node reachable without listing it in the views of
	// the other nodes. Client peers use it.
	Observer bool
}

// Validate checks the configuration
func (c *Config) Validate() error {
	var err error
	if c.Server == "" {
		err = multierr.Append(err, errors.New("nats server is required"))
	}
	if strings.ContainsAny(c.NodeName, ". *>\t\r\n") {
		err = multierr.Append(err, fmt.Errorf("node name %q is not a valid subject token", c.NodeName))
	}
	if c.HeartbeatInterval < 0 {
		err = multierr.Append(err, errors.New("heartbeat interval must not be negative"))
	}
	if c.Expiry < 0 {
		err = multierr.Append(err, errors.New("expiry must not be negative"))
	}
	if c.Expiry > 0 && c.HeartbeatInterval > 0 && c.Expiry <= c.HeartbeatInterval {
		err = multierr.Append(err, errors.New("expiry must be greater than the heartbeat interval"))
	}
	return err
}

func (c *Config) sanitize() {
	if c.Subject == "" {
		c.Subject = DefaultSubject
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.Expiry == 0 {
		c.Expiry = 3 * c.HeartbeatInterval
	}
}
