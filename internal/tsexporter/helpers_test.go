package tsexporter

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

func testLog() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	return log
}

type testIface struct {
	id   int
	name string
}

func (i testIface) ID() int { return i.id }
func (i testIface) Name() string { return i.name }

var eth0 = testIface{id: 0, name: "eth0"}

// recordingPusher keeps a copy of every pushed blob.
type recordingPusher struct {
	mu     sync.Mutex
	blobs  [][]byte
	fail   bool
	closed bool
}

func (p *recordingPusher) Name() string { return "recording" }

func (p *recordingPusher) Push(_ context.Context, blob []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fail {
		return errors.New("collector unreachable")
	}

	p.blobs = append(p.blobs, append([]byte(nil), blob...))

	return nil
}

func (p *recordingPusher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true

	return nil
}

func (p *recordingPusher) setFail(fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.fail = fail
}

func (p *recordingPusher) pushed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]string, 0, len(p.blobs))
	for _, b := range p.blobs {
		out = append(out, string(b))
	}

	return out
}
