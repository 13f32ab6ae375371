package agent

import (
	"fmt"
	"io"

	"github.com/hpcloud/tail"
	"github.com/sirupsen/logrus"
)

// Source follows a producer file and submits each line as one record.
type Source struct {
	log   logrus.FieldLogger
	cfg   SourceConfig
	iface *Interface
	tail  *tail.Tail
	done  chan struct{}
}

// NewSource creates a follower feeding iface.
func NewSource(log logrus.FieldLogger, cfg SourceConfig, iface *Interface) *Source {
	return &Source{
		log: log.WithFields(logrus.Fields{
			"component": "source",
			"interface": iface.Name(),
			"path":      cfg.Path,
		}),
		cfg:   cfg,
		iface: iface,
		done:  make(chan struct{}),
	}
}

// Start begins following the file.
func (s *Source) Start() error {
	var location *tail.SeekInfo
	if !s.cfg.FromStart {
		location = &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd}
	}

	t, err := tail.TailFile(s.cfg.Path, tail.Config{
		Follow:   true,
		ReOpen:   true,
		Poll:     s.cfg.Poll,
		Location: location,
		Logger:   tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("tailing %s: %w", s.cfg.Path, err)
	}

	s.tail = t

	go s.run()

	s.log.Info("Source started")

	return nil
}

// run drains the tail until it is stopped. It must keep reading until
// Lines is closed, otherwise Stop would block on a pending send.
func (s *Source) run() {
	defer close(s.done)

	for line := range s.tail.Lines {
		if line.Err != nil {
			s.log.WithError(line.Err).Warn("Error reading source")

			continue
		}

		record := make([]byte, 0, len(line.Text)+1)
		record = append(record, line.Text...)
		record = append(record, '\n')

		if err := s.iface.Export(record); err != nil {
			s.log.WithError(err).Warn("Failed to export record")
		}
	}
}

// Stop ends the follower and waits for in-flight records.
func (s *Source) Stop() error {
	if s.tail == nil {
		return nil
	}

	err := s.tail.Stop()
	<-s.done
	s.tail.Cleanup()

	return err
}
