package event

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// LogData is one line of the outbox log.
type LogData struct {
	Time    int64  `json:"time"`
	Service string `json:"service"`
	Action  string `json:"action"`
	Data    string `json:"data"`
}

// Outbox is an append-only JSON lines file of events that could not be
// published.
type Outbox struct {
	path string
	mu   sync.Mutex
}

func NewOutbox(path string) *Outbox {
	return &Outbox{path: path}
}

func (o *Outbox) Append(data LogData) error {
	line, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "outbox.Append.Marshal")
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(o.path), 0o755); err != nil {
		return errors.Wrap(err, "outbox.Append.MkdirAll")
	}
	f, err := os.OpenFile(o.path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0600)
	if err != nil {
		return errors.Wrap(err, "outbox.Append.OpenFile")
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return errors.Wrap(err, "outbox.Append.Write")
	}
	return nil
}

// Drain feeds every stored line to fn in order. Lines fn accepted are
// removed; on the first failure that line and the rest are kept.
func (o *Outbox) Drain(fn func(LogData) error) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	f, err := os.Open(o.path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "outbox.Drain.Open")
	}

	var lines [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		lines = append(lines, append([]byte(nil), scanner.Bytes()...))
	}
	f.Close()
	if err := scanner.Err(); err != nil {
		return 0, errors.Wrap(err, "outbox.Drain.Scan")
	}

	sent := 0
	var failed error
	for _, line := range lines {
		data := LogData{}
		if err := json.Unmarshal(line, &data); err != nil {
			// unreadable lines are dropped
			sent++
			continue
		}
		if err := fn(data); err != nil {
			failed = err
			break
		}
		sent++
	}

	rest := lines[sent:]
	var buf []byte
	for _, line := range rest {
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}
	if err := os.WriteFile(o.path, buf, 0600); err != nil {
		return sent, errors.Wrap(err, "outbox.Drain.WriteFile")
	}
	return sent, failed
}
