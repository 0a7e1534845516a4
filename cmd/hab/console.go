package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/mitchellh/colorstring"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// levelColors maps zerolog levels to colorstring codes. Levels not
// listed here render green.
var levelColors = map[string]string{
	"fatal": "[red]",
	"error": "[red]",
	"warn":  "[yellow]",
	"debug": "[blue]",
	"trace": "[blue]",
}

// ConsoleWriter turns zerolog's JSON events into colored lines on
// stderr. The logger runs single-threaded per event but tasks share
// one writer, hence the lock.
type ConsoleWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func NewConsoleWriter() *ConsoleWriter {
	return &ConsoleWriter{}
}

func (w *ConsoleWriter) Write(p []byte) (int, error) {
	var evt map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(p))
	dec.UseNumber()
	if err := dec.Decode(&evt); err != nil {
		return 0, eris.Wrapf(err, "cannot decode event: %s", p)
	}

	level, _ := evt["level"].(string)

	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Reset()
	if color, ok := levelColors[level]; ok {
		w.buf.WriteString(color)
	} else {
		w.buf.WriteString("[green]")
	}

	if task, ok := evt["task"].(string); ok {
		w.buf.WriteString(task)
		w.buf.WriteString(": ")
	}
	if level == "error" || level == "fatal" {
		w.buf.WriteString("Error: ")
	}

	if msg, ok := evt["message"].(string); ok {
		w.buf.WriteString(msg)
	}
	if details, ok := evt["error"].(string); ok {
		w.buf.WriteByte('\n')
		w.buf.WriteString(details)
	}

	if debugMode() {
		w.buf.WriteByte('\n')
		for name, value := range evt {
			fmt.Fprintf(&w.buf, "  %s: %+v\n", name, value)
		}
	}

	w.buf.WriteString("[reset]\n")
	return colorstring.Fprint(os.Stderr, w.buf.String())
}

func debugMode() bool {
	return os.Getenv("HAB_DEBUG") != ""
}

func init() {
	zerolog.ErrorMarshalFunc = func(err error) interface{} {
		return eris.ToString(err, debugMode())
	}
}
