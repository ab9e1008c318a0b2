package sinks

import (
	"fmt"
	"io"

	"driftnet/netcode/logging"
)

// FromConfig assembles the sink list the config enables, in config order.
// The "json" sink needs logging.JSONConfig.FilePath and is skipped when it
// is empty; an unrecognized sink name fails loudly so a config typo cannot
// silently disable logging.
func FromConfig(cfg logging.Config, consoleOut io.Writer) ([]logging.NamedSink, error) {
	var out []logging.NamedSink
	for _, name := range cfg.EnabledSinks {
		switch name {
		case "console":
			out = append(out, logging.NamedSink{Name: name, Sink: NewConsoleSink(consoleOut, cfg.Console)})
		case "json":
			if cfg.JSON.FilePath == "" {
				continue
			}
			sink, err := NewJSONFile(cfg.JSON.FilePath)
			if err != nil {
				return nil, err
			}
			out = append(out, logging.NamedSink{Name: name, Sink: sink})
		case "memory":
			out = append(out, logging.NamedSink{Name: name, Sink: NewMemorySink()})
		default:
			return nil, fmt.Errorf("sinks: unknown sink %q", name)
		}
	}
	return out, nil
}
