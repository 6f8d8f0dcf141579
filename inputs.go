package main

import (
	"fmt"

	"github.com/chase3718/iopanel/config"
	"github.com/chase3718/iopanel/input"
	"github.com/chase3718/iopanel/panel"
)

// panelInputs is the opened input side of the panel.
type panelInputs struct {
	devices  []*input.Device
	encoders []panel.EncoderCounter
}

// openInputs opens every input device named in cfg once and binds encoders
// and keys to it in config order.
func openInputs(cfg *config.Config, queue *input.Queue) (*panelInputs, error) {
	in := &panelInputs{}
	byPath := make(map[string]*input.Device)
	for _, path := range cfg.Devices() {
		d, err := input.OpenDevice(path, queue, logger)
		if err != nil {
			in.Close()
			return nil, err
		}
		if cfg.Poll.Grab {
			if err := d.Grab(); err != nil {
				logger.Warn("input: grab failed", "path", path, "err", err)
			}
		}
		byPath[path] = d
		in.devices = append(in.devices, d)
	}

	for i, e := range cfg.Encoders {
		code, err := input.ParseRelCode(e.Code)
		if err != nil {
			in.Close()
			return nil, fmt.Errorf("encoder %d (%s): %w", i, e.Name, err)
		}
		c := input.NewCounter(e.Divisor, e.Invert)
		byPath[e.Device].BindEncoder(code, c)
		in.encoders = append(in.encoders, c)
		logger.Debug("input: encoder bound", "index", i, "name", e.Name, "device", e.Device, "code", e.Code, "cc", i)
	}
	for i, k := range cfg.Keys {
		code, err := input.ParseKeyCode(k.Code)
		if err != nil {
			in.Close()
			return nil, fmt.Errorf("key %d (%s): %w", i, k.Name, err)
		}
		byPath[k.Device].BindKey(code, i)
		logger.Debug("input: key bound", "index", i, "name", k.Name, "device", k.Device, "code", k.Code, "cc", len(cfg.Encoders)+i)
	}
	return in, nil
}

func (in *panelInputs) Close() {
	for _, d := range in.devices {
		if err := d.Close(); err != nil {
			logger.Warn("input: close failed", "path", d.Path(), "err", err)
		}
	}
}
