package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/newtron-network/sotboard/pkg/util"
)

// FileProvider reads configurations exported earlier: <Dir>/<host>.conf
// holds the running-config and <Dir>/<host>.facts the facts as JSON.
// <host> is the request hostname, or the IP when no hostname is given.
type FileProvider struct {
	Dir string
}

// Fetch reads the exported files of a device. The facts file is optional.
func (p *FileProvider) Fetch(_ context.Context, req Request) (*Result, error) {
	host := req.Hostname
	if host == "" {
		host = req.IP
	}
	if host == "" {
		return nil, fmt.Errorf("no host to import: %w", util.ErrInvalidConfig)
	}

	config, err := os.ReadFile(filepath.Join(p.Dir, host+".conf"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("no exported config for %s: %w", host, util.ErrNotFound)
		}
		return nil, fmt.Errorf("reading config of %s: %w", host, err)
	}

	res := &Result{Config: string(config)}
	data, err := os.ReadFile(filepath.Join(p.Dir, host+".facts"))
	switch {
	case errors.Is(err, os.ErrNotExist):
		util.WithDevice(host).Debug("no facts file")
	case err != nil:
		return nil, fmt.Errorf("reading facts of %s: %w", host, err)
	default:
		if err := json.Unmarshal(data, &res.Facts); err != nil {
			return nil, fmt.Errorf("parsing facts of %s: %w", host, util.ErrParseFailed)
		}
	}
	res.Facts.normalize("")
	return res, nil
}

// Export writes a result in the layout FileProvider reads.
func Export(dir, host string, res *Result) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating export dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, host+".conf"), []byte(res.Config), 0644); err != nil {
		return fmt.Errorf("writing config of %s: %w", host, err)
	}
	data, err := json.MarshalIndent(res.Facts, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling facts of %s: %w", host, err)
	}
	return os.WriteFile(filepath.Join(dir, host+".facts"), data, 0644)
}
