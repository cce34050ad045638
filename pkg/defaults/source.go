// Package defaults loads the per-prefix defaults document and merges it with
// inventory rows into one defaults record per device.
package defaults

import (
	"context"
	"fmt"
	"os"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"gopkg.in/yaml.v3"

	"github.com/newtron-network/sotboard/pkg/prefix"
	"github.com/newtron-network/sotboard/pkg/util"
)

// Source yields the prefix defaults table. It is read once per run.
type Source interface {
	Load(ctx context.Context) (prefix.Table, error)
}

// Document is the on-disk shape of the defaults document.
type Document struct {
	Defaults prefix.Table `yaml:"defaults"`
}

// ParseDocument decodes a YAML defaults document. A document without a
// top-level defaults mapping is a configuration error.
func ParseDocument(data []byte) (prefix.Table, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse defaults document: %w", err)
	}
	if doc.Defaults == nil {
		return nil, fmt.Errorf("defaults document has no 'defaults' mapping: %w", util.ErrInvalidConfig)
	}
	for k, v := range doc.Defaults {
		if v == nil {
			doc.Defaults[k] = map[string]interface{}{}
		}
	}
	return doc.Defaults, nil
}

// FileSource reads the defaults document from a local file.
type FileSource struct {
	Path string
}

// Load implements Source.
func (s *FileSource) Load(ctx context.Context) (prefix.Table, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("defaults document %s not found: %w", s.Path, util.ErrInvalidConfig)
		}
		return nil, fmt.Errorf("read defaults document: %w", err)
	}
	table, err := ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Path, err)
	}
	util.WithField("path", s.Path).Debugf("Loaded %d default prefixes", len(table))
	return table, nil
}

// EtcdSource reads the defaults document stored as YAML under one etcd key.
// etcd keeps the document's revision history, so every onboarding run logs
// the revision it used.
type EtcdSource struct {
	Endpoints   []string
	Key         string
	DialTimeout time.Duration
}

// DefaultEtcdKey is used when EtcdSource.Key is empty.
const DefaultEtcdKey = "/sotboard/v1/defaults"

func (s *EtcdSource) key() string {
	if s.Key == "" {
		return DefaultEtcdKey
	}
	return s.Key
}

func (s *EtcdSource) dial() (*clientv3.Client, error) {
	timeout := s.DialTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   s.Endpoints,
		DialTimeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("etcd dial: %w", err)
	}
	return client, nil
}

// Load implements Source.
func (s *EtcdSource) Load(ctx context.Context) (prefix.Table, error) {
	client, err := s.dial()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	resp, err := client.Get(ctx, s.key())
	if err != nil {
		return nil, fmt.Errorf("etcd get %q: %w", s.key(), err)
	}
	if len(resp.Kvs) == 0 {
		return nil, fmt.Errorf("defaults document %q not found in etcd: %w", s.key(), util.ErrInvalidConfig)
	}
	kv := resp.Kvs[0]
	table, err := ParseDocument(kv.Value)
	if err != nil {
		return nil, fmt.Errorf("etcd %q: %w", s.key(), err)
	}
	util.WithFields(map[string]interface{}{
		"key":      s.key(),
		"revision": kv.ModRevision,
	}).Infof("Loaded %d default prefixes from etcd", len(table))
	return table, nil
}

// Publish validates data as a defaults document and stores it under the
// source key, returning the new revision.
func (s *EtcdSource) Publish(ctx context.Context, data []byte) (int64, error) {
	if _, err := ParseDocument(data); err != nil {
		return 0, err
	}
	client, err := s.dial()
	if err != nil {
		return 0, err
	}
	defer client.Close()

	resp, err := client.Put(ctx, s.key(), string(data))
	if err != nil {
		return 0, fmt.Errorf("etcd put %q: %w", s.key(), err)
	}
	return resp.Header.Revision, nil
}
