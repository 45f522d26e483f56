// Package enc loads and persists per-host ENC YAML files. A record is kept
// as a raw YAML document so that everything except the managed
// properties.updates attribute round-trips untouched.
package enc

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-logr/logr"
	"gopkg.in/yaml.v3"

	"github.com/encops/updatectl/pkg/types"
)

// Record is one host's ENC document. The host name is derived from the
// filename.
type Record struct {
	Host string

	path  string
	doc   yaml.Node
	dirty bool
}

// Policy returns the value of properties.updates, or PolicyAbsent when the
// attribute (or the whole properties group) is missing.
func (r *Record) Policy() types.Policy {
	node := r.policyNode()
	if node == nil {
		return types.PolicyAbsent
	}
	return types.Policy(node.Value)
}

// SetPolicy rewrites properties.updates in place and marks the record dirty.
// Records without the attribute are left alone.
func (r *Record) SetPolicy(p types.Policy) {
	node := r.policyNode()
	if node == nil {
		return
	}
	node.SetString(string(p))
	r.dirty = true
}

// Dirty reports whether the record was mutated since loading.
func (r *Record) Dirty() bool {
	return r.dirty
}

func (r *Record) policyNode() *yaml.Node {
	root := documentRoot(&r.doc)
	if root == nil {
		return nil
	}
	props := mappingValue(root, "properties")
	if props == nil {
		return nil
	}
	updates := mappingValue(props, "updates")
	if updates == nil || updates.Kind != yaml.ScalarNode {
		return nil
	}
	return updates
}

func documentRoot(doc *yaml.Node) *yaml.Node {
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil
	}
	return root
}

func mappingValue(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

// Dir enumerates and persists the ENC records of one directory.
type Dir struct {
	path string
	log  logr.Logger
}

func NewDir(path string, log logr.Logger) *Dir {
	return &Dir{path: path, log: log}
}

// Load reads every *.yaml file in the directory, sorted by filename.
// Individual files that fail to parse are logged and skipped; an unreadable
// directory is an error.
func (d *Dir) Load() ([]*Record, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, fmt.Errorf("unable to read ENC directory %s: %w", d.path, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	records := make([]*Record, 0, len(names))
	for _, name := range names {
		path := filepath.Join(d.path, name)
		raw, err := os.ReadFile(path)
		if err != nil {
			d.log.Error(err, "skipping unreadable ENC file", "file", name)
			continue
		}
		r := &Record{
			Host: strings.TrimSuffix(name, ".yaml"),
			path: path,
		}
		if err := yaml.Unmarshal(raw, &r.doc); err != nil {
			d.log.Error(err, "skipping invalid ENC file", "file", name)
			continue
		}
		d.log.V(1).Info("loaded ENC file", "file", name)
		records = append(records, r)
	}
	return records, nil
}

// Save writes every dirty record back to its file.
func (d *Dir) Save(records []*Record) error {
	for _, r := range records {
		if !r.dirty {
			continue
		}
		var buf strings.Builder
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(&r.doc); err != nil {
			return fmt.Errorf("unable to serialize ENC record %s: %w", r.Host, err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("unable to serialize ENC record %s: %w", r.Host, err)
		}
		if err := os.WriteFile(r.path, []byte(buf.String()), 0o644); err != nil {
			return fmt.Errorf("unable to write ENC record %s: %w", r.Host, err)
		}
		r.dirty = false
		d.log.V(1).Info("wrote ENC file", "host", r.Host)
	}
	return nil
}
