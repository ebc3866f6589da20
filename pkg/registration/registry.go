package registration

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Registry is the on-disk JSON store of DeviceRecords keyed by HostId,
// standing in for the persistent device storage the system spec marks as an
// out-of-scope external collaborator's backing store: the gateway still
// needs somewhere to keep RegistKey/RPKey between runs.
type Registry struct {
	mu   sync.RWMutex
	path string
	recs map[string]DeviceRecord
}

// OpenRegistry loads an existing registry file, or starts an empty one if
// path does not yet exist.
func OpenRegistry(path string) (*Registry, error) {
	r := &Registry{path: path, recs: make(map[string]DeviceRecord)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read registry %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &r.recs); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}
	return r, nil
}

// Put inserts or replaces a device record and persists the registry.
func (r *Registry) Put(rec DeviceRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs[rec.HostId] = rec
	return r.save()
}

// Get returns the record for hostId, if any.
func (r *Registry) Get(hostId string) (DeviceRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.recs[hostId]
	return rec, ok
}

// Delete removes a device record (console unbind) and persists the change.
func (r *Registry) Delete(hostId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.recs, hostId)
	return r.save()
}

// All returns every known device record.
func (r *Registry) All() []DeviceRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]DeviceRecord, 0, len(r.recs))
	for _, rec := range r.recs {
		out = append(out, rec)
	}
	return out
}

// save writes the registry via write-temp-then-rename so a crash mid-write
// never corrupts the on-disk file.
func (r *Registry) save() error {
	data, err := json.MarshalIndent(r.recs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}

	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, ".registry-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp registry file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp registry file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp registry file: %w", err)
	}

	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp registry file: %w", err)
	}
	return nil
}
