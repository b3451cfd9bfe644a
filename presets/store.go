// Package presets persists profiles in preset files: flat JSON arrays of
// profile records, one file per preset, named <preset>.prst.
package presets

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	vmerrors "videomass/internal/errors"
	"videomass/logger"
	"videomass/models"
)

// Ext is the preset file extension.
const Ext = ".prst"

// Store reads and writes the preset files of one directory.
type Store struct {
	Dir    string
	Logger *logger.Logger

	mu sync.Mutex // serializes read-modify-write cycles
}

// NewStore returns a store over dir. A nil logger discards output.
func NewStore(dir string, log *logger.Logger) *Store {
	if log == nil {
		log = logger.Discard()
	}
	return &Store{Dir: dir, Logger: log}
}

// Path returns the file backing preset name.
func (s *Store) Path(name string) string {
	return filepath.Join(s.Dir, name+Ext)
}

func checkName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return vmerrors.Validation("preset name is required")
	case strings.ContainsAny(name, `/\`) || name == "." || name == "..":
		return vmerrors.Validation("invalid preset name %q", name)
	}
	return nil
}

// List returns the preset names in the directory, sorted. A missing
// directory has no presets.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read presets dir: %w", err)
	}
	names := []string{}
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), Ext) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
	}
	sort.Strings(names)
	return names, nil
}

// Exists reports whether preset name has a file.
func (s *Store) Exists(name string) bool {
	fi, err := os.Stat(s.Path(name))
	return err == nil && !fi.IsDir()
}

// Load returns the profiles of preset name in file order.
func (s *Store) Load(name string) ([]models.Profile, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	return s.load(name)
}

func (s *Store) load(name string) ([]models.Profile, error) {
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, vmerrors.NotFound("preset %q not found", name)
		}
		return nil, fmt.Errorf("read preset %q: %w", name, err)
	}
	return Decode(s.Path(name), data)
}

// Decode parses a preset file. Decode errors and records missing any of
// models.ProfileKeys are VALIDATION errors naming file and keys.
func Decode(file string, data []byte) ([]models.Profile, error) {
	var records []map[string]json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, vmerrors.ValidationWithDetails(
			fmt.Sprintf("%s: not a preset file", file),
			map[string]string{"file": file, "error": err.Error()})
	}

	missing := map[string]string{}
	for i, rec := range records {
		var keys []string
		for _, k := range models.ProfileKeys {
			if _, ok := rec[k]; !ok {
				keys = append(keys, k)
			}
		}
		if len(keys) > 0 {
			missing[fmt.Sprintf("record %d", i)] = strings.Join(keys, ", ")
		}
	}
	if len(missing) > 0 {
		details := map[string]string{"file": file}
		var b strings.Builder
		for i := range records {
			label := fmt.Sprintf("record %d", i)
			if keys, ok := missing[label]; ok {
				details[label] = keys
				fmt.Fprintf(&b, "; %s lacks %s", label, keys)
			}
		}
		return nil, vmerrors.ValidationWithDetails(
			fmt.Sprintf("%s: missing keys%s", file, b.String()), details)
	}

	profiles := make([]models.Profile, 0, len(records))
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, vmerrors.ValidationWithDetails(
			fmt.Sprintf("%s: invalid profile values", file),
			map[string]string{"file": file, "error": err.Error()})
	}
	return profiles, nil
}

// Encode renders profiles the way preset files are stored.
func Encode(profiles []models.Profile) ([]byte, error) {
	if profiles == nil {
		profiles = []models.Profile{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(profiles); err != nil {
		return nil, fmt.Errorf("encode preset: %w", err)
	}
	return buf.Bytes(), nil
}

// writeFile replaces path atomically: temp file in the same directory,
// fsync, rename.
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create presets dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("rename to %s: %w", path, err)
	}
	return nil
}

func (s *Store) save(name string, profiles []models.Profile) error {
	data, err := Encode(profiles)
	if err != nil {
		return err
	}
	if err := writeFile(s.Path(name), data); err != nil {
		return err
	}
	s.Logger.Debug("preset saved", "preset", name, "profiles", len(profiles))
	return nil
}

// Create writes an empty preset.
func (s *Store) Create(name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Exists(name) {
		return vmerrors.AlreadyExists("preset %q already exists", name)
	}
	return s.save(name, nil)
}

// Delete removes preset name.
func (s *Store) Delete(name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.Path(name)); err != nil {
		if os.IsNotExist(err) {
			return vmerrors.NotFound("preset %q not found", name)
		}
		return fmt.Errorf("delete preset %q: %w", name, err)
	}
	s.Logger.Debug("preset deleted", "preset", name)
	return nil
}

func indexOf(profiles []models.Profile, profileName string) int {
	for i := range profiles {
		if profiles[i].Name == profileName {
			return i
		}
	}
	return -1
}

// Profile returns the profile profileName of preset name.
func (s *Store) Profile(name, profileName string) (*models.Profile, error) {
	profiles, err := s.Load(name)
	if err != nil {
		return nil, err
	}
	i := indexOf(profiles, profileName)
	if i < 0 {
		return nil, vmerrors.NotFound("profile %q not found in preset %q", profileName, name)
	}
	p := profiles[i]
	return &p, nil
}

// AddProfile appends p to preset name. Names are unique within a preset.
func (s *Store) AddProfile(name string, p models.Profile) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles, err := s.load(name)
	if err != nil {
		return err
	}
	if indexOf(profiles, p.Name) >= 0 {
		return vmerrors.AlreadyExists("profile %q already exists in preset %q", p.Name, name)
	}
	return s.save(name, append(profiles, p))
}

// UpdateProfile replaces profile oldName with p, keeping its position.
// Renaming onto another existing profile is refused.
func (s *Store) UpdateProfile(name, oldName string, p models.Profile) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles, err := s.load(name)
	if err != nil {
		return err
	}
	i := indexOf(profiles, oldName)
	if i < 0 {
		return vmerrors.NotFound("profile %q not found in preset %q", oldName, name)
	}
	if p.Name != oldName && indexOf(profiles, p.Name) >= 0 {
		return vmerrors.AlreadyExists("profile %q already exists in preset %q", p.Name, name)
	}
	profiles[i] = p
	return s.save(name, profiles)
}

// DeleteProfile removes profileName from preset name.
func (s *Store) DeleteProfile(name, profileName string) error {
	if err := checkName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles, err := s.load(name)
	if err != nil {
		return err
	}
	i := indexOf(profiles, profileName)
	if i < 0 {
		return vmerrors.NotFound("profile %q not found in preset %q", profileName, name)
	}
	return s.save(name, append(profiles[:i], profiles[i+1:]...))
}

// Export copies preset name to dst. When dst is a directory the file keeps
// its preset name. Returns the written path.
func (s *Store) Export(name, dst string) (string, error) {
	profiles, err := s.Load(name)
	if err != nil {
		return "", err
	}
	if fi, err := os.Stat(dst); err == nil && fi.IsDir() {
		dst = filepath.Join(dst, name+Ext)
	}
	data, err := Encode(profiles)
	if err != nil {
		return "", err
	}
	if err := writeFile(dst, data); err != nil {
		return "", err
	}
	return dst, nil
}

// Import validates src and stores it under its base name. An existing
// preset is replaced only when overwrite is set. Returns the preset name.
func (s *Store) Import(src string, overwrite bool) (string, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		if os.IsNotExist(err) {
			return "", vmerrors.NotFound("file %q not found", src)
		}
		return "", fmt.Errorf("read %s: %w", src, err)
	}
	profiles, err := Decode(src, data)
	if err != nil {
		return "", err
	}
	for i := range profiles {
		if err := profiles[i].Validate(); err != nil {
			return "", fmt.Errorf("%s: %w", src, err)
		}
	}

	name := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	if err := checkName(name); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Exists(name) && !overwrite {
		return "", vmerrors.AlreadyExists("preset %q already exists", name)
	}
	if err := s.save(name, profiles); err != nil {
		return "", err
	}
	return name, nil
}

// RestoreDefaults writes the built-in presets. Existing presets are kept
// unless overwrite is set. Returns the names written.
func (s *Store) RestoreDefaults(overwrite bool) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	written := []string{}
	err := fs.WalkDir(defaultFS, defaultDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(path) != Ext {
			return err
		}
		name := strings.TrimSuffix(d.Name(), Ext)
		if s.Exists(name) && !overwrite {
			s.Logger.Debug("keeping existing preset", "preset", name)
			return nil
		}
		data, err := fs.ReadFile(defaultFS, path)
		if err != nil {
			return err
		}
		if err := writeFile(s.Path(name), data); err != nil {
			return err
		}
		written = append(written, name)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("restore default presets: %w", err)
	}
	return written, nil
}
