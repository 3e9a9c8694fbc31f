// Package store is the single-writer, snapshot-on-write record keeper for
// workspaces, participants, auth configuration, and cluster configuration.
package store

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ErrNotFound is returned by lookups that fail to find a record.
var ErrNotFound = errors.New("not found")

// DefaultAdminPassword is hashed into a fresh AuthConfig on first start.
const DefaultAdminPassword = "admin"

// Store is the single mutable shared resource across fleet workers. Every
// write is serialized under mu and followed by an atomic snapshot replace.
type Store struct {
	mu   sync.RWMutex
	st   snapshot
	path string
}

// New loads path if it exists, or creates a fresh snapshot with default
// cluster config and a freshly generated auth record. A missing snapshot is
// not an error; a corrupt one is, since startup must not silently drop state.
func New(path string) (*Store, error) {
	s := &Store{path: strings.TrimSpace(path)}
	if s.path != "" {
		if err := s.load(); err != nil {
			return nil, fmt.Errorf("store: load %s: %w", s.path, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureInitializedLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil
	}
	return json.Unmarshal(data, &s.st)
}

func (s *Store) persistLocked() error {
	if s.path == "" {
		return nil
	}
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(&s.st, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// ensureInitializedLocked performs forward migration: any nil collection or
// zero-value auth record is given defaults and persisted.
func (s *Store) ensureInitializedLocked() error {
	changed := false
	if s.st.Workspaces == nil {
		s.st.Workspaces = map[string]Workspace{}
		changed = true
	}
	if s.st.Participants == nil {
		s.st.Participants = map[string]Participant{}
		changed = true
	}
	if s.st.Auth.AdminPasswordHash == "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(DefaultAdminPassword), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("store: hash default admin password: %w", err)
		}
		s.st.Auth.AdminPasswordHash = string(hash)
		changed = true
	}
	if s.st.Auth.SigningSecret == "" {
		secret, err := randomHex(32)
		if err != nil {
			return fmt.Errorf("store: generate signing secret: %w", err)
		}
		s.st.Auth.SigningSecret = secret
		changed = true
	}
	if changed {
		return s.persistLocked()
	}
	return nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// --- Workspaces ---

// InsertWorkspace adds a new workspace record. Callers hold no earlier lock.
func (s *Store) InsertWorkspace(w Workspace) (Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	w.Created, w.Updated = now, now
	s.st.Workspaces[w.ID] = w
	if err := s.persistLocked(); err != nil {
		delete(s.st.Workspaces, w.ID)
		return Workspace{}, err
	}
	return w, nil
}

// GetWorkspace returns a defensive copy.
func (s *Store) GetWorkspace(id string) (Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.st.Workspaces[id]
	if !ok {
		return Workspace{}, ErrNotFound
	}
	return w, nil
}

// ListWorkspaces returns all workspaces sorted by id for stable output.
func (s *Store) ListWorkspaces() []Workspace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Workspace, 0, len(s.st.Workspaces))
	for _, w := range s.st.Workspaces {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// WorkspacePatch carries merge-semantics fields; nil pointers leave the
// existing value untouched.
type WorkspacePatch struct {
	TaskHandle       *string
	Lifecycle        *Lifecycle
	PublicIP         *string
	PrivateIP        *string
	PathPrefix       *string
	TargetGroupArn   *string
	RuleArn          *string
	CDNDomain        *string
	VSCodeURL        *string
	PreviewURL       *string
	ParticipantID    *string
	ParticipantName  *string
	ParticipantEmail *string
	Notes            *string
	Error            *string
}

// PatchWorkspace merges non-nil fields and bumps Updated. Returns the
// workspace unchanged (same Updated timestamp) if nothing in patch differs.
func (s *Store) PatchWorkspace(id string, patch WorkspacePatch) (Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.st.Workspaces[id]
	if !ok {
		return Workspace{}, ErrNotFound
	}
	before := w
	applyWorkspacePatch(&w, patch)
	if w == before {
		return w, nil
	}
	w.Updated = time.Now().UTC()
	s.st.Workspaces[id] = w
	if err := s.persistLocked(); err != nil {
		s.st.Workspaces[id] = before
		return Workspace{}, err
	}
	return w, nil
}

func applyWorkspacePatch(w *Workspace, p WorkspacePatch) {
	if p.TaskHandle != nil {
		w.TaskHandle = *p.TaskHandle
	}
	if p.Lifecycle != nil {
		w.Lifecycle = *p.Lifecycle
	}
	if p.PublicIP != nil {
		w.PublicIP = *p.PublicIP
	}
	if p.PrivateIP != nil {
		w.PrivateIP = *p.PrivateIP
	}
	if p.PathPrefix != nil {
		w.PathPrefix = *p.PathPrefix
	}
	if p.TargetGroupArn != nil {
		w.TargetGroupArn = *p.TargetGroupArn
	}
	if p.RuleArn != nil {
		w.RuleArn = *p.RuleArn
	}
	if p.CDNDomain != nil {
		w.CDNDomain = *p.CDNDomain
	}
	if p.VSCodeURL != nil {
		w.VSCodeURL = *p.VSCodeURL
	}
	if p.PreviewURL != nil {
		w.PreviewURL = *p.PreviewURL
	}
	if p.ParticipantID != nil {
		w.ParticipantID = *p.ParticipantID
	}
	if p.ParticipantName != nil {
		w.ParticipantName = *p.ParticipantName
	}
	if p.ParticipantEmail != nil {
		w.ParticipantEmail = *p.ParticipantEmail
	}
	if p.Notes != nil {
		w.Notes = *p.Notes
	}
	if p.Error != nil {
		w.Error = *p.Error
	}
}

// DeleteWorkspace removes the record unconditionally; edge-detach and
// cloud-task-stop are the orchestrator's responsibility before calling this.
func (s *Store) DeleteWorkspace(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.Workspaces[id]; !ok {
		return ErrNotFound
	}
	before := s.st.Workspaces[id]
	delete(s.st.Workspaces, id)
	if err := s.persistLocked(); err != nil {
		s.st.Workspaces[id] = before
		return err
	}
	return nil
}

// DeleteAllWorkspaces clears the entire collection in one mutation.
func (s *Store) DeleteAllWorkspaces() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := s.st.Workspaces
	s.st.Workspaces = map[string]Workspace{}
	if err := s.persistLocked(); err != nil {
		s.st.Workspaces = before
		return err
	}
	return nil
}

// --- Participants ---

func (s *Store) InsertParticipant(p Participant) (Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	p.Created, p.Updated = now, now
	p.Email = normalizeEmail(p.Email)
	if err := s.checkAccessTokenUniqueLocked(p.AccessToken, ""); err != nil {
		return Participant{}, err
	}
	s.st.Participants[p.ID] = p
	if err := s.persistLocked(); err != nil {
		delete(s.st.Participants, p.ID)
		return Participant{}, err
	}
	return p, nil
}

func (s *Store) checkAccessTokenUniqueLocked(token, exceptID string) error {
	for id, p := range s.st.Participants {
		if id == exceptID {
			continue
		}
		if p.AccessToken == token {
			return fmt.Errorf("access token already in use")
		}
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Store) GetParticipant(id string) (Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.st.Participants[id]
	if !ok {
		return Participant{}, ErrNotFound
	}
	return p, nil
}

// FindParticipantByEmail compares case-insensitively and whitespace-insensitively.
func (s *Store) FindParticipantByEmail(email string) (Participant, error) {
	email = normalizeEmail(email)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.st.Participants {
		if p.Email == email {
			return p, nil
		}
	}
	return Participant{}, ErrNotFound
}

// FindParticipantByAccessToken compares case-insensitively.
func (s *Store) FindParticipantByAccessToken(token string) (Participant, error) {
	token = strings.ToUpper(strings.TrimSpace(token))
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.st.Participants {
		if p.AccessToken == token {
			return p, nil
		}
	}
	return Participant{}, ErrNotFound
}

func (s *Store) ListParticipants() []Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Participant, 0, len(s.st.Participants))
	for _, p := range s.st.Participants {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ParticipantPatch mirrors WorkspacePatch's partial-update semantics.
type ParticipantPatch struct {
	Name         *string
	Email        *string
	Notes        *string
	PasswordHash *string
	AccessToken  *string
}

func (s *Store) PatchParticipant(id string, patch ParticipantPatch) (Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.Participants[id]
	if !ok {
		return Participant{}, ErrNotFound
	}
	if patch.AccessToken != nil {
		if err := s.checkAccessTokenUniqueLocked(*patch.AccessToken, id); err != nil {
			return Participant{}, err
		}
	}
	before := p
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Email != nil {
		p.Email = normalizeEmail(*patch.Email)
	}
	if patch.Notes != nil {
		p.Notes = *patch.Notes
	}
	if patch.PasswordHash != nil {
		p.PasswordHash = *patch.PasswordHash
	}
	if patch.AccessToken != nil {
		p.AccessToken = *patch.AccessToken
	}
	if p == before {
		return p, nil
	}
	p.Updated = time.Now().UTC()
	s.st.Participants[id] = p
	if err := s.persistLocked(); err != nil {
		s.st.Participants[id] = before
		return Participant{}, err
	}
	return p, nil
}

// DeleteParticipant clears the workspace's denormalized participant fields
// first (in the same mutation), then removes the participant record.
func (s *Store) DeleteParticipant(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.Participants[id]
	if !ok {
		return ErrNotFound
	}
	beforeParticipants := s.st.Participants
	beforeWorkspaces := s.st.Workspaces
	if p.AssignedWorkspace != "" {
		if w, ok := s.st.Workspaces[p.AssignedWorkspace]; ok {
			w.ParticipantID, w.ParticipantName, w.ParticipantEmail = "", "", ""
			w.Updated = time.Now().UTC()
			s.st.Workspaces[p.AssignedWorkspace] = w
		}
	}
	delete(s.st.Participants, id)
	if err := s.persistLocked(); err != nil {
		s.st.Participants = beforeParticipants
		s.st.Workspaces = beforeWorkspaces
		return err
	}
	return nil
}

func (s *Store) DeleteAllParticipants() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	beforeParticipants := s.st.Participants
	beforeWorkspaces := s.st.Workspaces
	for id, w := range s.st.Workspaces {
		if w.ParticipantID != "" {
			w.ParticipantID, w.ParticipantName, w.ParticipantEmail = "", "", ""
			w.Updated = time.Now().UTC()
			s.st.Workspaces[id] = w
		}
	}
	s.st.Participants = map[string]Participant{}
	if err := s.persistLocked(); err != nil {
		s.st.Participants = beforeParticipants
		s.st.Workspaces = beforeWorkspaces
		return err
	}
	return nil
}

// --- Bidirectional participant<->workspace assignment ---
// These three operations (assign, unassign, delete-cascade above) are the
// only legal mutations of the relation; everything else must go through
// them so both sides stay consistent under one lock.

// AssignParticipant writes both directions of the relation atomically.
func (s *Store) AssignParticipant(workspaceID, participantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.st.Workspaces[workspaceID]
	if !ok {
		return fmt.Errorf("workspace %s: %w", workspaceID, ErrNotFound)
	}
	p, ok := s.st.Participants[participantID]
	if !ok {
		return fmt.Errorf("participant %s: %w", participantID, ErrNotFound)
	}
	beforeW, beforeP := w, p
	now := time.Now().UTC()

	w.ParticipantID, w.ParticipantName, w.ParticipantEmail = p.ID, p.Name, p.Email
	w.Updated = now
	p.AssignedWorkspace = w.ID
	p.Updated = now

	s.st.Workspaces[workspaceID] = w
	s.st.Participants[participantID] = p
	if err := s.persistLocked(); err != nil {
		s.st.Workspaces[workspaceID] = beforeW
		s.st.Participants[participantID] = beforeP
		return err
	}
	return nil
}

// UnassignParticipant clears both directions atomically.
func (s *Store) UnassignParticipant(participantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.Participants[participantID]
	if !ok {
		return ErrNotFound
	}
	beforeP := p
	var beforeW *Workspace
	now := time.Now().UTC()
	if p.AssignedWorkspace != "" {
		if w, ok := s.st.Workspaces[p.AssignedWorkspace]; ok {
			bw := w
			beforeW = &bw
			w.ParticipantID, w.ParticipantName, w.ParticipantEmail = "", "", ""
			w.Updated = now
			s.st.Workspaces[p.AssignedWorkspace] = w
		}
	}
	p.AssignedWorkspace = ""
	p.Updated = now
	s.st.Participants[participantID] = p
	if err := s.persistLocked(); err != nil {
		s.st.Participants[participantID] = beforeP
		if beforeW != nil {
			s.st.Workspaces[beforeW.ID] = *beforeW
		}
		return err
	}
	return nil
}

// NextUnassignedParticipant returns the oldest participant (by Created) with
// no assigned workspace, for the auto-assign queue (drained in insertion
// order).
func (s *Store) NextUnassignedParticipant() (Participant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *Participant
	for id := range s.st.Participants {
		p := s.st.Participants[id]
		if p.AssignedWorkspace != "" {
			continue
		}
		if best == nil || p.Created.Before(best.Created) {
			pp := p
			best = &pp
		}
	}
	if best == nil {
		return Participant{}, false
	}
	return *best, true
}

// --- Auth & Config ---

func (s *Store) GetAuth() AuthConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.Auth
}

func (s *Store) SetAdminPasswordHash(hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := s.st.Auth.AdminPasswordHash
	s.st.Auth.AdminPasswordHash = hash
	if err := s.persistLocked(); err != nil {
		s.st.Auth.AdminPasswordHash = before
		return err
	}
	return nil
}

func (s *Store) GetConfig() ClusterConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.Config
}

// PatchConfig replaces the whole cluster config record; admin-scoped only.
func (s *Store) PatchConfig(mutate func(*ClusterConfig)) (ClusterConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := s.st.Config
	cfg := s.st.Config
	mutate(&cfg)
	s.st.Config = cfg
	if err := s.persistLocked(); err != nil {
		s.st.Config = before
		return ClusterConfig{}, err
	}
	return cfg, nil
}
