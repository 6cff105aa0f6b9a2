// Package state is the application's single source of truth for projects,
// generations, chat history, the cost ledger, and user preferences.
//
// Every mutation writes the affected document to the injected kv.Store
// before the new value becomes visible, so a restart never loses committed
// state. External API calls happen outside the store; callers hand over only
// the result.
//
// Go Pattern: A mutex-guarded struct with explicit methods instead of
// exported fields. Nothing outside this package can touch the slices
// directly, and every read returns a copy.
package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Shimizu-Technology/tubeboard-api/internal/kv"
	"github.com/Shimizu-Technology/tubeboard-api/internal/models"
	"github.com/Shimizu-Technology/tubeboard-api/internal/pricing"
)

// Keys of the persisted documents.
const (
	KeyCredential  = "tubeboard_api_key"
	KeyProjects    = "tubeboard_projects"
	KeyCostHistory = "tubeboard_cost_history"
	KeyPreferences = "tubeboard_preferences"
)

var (
	// ErrNotFound means the referenced project does not exist.
	ErrNotFound = errors.New("project not found")
	// ErrInvalidInput means a mutation was called with unusable arguments.
	ErrInvalidInput = errors.New("invalid input")
)

// Options configures a Store at load time.
type Options struct {
	// DefaultCredential is used when no credential has been stored yet.
	DefaultCredential   string
	DefaultModel        string
	DefaultExchangeRate float64

	// Now and NewID are injectable for deterministic tests.
	Now   func() time.Time
	NewID func() string
}

// NewGeneration is the caller-supplied part of a Generation. The store
// assigns the id, timestamp, and cost.
type NewGeneration struct {
	Type    models.GenerationType
	Content json.RawMessage
	Model   string
	Tokens  models.Tokens
}

// Store holds all application state.
type Store struct {
	mu    sync.Mutex
	kv    kv.Store
	now   func() time.Time
	newID func() string

	credential string
	projects   []models.Project
	costs      []models.CostEntry
	prefs      models.Preferences
	activeID   string

	subMu   sync.RWMutex
	subs    map[int]chan Event
	nextSub int
}

// Load builds a Store from whatever the kv.Store currently holds.
// Missing documents start empty; malformed documents are replaced by their
// defaults and a warning is logged. Storage errors are returned.
func Load(ctx context.Context, store kv.Store, opts Options) (*Store, error) {
	s := &Store{
		kv:    store,
		now:   opts.Now,
		newID: opts.NewID,
		subs:  make(map[int]chan Event),
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}

	var credential string
	if err := load(ctx, store, KeyCredential, &credential); err != nil {
		return nil, err
	}
	if credential == "" {
		credential = opts.DefaultCredential
	}
	s.credential = credential

	if err := load(ctx, store, KeyProjects, &s.projects); err != nil {
		return nil, err
	}
	if s.projects == nil {
		s.projects = []models.Project{}
	}
	for i := range s.projects {
		normalizeProject(&s.projects[i])
	}

	if err := load(ctx, store, KeyCostHistory, &s.costs); err != nil {
		return nil, err
	}
	if s.costs == nil {
		s.costs = []models.CostEntry{}
	}

	if err := load(ctx, store, KeyPreferences, &s.prefs); err != nil {
		return nil, err
	}
	s.prefs = withDefaults(s.prefs, opts)

	return s, nil
}

// load decodes the document under key into dst, leaving dst untouched when
// the document is missing or malformed.
func load[T any](ctx context.Context, store kv.Store, key string, dst *T) error {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	return decodeOrDefault(key, raw, dst)
}

// decodeOrDefault unmarshals raw into dst. A malformed document is logged
// and dst keeps its zero value.
func decodeOrDefault[T any](key string, raw []byte, dst *T) error {
	var scratch T
	if err := json.Unmarshal(raw, &scratch); err != nil {
		log.Printf("⚠️  Stored document %s is malformed, using defaults: %v", key, err)
		return nil
	}
	*dst = scratch
	return nil
}

// save serializes v and writes it under key.
func (s *Store) save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, key, data); err != nil {
		return fmt.Errorf("failed to persist %s: %w", key, err)
	}
	return nil
}

// --- Credential ---

// SetCredential stores the API credential. It is not validated here; a bad
// key is only discovered on the first real API call.
func (s *Store) SetCredential(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.save(ctx, KeyCredential, key); err != nil {
		return err
	}
	s.credential = key
	s.publish(Event{Type: EventCredentialUpdated, At: s.now()})
	return nil
}

// Credential returns the current API credential, or "" when none is set.
func (s *Store) Credential() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credential
}

// --- Projects ---

// CreateProject prepends a new empty project and makes it the active one.
func (s *Store) CreateProject(ctx context.Context, name, videoURL string) (models.Project, error) {
	name = strings.TrimSpace(name)
	videoURL = strings.TrimSpace(videoURL)
	if name == "" || videoURL == "" {
		return models.Project{}, ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := models.Project{
		ID:          s.newID(),
		Name:        name,
		VideoURL:    videoURL,
		CreatedAt:   s.now(),
		Generations: []models.Generation{},
		ChatHistory: []models.ChatMessage{},
	}

	next := make([]models.Project, 0, len(s.projects)+1)
	next = append(next, p)
	next = append(next, s.projects...)

	if err := s.save(ctx, KeyProjects, next); err != nil {
		return models.Project{}, err
	}
	s.projects = next
	s.activeID = p.ID

	s.publish(Event{Type: EventProjectCreated, ProjectID: p.ID, At: p.CreatedAt})
	return copyProject(p), nil
}

// DeleteProject removes a project and all of its generations and messages.
// Deleting an unknown id is a no-op. The cost ledger is never touched.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return nil
	}

	next := make([]models.Project, 0, len(s.projects)-1)
	next = append(next, s.projects[:idx]...)
	next = append(next, s.projects[idx+1:]...)

	if err := s.save(ctx, KeyProjects, next); err != nil {
		return err
	}
	s.projects = next
	if s.activeID == id {
		s.activeID = ""
	}

	s.publish(Event{Type: EventProjectDeleted, ProjectID: id, At: s.now()})
	return nil
}

// SelectProject marks a project as the active selection.
func (s *Store) SelectProject(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(id) < 0 {
		return ErrNotFound
	}
	s.activeID = id
	s.publish(Event{Type: EventProjectSelected, ProjectID: id, At: s.now()})
	return nil
}

// ClearSelection unsets the active project.
func (s *Store) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeID = ""
}

// ActiveProject returns the currently selected project, if any.
func (s *Store) ActiveProject() (models.Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeID == "" {
		return models.Project{}, false
	}
	idx := s.indexOf(s.activeID)
	if idx < 0 {
		return models.Project{}, false
	}
	return copyProject(s.projects[idx]), true
}

// ActiveProjectID returns the id of the selected project, or "".
func (s *Store) ActiveProjectID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// Project looks up a project by id.
func (s *Store) Project(id string) (models.Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return models.Project{}, false
	}
	return copyProject(s.projects[idx]), true
}

// Projects returns all projects, most recently created first.
func (s *Store) Projects() []models.Project {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Project, len(s.projects))
	for i, p := range s.projects {
		out[i] = copyProject(p)
	}
	return out
}

// --- Generations & chat ---

// AddGeneration records a completed API result on a project and appends the
// matching entry to the cost ledger.
//
// If the project does not exist nothing is recorded, not even the ledger
// entry, and ErrNotFound is returned.
func (s *Store) AddGeneration(ctx context.Context, projectID string, in NewGeneration) (models.Generation, error) {
	if !in.Type.Valid() || in.Model == "" {
		return models.Generation{}, ErrInvalidInput
	}
	content, err := compactContent(in.Content)
	if err != nil {
		return models.Generation{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(projectID)
	if idx < 0 {
		return models.Generation{}, ErrNotFound
	}

	now := s.now()
	cost := pricing.Cost(in.Model, in.Tokens.Input, in.Tokens.Output)

	gen := models.Generation{
		ID:        s.newID(),
		Type:      in.Type,
		Content:   content,
		CreatedAt: now,
		Model:     in.Model,
		Tokens:    in.Tokens,
		Cost:      cost,
	}

	project := s.projects[idx]
	entry := models.CostEntry{
		ID:          s.newID(),
		ProjectID:   project.ID,
		ProjectName: project.Name,
		Type:        in.Type,
		Model:       in.Model,
		Tokens:      in.Tokens,
		Cost:        cost,
		Timestamp:   now,
	}

	nextCosts := make([]models.CostEntry, 0, len(s.costs)+1)
	nextCosts = append(nextCosts, entry)
	nextCosts = append(nextCosts, s.costs...)

	gens := make([]models.Generation, 0, len(project.Generations)+1)
	gens = append(gens, gen)
	gens = append(gens, project.Generations...)
	project.Generations = gens
	nextProjects := replaceAt(s.projects, idx, project)

	// The request has already been billed by the provider, so the ledger
	// is written first.
	if err := s.save(ctx, KeyCostHistory, nextCosts); err != nil {
		return models.Generation{}, err
	}
	s.costs = nextCosts

	if err := s.save(ctx, KeyProjects, nextProjects); err != nil {
		return models.Generation{}, err
	}
	s.projects = nextProjects

	s.publish(Event{Type: EventGenerationAdded, ProjectID: projectID, GenerationID: gen.ID, At: now})
	return gen, nil
}

// Generation looks up one generation inside a project.
func (s *Store) Generation(projectID, generationID string) (models.Generation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(projectID)
	if idx < 0 {
		return models.Generation{}, false
	}
	for _, g := range s.projects[idx].Generations {
		if g.ID == generationID {
			return g, true
		}
	}
	return models.Generation{}, false
}

// AddChatMessage appends a message to a project's chat history.
func (s *Store) AddChatMessage(ctx context.Context, projectID string, msg models.ChatMessage) error {
	if msg.Role != models.RoleUser && msg.Role != models.RoleAssistant {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(projectID)
	if idx < 0 {
		return ErrNotFound
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}

	project := s.projects[idx]
	history := make([]models.ChatMessage, 0, len(project.ChatHistory)+1)
	history = append(history, project.ChatHistory...)
	history = append(history, msg)
	project.ChatHistory = history
	next := replaceAt(s.projects, idx, project)

	if err := s.save(ctx, KeyProjects, next); err != nil {
		return err
	}
	s.projects = next

	s.publish(Event{Type: EventChatAppended, ProjectID: projectID, At: msg.Timestamp})
	return nil
}

// --- Preferences ---

// Preferences returns the current user settings.
func (s *Store) Preferences() models.Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs
}

// PreferencesUpdate carries the preference fields to change; nil fields
// are left alone.
type PreferencesUpdate struct {
	SelectedModel *string
	ExchangeRate  *float64
	Speech        *models.SpeechSettings
}

// UpdatePreferences validates every provided field and then persists them
// together. Nothing is changed when any field is invalid.
func (s *Store) UpdatePreferences(ctx context.Context, upd PreferencesUpdate) error {
	var model string
	if upd.SelectedModel != nil {
		model = strings.TrimSpace(*upd.SelectedModel)
		if model == "" {
			return fmt.Errorf("%w: selected model is empty", ErrInvalidInput)
		}
	}
	if upd.ExchangeRate != nil && !validExchangeRate(*upd.ExchangeRate) {
		return fmt.Errorf("%w: exchange rate must be positive", ErrInvalidInput)
	}
	if upd.Speech != nil && !validSpeech(*upd.Speech) {
		return fmt.Errorf("%w: speech rate must be in (0, 10] and pitch in [0, 2]", ErrInvalidInput)
	}

	return s.updatePreferences(ctx, func(p *models.Preferences) {
		if upd.SelectedModel != nil {
			p.SelectedModel = model
		}
		if upd.ExchangeRate != nil {
			p.ExchangeRate = *upd.ExchangeRate
		}
		if upd.Speech != nil {
			p.Speech = *upd.Speech
		}
	})
}

// SetSelectedModel changes the default model used for chat and plain-text
// generations. Models outside the price table are accepted and billed at
// the default rate.
func (s *Store) SetSelectedModel(ctx context.Context, model string) error {
	return s.UpdatePreferences(ctx, PreferencesUpdate{SelectedModel: &model})
}

// SetExchangeRate changes the USD → INR conversion rate used for display.
func (s *Store) SetExchangeRate(ctx context.Context, rate float64) error {
	return s.UpdatePreferences(ctx, PreferencesUpdate{ExchangeRate: &rate})
}

// SetSpeechSettings replaces the text-to-speech settings.
func (s *Store) SetSpeechSettings(ctx context.Context, speech models.SpeechSettings) error {
	return s.UpdatePreferences(ctx, PreferencesUpdate{Speech: &speech})
}

func validExchangeRate(rate float64) bool { return rate > 0 }

func validSpeech(sp models.SpeechSettings) bool {
	return sp.Rate > 0 && sp.Rate <= 10 && sp.Pitch >= 0 && sp.Pitch <= 2
}

func (s *Store) updatePreferences(ctx context.Context, apply func(*models.Preferences)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.prefs
	apply(&next)
	if err := s.save(ctx, KeyPreferences, next); err != nil {
		return err
	}
	s.prefs = next
	s.publish(Event{Type: EventPreferencesUpdated, At: s.now()})
	return nil
}

// --- Cost ledger ---

// CostHistory returns the ledger, most recent first.
func (s *Store) CostHistory() []models.CostEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.CostEntry, len(s.costs))
	copy(out, s.costs)
	return out
}

// TotalCost sums every ledger entry.
func (s *Store) TotalCost() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total float64
	for _, e := range s.costs {
		total += e.Cost
	}
	return total
}

// CostByProject groups ledger spend by the project name captured on each
// entry, highest spend first.
func (s *Store) CostByProject() []models.ProjectCost {
	s.mu.Lock()
	defer s.mu.Unlock()

	totals := make(map[string]float64)
	for _, e := range s.costs {
		totals[e.ProjectName] += e.Cost
	}

	out := make([]models.ProjectCost, 0, len(totals))
	for name, cost := range totals {
		out = append(out, models.ProjectCost{ProjectName: name, Cost: cost})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Cost != out[j].Cost {
			return out[i].Cost > out[j].Cost
		}
		return out[i].ProjectName < out[j].ProjectName
	})
	return out
}

// --- helpers ---

// indexOf must be called with s.mu held.
func (s *Store) indexOf(id string) int {
	for i, p := range s.projects {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func replaceAt(projects []models.Project, idx int, p models.Project) []models.Project {
	next := make([]models.Project, len(projects))
	copy(next, projects)
	next[idx] = p
	return next
}

func copyProject(p models.Project) models.Project {
	gens := make([]models.Generation, len(p.Generations))
	copy(gens, p.Generations)
	msgs := make([]models.ChatMessage, len(p.ChatHistory))
	copy(msgs, p.ChatHistory)
	p.Generations = gens
	p.ChatHistory = msgs
	return p
}

func normalizeProject(p *models.Project) {
	if p.Generations == nil {
		p.Generations = []models.Generation{}
	}
	if p.ChatHistory == nil {
		p.ChatHistory = []models.ChatMessage{}
	}
}

// compactContent validates generation content and normalizes its encoding
// so stored bytes survive a persistence round trip unchanged.
func compactContent(raw json.RawMessage) (json.RawMessage, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return json.RawMessage(`""`), nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, fmt.Errorf("%w: content is not valid JSON: %v", ErrInvalidInput, err)
	}
	return json.RawMessage(buf.Bytes()), nil
}

func withDefaults(p models.Preferences, opts Options) models.Preferences {
	if p.SelectedModel == "" {
		p.SelectedModel = opts.DefaultModel
		if p.SelectedModel == "" {
			p.SelectedModel = pricing.DefaultModel
		}
	}
	if p.ExchangeRate <= 0 {
		p.ExchangeRate = opts.DefaultExchangeRate
	}
	if p.Speech.Rate <= 0 {
		p.Speech.Rate = 1
	}
	if p.Speech.Pitch <= 0 {
		p.Speech.Pitch = 1
	}
	return p
}
