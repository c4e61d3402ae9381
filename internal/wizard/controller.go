// Package wizard implements the distributor registration wizard: the step
// sequence, the per-step validation that gates forward navigation, document
// staging and the final multipart GraphQL submission.
//
// A Controller owns the FormState of one registration. Renderers read a
// View snapshot and request every change through the controller; they never
// hold a copy of the form.
//
//	Step(0) -Next-> Step(1) ... Step(N-1) -Finalize-> Submitting -> Succeeded
//	                                  ^                   |
//	                                  +------ failed -----+
package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/registro/internal/core"
	"github.com/JonMunkholm/registro/internal/gqlupload"
	"github.com/JonMunkholm/registro/internal/logging"
)

// CreateMutation registers a new distributor.
const CreateMutation = `mutation RegistrarDistribuidor($data: DistribuidorInput!, $documentos: DocumentosDistribuidorInput!) {
  registrarDistribuidor(data: $data, documentos: $documentos) {
    id
    estado
  }
}`

// UpdateMutation updates an existing distributor. Documents left null are
// kept as they are on file.
const UpdateMutation = `mutation ActualizarDistribuidor($data: DistribuidorInput!, $documentos: DocumentosDistribuidorInput) {
  actualizarDistribuidor(data: $data, documentos: $documentos) {
    id
    estado
  }
}`

// Transport sends an encoded registration. *gqlupload.Client implements it.
type Transport interface {
	Submit(ctx context.Context, p *gqlupload.Payload) (*gqlupload.Response, error)
}

// Phase is the controller's position outside the step sequence.
type Phase int

const (
	PhaseEditing Phase = iota
	PhaseSubmitting
	PhaseSucceeded
)

func (p Phase) String() string {
	switch p {
	case PhaseSubmitting:
		return "submitting"
	case PhaseSucceeded:
		return "succeeded"
	default:
		return "editing"
	}
}

// Outcome is the result of a Finalize call.
type Outcome int

const (
	OutcomeNone Outcome = iota
	// OutcomeIncomplete: a step failed re-validation; the wizard moved to it.
	OutcomeIncomplete
	// OutcomeSucceeded: the backend accepted the registration.
	OutcomeSucceeded
	// OutcomeFailed: the submission failed; the wizard stays on the review
	// step with SubmitError set.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIncomplete:
		return "incomplete"
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	default:
		return "none"
	}
}

// Controller drives one registration. It is safe for concurrent use; calls
// are serialised, except that the transport round-trip of Finalize runs
// without the lock while every mutation is rejected with
// ErrSubmissionInFlight.
type Controller struct {
	mu sync.Mutex

	id        string
	mode      Mode
	rules     *Rules
	steps     []Step
	transport Transport
	now       func() time.Time

	step        int
	phase       Phase
	closed      bool
	state       *FormState
	fieldErrors FieldErrors
	submitErr   string
	result      json.RawMessage
	lastActive  time.Time

	previews    *core.PreviewTable
	previewRefs map[core.DocumentTypeID]core.PreviewRef
}

// Option configures a Controller.
type Option func(*Controller)

// WithEdit starts the wizard in edit mode for distributor id, prefilled
// with initial. Document slots start absent; only replacements are sent.
func WithEdit(id string, initial *FormState) Option {
	return func(c *Controller) {
		c.mode = ModeEdit
		WithInitial(initial)(c)
		c.state.ID = id
	}
}

// WithInitial prefills the form. Staged documents in initial are dropped
// since they never went through StageDocument.
func WithInitial(initial *FormState) Option {
	return func(c *Controller) {
		if initial == nil {
			return
		}
		c.state = initial.Clone()
		for t := range c.state.Documentos {
			c.state.Documentos[t] = nil
		}
		normalize(c.state)
	}
}

// WithClock overrides the time source used for idle tracking.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New creates a controller at Step(0) with an empty form.
func New(id string, rules *Rules, transport Transport, opts ...Option) *Controller {
	c := &Controller{
		id:          id,
		mode:        ModeCreate,
		rules:       rules,
		transport:   transport,
		now:         time.Now,
		state:       NewFormState(),
		previews:    core.NewPreviewTable(),
		previewRefs: make(map[core.DocumentTypeID]core.PreviewRef),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.steps = rules.Steps(c.mode)
	c.lastActive = c.now()
	return c
}

// normalize brings a prefilled form within the reference bounds and makes
// sure every canonical document slot exists.
func normalize(s *FormState) {
	for len(s.Referencias) < MinReferences {
		s.Referencias = append(s.Referencias, ReferenceEntry{})
	}
	if len(s.Referencias) > MaxReferences {
		s.Referencias = s.Referencias[:MaxReferences]
	}
	if s.Documentos == nil {
		s.Documentos = make(map[core.DocumentTypeID]*core.FileHandle, len(core.DocumentTypes))
	}
	for _, t := range core.DocumentTypes {
		if _, ok := s.Documentos[t]; !ok {
			s.Documentos[t] = nil
		}
	}
}

// ID returns the session id.
func (c *Controller) ID() string { return c.id }

// Mode returns the schema set in use.
func (c *Controller) Mode() Mode { return c.mode }

// LastActive returns when the controller was last used.
func (c *Controller) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

// editableLocked reports why the form cannot be changed right now.
func (c *Controller) editableLocked() error {
	c.lastActive = c.now()
	switch {
	case c.closed:
		return ErrSessionClosed
	case c.phase == PhaseSubmitting:
		return ErrSubmissionInFlight
	case c.phase == PhaseSucceeded:
		return fmt.Errorf("%w: registration already submitted", ErrInvalidTransition)
	}
	return nil
}

// Next validates the current step and advances when it passes. On failure
// the controller stays and FieldErrors holds this step's errors only.
func (c *Controller) Next() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.editableLocked(); err != nil {
		return false, err
	}
	if c.step == len(c.steps)-1 {
		return false, fmt.Errorf("%w: already at the last step", ErrInvalidTransition)
	}

	if fe := c.steps[c.step].Validate(c.state); len(fe) > 0 {
		c.fieldErrors = fe
		return false, nil
	}

	c.step++
	c.fieldErrors = nil
	return true, nil
}

// Back moves to the previous step without validating. Entered values are kept.
func (c *Controller) Back() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.editableLocked(); err != nil {
		return err
	}
	if c.step == 0 {
		return fmt.Errorf("%w: already at the first step", ErrInvalidTransition)
	}
	c.step--
	c.fieldErrors = nil
	return nil
}

// GoTo jumps back to an earlier step, as the review page's edit links do.
// Jumping forward is not allowed since it would skip validation.
func (c *Controller) GoTo(step int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.editableLocked(); err != nil {
		return err
	}
	if step < 0 || step > c.step {
		return fmt.Errorf("%w: cannot jump from step %d to %d", ErrInvalidTransition, c.step, step)
	}
	if step != c.step {
		c.fieldErrors = nil
	}
	c.step = step
	return nil
}

// SetField sets one field. Changing departamento clears municipio.
func (c *Controller) SetField(path, value string) error {
	return c.SetFields(map[string]string{path: value})
}

// SetFields sets several fields at once. Either every path is known and all
// are applied, or nothing changes. departamento is applied first so a
// municipio posted with it survives the dependent reset.
func (c *Controller) SetFields(values map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.editableLocked(); err != nil {
		return err
	}

	paths := make([]string, 0, len(values))
	for p := range values {
		if _, err := c.state.field(p); err != nil {
			return err
		}
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool {
		if (paths[i] == "departamento") != (paths[j] == "departamento") {
			return paths[i] == "departamento"
		}
		return paths[i] < paths[j]
	})

	for _, p := range paths {
		ptr, _ := c.state.field(p)
		value := strings.TrimSpace(values[p])
		if p == "departamento" && *ptr != value {
			c.state.Personal.Municipio = ""
		}
		*ptr = value
		delete(c.fieldErrors, p)
	}
	return nil
}

// AddReference appends an empty reference. Rejected at MaxReferences.
func (c *Controller) AddReference() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.editableLocked(); err != nil {
		return err
	}
	if len(c.state.Referencias) >= MaxReferences {
		return fmt.Errorf("%w: at most %d references", ErrReferenceLimit, MaxReferences)
	}
	c.state.Referencias = append(c.state.Referencias, ReferenceEntry{})
	c.clearReferenceErrorsLocked()
	return nil
}

// RemoveReference removes reference i. Rejected at MinReferences.
func (c *Controller) RemoveReference(i int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.editableLocked(); err != nil {
		return err
	}
	if i < 0 || i >= len(c.state.Referencias) {
		return fmt.Errorf("%w: referencias.%d", ErrUnknownField, i)
	}
	if len(c.state.Referencias) <= MinReferences {
		return fmt.Errorf("%w: at least %d references", ErrReferenceLimit, MinReferences)
	}
	c.state.Referencias = append(c.state.Referencias[:i], c.state.Referencias[i+1:]...)
	c.clearReferenceErrorsLocked()
	return nil
}

// clearReferenceErrorsLocked drops reference errors, whose indices no longer
// match after the list changed.
func (c *Controller) clearReferenceErrorsLocked() {
	for p := range c.fieldErrors {
		if p == "referencias" || strings.HasPrefix(p, "referencias.") {
			delete(c.fieldErrors, p)
		}
	}
}

// StageDocument validates file against the rules for t and, if it passes,
// replaces whatever was staged for t. The superseded preview is released
// before the new one is derived. A rejected file leaves the slot unchanged
// and its messages under FieldErrors "documentos.<t>".
func (c *Controller) StageDocument(t core.DocumentTypeID, file *core.FileHandle) (core.ValidationResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.editableLocked(); err != nil {
		return core.ValidationResult{}, err
	}
	if _, err := c.rules.registry.ConfigFor(t); err != nil {
		return core.ValidationResult{}, err
	}

	path := documentPath(t)
	res := c.rules.registry.Validate(file, t)
	if !res.Valid {
		if c.fieldErrors == nil {
			c.fieldErrors = make(FieldErrors)
		}
		c.fieldErrors[path] = append([]string(nil), res.Errors...)
		return res, nil
	}

	c.releasePreviewLocked(t)
	c.state.Documentos[t] = file
	if ref, ok := c.previews.Derive(file); ok {
		c.previewRefs[t] = ref
	}
	delete(c.fieldErrors, path)
	return res, nil
}

// ClearDocument empties the slot for t and releases its preview.
func (c *Controller) ClearDocument(t core.DocumentTypeID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.editableLocked(); err != nil {
		return err
	}
	if !t.Valid() {
		return fmt.Errorf("%w: %q", core.ErrUnknownDocumentType, t)
	}
	c.releasePreviewLocked(t)
	c.state.Documentos[t] = nil
	delete(c.fieldErrors, documentPath(t))
	return nil
}

func (c *Controller) releasePreviewLocked(t core.DocumentTypeID) {
	if ref, ok := c.previewRefs[t]; ok {
		c.previews.Release(ref)
		delete(c.previewRefs, t)
	}
}

func documentPath(t core.DocumentTypeID) string {
	return string(StepDocumentos) + "." + string(t)
}

// Preview returns the staged image behind a preview id.
func (c *Controller) Preview(id string) (*core.FileHandle, bool) {
	return c.previews.Lookup(id)
}

// LivePreviews returns the number of unreleased preview references.
func (c *Controller) LivePreviews() int {
	return c.previews.Live()
}

// DismissError clears the submission error banner.
func (c *Controller) DismissError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastActive = c.now()
	c.submitErr = ""
}

// Finalize submits the registration. It is only allowed on the review step.
//
// Every step is validated again first; if one fails the wizard moves to it
// and OutcomeIncomplete is returned. Otherwise the form is split into
// {data, documentos}, encoded and sent through the transport exactly once.
// On success the form is discarded and previews released. On failure the
// wizard stays on the review step with SubmitError set to the server's
// message or GenericSubmitError. The returned error reports misuse only.
func (c *Controller) Finalize(ctx context.Context) (Outcome, error) {
	c.mu.Lock()
	if err := c.editableLocked(); err != nil {
		c.mu.Unlock()
		return OutcomeNone, err
	}
	if c.step != len(c.steps)-1 {
		c.mu.Unlock()
		return OutcomeNone, ErrNotAtReview
	}

	ctx = core.ContextWithSessionID(ctx, c.id)
	logger := logging.WithFields(ctx, "mode", c.mode.String())

	for i, st := range c.steps {
		if fe := st.Validate(c.state); len(fe) > 0 {
			c.step = i
			c.fieldErrors = fe
			c.submitErr = ""
			c.mu.Unlock()
			logger.Info("registration incomplete", "step", st.ID, "fields", len(fe))
			return OutcomeIncomplete, nil
		}
	}

	variables := gqlupload.Object{
		{Key: "data", Value: c.state.NonFileFields()},
		{Key: "documentos", Value: c.state.DocumentFields()},
	}
	payload, err := gqlupload.Encode(c.mutation(), variables)
	if err != nil {
		c.submitErr = GenericSubmitError
		c.mu.Unlock()
		logger.Error("encode registration failed", "error", err)
		return OutcomeFailed, nil
	}

	c.phase = PhaseSubmitting
	c.submitErr = ""
	c.fieldErrors = nil
	c.mu.Unlock()

	start := time.Now()
	resp, err := c.transport.Submit(ctx, payload)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastActive = c.now()

	if err != nil {
		c.phase = PhaseEditing
		c.submitErr = submitMessage(err)
		logger.Warn("registration submission failed",
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return OutcomeFailed, nil
	}

	c.phase = PhaseSucceeded
	if resp != nil {
		c.result = resp.Data
	}
	released := c.previews.ReleaseAll()
	c.previewRefs = make(map[core.DocumentTypeID]core.PreviewRef)
	c.state = nil

	logger.Info("registration submitted",
		"client_ip", core.GetIPAddressFromContext(ctx),
		"user_agent", core.GetUserAgentFromContext(ctx),
		"files", len(payload.Files),
		"previews_released", released,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return OutcomeSucceeded, nil
}

func (c *Controller) mutation() string {
	if c.mode == ModeEdit {
		return UpdateMutation
	}
	return CreateMutation
}

// submitMessage prefers the server's own message.
func submitMessage(err error) string {
	var te *gqlupload.TransportError
	if errors.As(err, &te) {
		if msg := te.ServerMessage(); msg != "" {
			return msg
		}
	}
	return GenericSubmitError
}

// Close abandons the registration: the form is discarded and every
// outstanding preview released. Later calls fail with ErrSessionClosed.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.previews.ReleaseAll()
	c.previewRefs = make(map[core.DocumentTypeID]core.PreviewRef)
	c.state = nil
	c.fieldErrors = nil
}
