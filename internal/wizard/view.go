package wizard

import (
	"encoding/json"
	"strings"

	"github.com/JonMunkholm/registro/internal/core"
)

// View is a read-only snapshot of a controller for renderers and the JSON
// API. It never aliases controller state except immutable file handles.
type View struct {
	SessionID   string          `json:"sessionId"`
	Mode        string          `json:"mode"`
	Phase       string          `json:"phase"`
	StepIndex   int             `json:"stepIndex"`
	Step        StepID          `json:"step"`
	Title       string          `json:"title"`
	Steps       []StepInfo      `json:"steps"`
	Form        *FormState      `json:"-"`
	Documents   []DocumentView  `json:"documentos"`
	Errors      FieldErrors     `json:"fieldErrors,omitempty"`
	SubmitError string          `json:"submitError,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`

	CanAddReference    bool `json:"canAddReference"`
	CanRemoveReference bool `json:"canRemoveReference"`
}

// StepInfo names one step of the sequence.
type StepInfo struct {
	ID    StepID `json:"id"`
	Title string `json:"title"`
}

// DocumentView describes one document slot.
type DocumentView struct {
	Type       core.DocumentTypeID `json:"type"`
	Label      string              `json:"label"`
	Required   bool                `json:"required"`
	Accept     string              `json:"accept"`
	Formats    string              `json:"formats"`
	MaxSize    string              `json:"maxSize"`
	FileName   string              `json:"fileName,omitempty"`
	FileSize   string              `json:"fileSize,omitempty"`
	MimeType   string              `json:"mimeType,omitempty"`
	Preview    core.PreviewRef     `json:"preview,omitempty"`
	HasPreview bool                `json:"hasPreview"`
}

// IsFirst reports whether the view is on the first step.
func (v View) IsFirst() bool { return v.StepIndex == 0 }

// IsLast reports whether the view is on the review step.
func (v View) IsLast() bool { return v.StepIndex == len(v.Steps)-1 }

// Succeeded reports whether the registration was accepted.
func (v View) Succeeded() bool { return v.Phase == PhaseSucceeded.String() }

// FormJSON is the form as sent in the "data" variable, for the JSON API.
func (v View) FormJSON() any {
	if v.Form == nil {
		return nil
	}
	return v.Form.NonFileFields()
}

// MarshalJSON adds the form data to the snapshot.
func (v View) MarshalJSON() ([]byte, error) {
	type plain View
	return json.Marshal(struct {
		plain
		Data any `json:"data"`
	}{plain(v), v.FormJSON()})
}

// View returns a snapshot of the controller.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		SessionID:   c.id,
		Mode:        c.mode.String(),
		Phase:       c.phase.String(),
		StepIndex:   c.step,
		Step:        c.steps[c.step].ID,
		Title:       c.steps[c.step].Title,
		Steps:       make([]StepInfo, len(c.steps)),
		Errors:      c.fieldErrors.Clone(),
		SubmitError: c.submitErr,
		Result:      append(json.RawMessage(nil), c.result...),
	}
	for i, st := range c.steps {
		v.Steps[i] = StepInfo{ID: st.ID, Title: st.Title}
	}
	if c.state == nil {
		return v
	}

	v.Form = c.state.Clone()
	v.CanAddReference = c.phase == PhaseEditing && len(c.state.Referencias) < MaxReferences
	v.CanRemoveReference = c.phase == PhaseEditing && len(c.state.Referencias) > MinReferences

	reg := c.rules.registry
	for _, entry := range reg.All() {
		dv := DocumentView{
			Type:     entry.Type,
			Label:    entry.Config.Label,
			Required: entry.Config.Required && c.mode == ModeCreate,
			Accept:   strings.Join(entry.Config.AcceptedMimeTypes, ","),
			Formats:  core.AcceptedExtensions(entry.Config),
			MaxSize:  core.FormatSize(entry.Config.MaxSizeBytes),
		}
		if f := c.state.Documentos[entry.Type]; f != nil {
			dv.FileName = f.Name
			dv.FileSize = core.FormatSize(f.Size)
			dv.MimeType = f.MimeType
		}
		if ref, ok := c.previewRefs[entry.Type]; ok {
			dv.Preview = ref
			dv.HasPreview = true
		}
		v.Documents = append(v.Documents, dv)
	}
	return v
}
