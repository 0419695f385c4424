package shop

import (
	"fmt"
	"strings"
	"time"

	"profitcruiser/internal/state"
)

// ScriptPatch carries partial updates for a catalog script. Nil fields
// are left untouched.
type ScriptPatch struct {
	Title         *string              `json:"title"`
	Short         *string              `json:"short"`
	Category      *string              `json:"category"`
	Tags          *[]string            `json:"tags"`
	Features      *[]string            `json:"features"`
	Thumbnail     *string              `json:"thumbnail"`
	WorkinkURL    *string              `json:"workink_url"`
	Status        *string              `json:"status"`
	Compatibility *state.Compatibility `json:"compatibility"`
	Version       *string              `json:"version"`
	ReleaseDate   *string              `json:"release_date"`
	SEO           *state.SEO           `json:"seo"`
	Description   *string              `json:"description"`
}

// PublicScripts returns the catalog with hidden entries filtered out and
// live view counts applied.
func (s *Service) PublicScripts() []state.Script {
	var scripts []state.Script
	s.store.View(func(doc *state.Document) {
		for i := range doc.Scripts {
			script := doc.Scripts[i]
			if doc.ScriptVisibility[script.Slug] {
				continue
			}
			script.Views = doc.Views[script.Slug]
			scripts = append(scripts, script)
		}
	})
	return scripts
}

// HiddenSlugs returns the slugs currently hidden from the public catalog.
func (s *Service) HiddenSlugs() []string {
	var hidden []string
	s.store.View(func(doc *state.Document) {
		for slug, isHidden := range doc.ScriptVisibility {
			if isHidden {
				hidden = append(hidden, slug)
			}
		}
	})
	return hidden
}

// AdminScripts returns the full catalog, hidden entries included.
func (s *Service) AdminScripts() []state.Script {
	var scripts []state.Script
	s.store.View(func(doc *state.Document) {
		for i := range doc.Scripts {
			script := doc.Scripts[i]
			script.Views = doc.Views[script.Slug]
			scripts = append(scripts, script)
		}
	})
	return scripts
}

// CreateScript adds a catalog entry, filling defaults for the optional
// fields.
func (s *Service) CreateScript(script state.Script) (*state.Script, error) {
	script.Slug = strings.TrimSpace(script.Slug)
	script.Title = strings.TrimSpace(script.Title)
	script.Category = strings.TrimSpace(script.Category)
	if script.Slug == "" || script.Title == "" || script.Category == "" {
		return nil, ErrMissingScriptFields
	}
	if script.Thumbnail == "" {
		script.Thumbnail = "/images/scripts/placeholder.webp"
	}
	if script.Status == "" {
		script.Status = "active"
	}
	if !script.Compatibility.PC && !script.Compatibility.Mobile {
		script.Compatibility = state.Compatibility{PC: true, ExecutorRequired: true}
	}
	if script.Version == "" {
		script.Version = "1.0.0"
	}
	today := time.Now().UTC().Format("2006-01-02")
	if script.ReleaseDate == "" {
		script.ReleaseDate = today
	}
	script.UpdatedAt = today
	script.Views = 0

	err := s.store.Update(func(doc *state.Document) error {
		for i := range doc.Scripts {
			if doc.Scripts[i].Slug == script.Slug {
				return ErrScriptExists
			}
		}
		doc.Scripts = append(doc.Scripts, script)
		doc.AppendActivity(fmt.Sprintf("New script added: %s (%s)", script.Title, script.Slug))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &script, nil
}

// UpdateScript applies a partial update to a catalog entry.
func (s *Service) UpdateScript(slug string, patch ScriptPatch) (*state.Script, error) {
	var updated *state.Script
	err := s.store.Update(func(doc *state.Document) error {
		for i := range doc.Scripts {
			if doc.Scripts[i].Slug != slug {
				continue
			}
			script := &doc.Scripts[i]
			if patch.Title != nil {
				script.Title = *patch.Title
			}
			if patch.Short != nil {
				script.Short = *patch.Short
			}
			if patch.Category != nil {
				script.Category = *patch.Category
			}
			if patch.Tags != nil {
				script.Tags = *patch.Tags
			}
			if patch.Features != nil {
				script.Features = *patch.Features
			}
			if patch.Thumbnail != nil {
				script.Thumbnail = *patch.Thumbnail
			}
			if patch.WorkinkURL != nil {
				script.WorkinkURL = *patch.WorkinkURL
			}
			if patch.Status != nil {
				script.Status = *patch.Status
			}
			if patch.Compatibility != nil {
				script.Compatibility = *patch.Compatibility
			}
			if patch.Version != nil {
				script.Version = *patch.Version
			}
			if patch.ReleaseDate != nil {
				script.ReleaseDate = *patch.ReleaseDate
			}
			if patch.SEO != nil {
				script.SEO = *patch.SEO
			}
			if patch.Description != nil {
				script.Description = *patch.Description
			}
			script.UpdatedAt = time.Now().UTC().Format("2006-01-02")
			doc.AppendActivity(fmt.Sprintf("Script updated: %s (%s)", script.Title, script.Slug))
			scriptCopy := *script
			updated = &scriptCopy
			return nil
		}
		return ErrScriptNotFound
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteScript removes a catalog entry.
func (s *Service) DeleteScript(slug string) error {
	return s.store.Update(func(doc *state.Document) error {
		for i := range doc.Scripts {
			if doc.Scripts[i].Slug != slug {
				continue
			}
			title := doc.Scripts[i].Title
			doc.Scripts = append(doc.Scripts[:i], doc.Scripts[i+1:]...)
			doc.AppendActivity(fmt.Sprintf("Script deleted: %s (%s)", title, slug))
			return nil
		}
		return ErrScriptNotFound
	})
}

// SetScriptVisibility hides or shows a script in the public catalog.
func (s *Service) SetScriptVisibility(slug string, hidden bool) error {
	return s.store.Update(func(doc *state.Document) error {
		if doc.ScriptVisibility == nil {
			doc.ScriptVisibility = map[string]bool{}
		}
		doc.ScriptVisibility[slug] = hidden
		visibility := "visible"
		if hidden {
			visibility = "hidden"
		}
		doc.AppendActivity(fmt.Sprintf("Script %s visibility set to %s", slug, visibility))
		return nil
	})
}
