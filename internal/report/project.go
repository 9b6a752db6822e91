package report

import (
	"bytes"
	"html"
	"sort"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/AngelCh415/adrecon/internal/models"
)

// Project renders the campaign metrics through the template. Every
// placeholder must resolve and no two channels may share a placeholder;
// otherwise nothing is emitted.
func Project(m models.CampaignMetrics, t Template, f Formatter) (models.RenderedDocument, error) {
	ids := make([]string, len(m.Channels))
	for i, cm := range m.Channels {
		ids[i] = cm.ChannelID
	}
	if err := CheckChannelKeys(ids); err != nil {
		return models.RenderedDocument{}, err
	}
	slots := f.SlotMap(m)
	body, err := Render(t, slots)
	if err != nil {
		return models.RenderedDocument{}, err
	}
	return models.RenderedDocument{Body: body, Slots: slots}, nil
}

// Render substitutes slots into t. Unused slots are fine; missing ones fail
// with an UnresolvedPlaceholderError listing every missing key.
func Render(t Template, slots models.TemplateSlotMap) (string, error) {
	missing := map[string]struct{}{}
	for _, s := range t.Segments {
		if !s.IsKey {
			continue
		}
		if _, ok := slots[s.Text]; !ok {
			missing[s.Text] = struct{}{}
		}
	}
	if len(missing) > 0 {
		keys := make([]string, 0, len(missing))
		for k := range missing {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return "", &models.UnresolvedPlaceholderError{Keys: keys}
	}

	var b strings.Builder
	for _, s := range t.Segments {
		switch {
		case !s.IsKey:
			b.WriteString(s.Text)
		case t.EscapeHTML:
			b.WriteString(html.EscapeString(slots[s.Text]))
		default:
			b.WriteString(slots[s.Text])
		}
	}
	return b.String(), nil
}

// ToHTML converts a markdown-authored report body to HTML.
func ToHTML(doc models.RenderedDocument) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(doc.Body), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
