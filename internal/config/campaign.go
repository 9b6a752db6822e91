package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/AngelCh415/adrecon/internal/locale"
	"github.com/AngelCh415/adrecon/internal/models"
	"github.com/AngelCh415/adrecon/internal/normalize"
	"github.com/AngelCh415/adrecon/internal/report"
)

// Source kinds a channel export can come from.
const (
	SourceCSV  = "csv"
	SourceXLSX = "xlsx"
	SourceHTML = "html"
	SourceHTTP = "http"
)

// Campaign is one campaign definition file.
type Campaign struct {
	ID        string           `yaml:"campaign"`
	Output    Output           `yaml:"output"`
	Template  TemplateConfig   `yaml:"template"`
	Channels  []ChannelConfig  `yaml:"channels"`
	Baselines []BaselineConfig `yaml:"baselines"`

	// dir is where relative paths in the file resolve from.
	dir string
}

type Output struct {
	Locale        string `yaml:"locale"`
	NotApplicable string `yaml:"not_applicable"`
	PercentPlaces *int32 `yaml:"percent_places"`
	RatioPlaces   *int32 `yaml:"ratio_places"`
}

type TemplateConfig struct {
	Path       string        `yaml:"path"`
	Inline     string        `yaml:"inline"`
	Delims     report.Delims `yaml:"delims"`
	EscapeHTML bool          `yaml:"escape_html"`
}

type SourceConfig struct {
	Kind      string `yaml:"kind"`
	Path      string `yaml:"path"`
	Delimiter string `yaml:"delimiter"`
	Sheet     string `yaml:"sheet"`
	Selector  string `yaml:"selector"`
	URL       string `yaml:"url"`
}

type ChannelConfig struct {
	ID         string                     `yaml:"id"`
	Locale     string                     `yaml:"locale"`
	Profile    *locale.Profile            `yaml:"profile"`
	Source     SourceConfig               `yaml:"source"`
	Completion models.CompletionKind      `yaml:"completion"`
	DateLayout string                     `yaml:"date_layout"`
	Columns    map[normalize.Field]string `yaml:"columns"`
}

type BaselineConfig struct {
	Channel  string          `yaml:"channel"`
	Budget   string          `yaml:"budget"`
	Units    int64           `yaml:"units"`
	UnitType models.UnitType `yaml:"unit_type"`
}

// LoadCampaign reads and validates a campaign yaml file.
func LoadCampaign(path string) (Campaign, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Campaign{}, fmt.Errorf("read campaign: %w", err)
	}
	c, err := ParseCampaign(b)
	if err != nil {
		return Campaign{}, fmt.Errorf("campaign %s: %w", path, err)
	}
	c.dir = filepath.Dir(path)
	return c, nil
}

// ParseCampaign decodes a campaign definition. Unknown keys are rejected.
func ParseCampaign(b []byte) (Campaign, error) {
	var c Campaign
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return Campaign{}, fmt.Errorf("decode: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Campaign{}, err
	}
	return c, nil
}

func (c Campaign) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return errors.New("campaign id required")
	}
	if len(c.Channels) == 0 {
		return errors.New("at least one channel required")
	}
	if c.Template.Path == "" && c.Template.Inline == "" {
		return errors.New("template path or inline template required")
	}
	if _, err := c.OutputFormatter(); err != nil {
		return err
	}
	seen := map[string]struct{}{}
	ids := make([]string, 0, len(c.Channels))
	for _, ch := range c.Channels {
		if _, dup := seen[ch.ID]; dup {
			return fmt.Errorf("channel %q declared twice", ch.ID)
		}
		seen[ch.ID] = struct{}{}
		ids = append(ids, ch.ID)
		if err := ch.Source.validate(); err != nil {
			return fmt.Errorf("channel %s: %w", ch.ID, err)
		}
		m, err := ch.Mapping()
		if err != nil {
			return err
		}
		if err := m.Validate(); err != nil {
			return err
		}
	}
	if err := report.CheckChannelKeys(ids); err != nil {
		return err
	}
	_, err := c.ContractedBaselines()
	return err
}

func (s SourceConfig) validate() error {
	switch s.Kind {
	case SourceCSV, SourceXLSX, SourceHTML:
		if s.Path == "" {
			return fmt.Errorf("%s source needs a path", s.Kind)
		}
		if s.Delimiter != `\t` && len([]rune(s.Delimiter)) > 1 {
			return fmt.Errorf("delimiter %q must be a single character", s.Delimiter)
		}
	case SourceHTTP:
		if s.URL == "" {
			return errors.New("http source needs a url")
		}
	default:
		return fmt.Errorf("unknown source kind %q", s.Kind)
	}
	return nil
}

// profile resolves the channel's locale: an inline profile wins over a name.
func (ch ChannelConfig) profile() (locale.Profile, error) {
	if ch.Profile != nil {
		return *ch.Profile, nil
	}
	if ch.Locale == "" {
		return locale.Profile{}, fmt.Errorf("channel %s: locale or profile required", ch.ID)
	}
	return locale.Lookup(ch.Locale)
}

func (ch ChannelConfig) Mapping() (normalize.ColumnMapping, error) {
	p, err := ch.profile()
	if err != nil {
		return normalize.ColumnMapping{}, err
	}
	return normalize.ColumnMapping{
		ChannelID:  ch.ID,
		Profile:    p,
		Columns:    ch.Columns,
		Completion: ch.Completion,
		DateLayout: ch.DateLayout,
	}, nil
}

// ContractedBaselines converts the baseline entries. Budgets are kept as
// strings in yaml so they never pass through a float.
func (c Campaign) ContractedBaselines() ([]models.ContractedBaseline, error) {
	out := make([]models.ContractedBaseline, 0, len(c.Baselines))
	for _, b := range c.Baselines {
		if b.Channel == "" {
			return nil, errors.New("baseline without channel")
		}
		budget, err := decimal.NewFromString(strings.TrimSpace(b.Budget))
		if err != nil {
			return nil, fmt.Errorf("baseline %s: budget %q: %w", b.Channel, b.Budget, err)
		}
		if budget.IsNegative() || b.Units < 0 {
			return nil, fmt.Errorf("baseline %s: negative budget or units", b.Channel)
		}
		if !b.UnitType.Valid() {
			return nil, fmt.Errorf("baseline %s: unknown unit type %q", b.Channel, b.UnitType)
		}
		out = append(out, models.ContractedBaseline{
			ChannelID:        b.Channel,
			BudgetContracted: budget,
			UnitsContracted:  b.Units,
			UnitType:         b.UnitType,
		})
	}
	return out, nil
}

// OutputFormatter builds the report formatter for the output locale.
func (c Campaign) OutputFormatter() (report.Formatter, error) {
	name := c.Output.Locale
	if name == "" {
		name = locale.Plain.Name
	}
	p, err := locale.Lookup(name)
	if err != nil {
		return report.Formatter{}, fmt.Errorf("output: %w", err)
	}
	f := report.NewFormatter(p)
	if c.Output.NotApplicable != "" {
		f.NotApplicable = c.Output.NotApplicable
	}
	if v := c.Output.PercentPlaces; v != nil {
		f.PercentPlaces = *v
	}
	if v := c.Output.RatioPlaces; v != nil {
		f.RatioPlaces = *v
	}
	if f.PercentPlaces < 0 || f.RatioPlaces < 0 {
		return report.Formatter{}, errors.New("output: places must be >= 0")
	}
	return f, nil
}

func (c Campaign) delims() report.Delims {
	d := c.Template.Delims
	if d.Open == "" && d.Close == "" {
		return report.DefaultDelims
	}
	return d
}

// LoadTemplate reads and parses the report template.
func (c Campaign) LoadTemplate() (report.Template, error) {
	text := c.Template.Inline
	if c.Template.Path != "" {
		b, err := os.ReadFile(c.Resolve(c.Template.Path))
		if err != nil {
			return report.Template{}, fmt.Errorf("read template: %w", err)
		}
		text = string(b)
	}
	t, err := report.Parse(text, c.delims())
	if err != nil {
		return report.Template{}, err
	}
	t.EscapeHTML = c.Template.EscapeHTML
	return t, nil
}

// Resolve makes a path from the file relative to the file's directory.
func (c Campaign) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.dir == "" {
		return p
	}
	return filepath.Join(c.dir, p)
}
