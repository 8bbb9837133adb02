package emailsource

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"fjacquet/budget-sync/internal/syncerror"
	"fjacquet/budget-sync/internal/xmlutils"

	"gopkg.in/xmlpath.v2"
	"gopkg.in/yaml.v3"
)

// Extractor pulls one field out of a notification, either with an XPath
// expression over the HTML body or with a regular expression over its visible text.
// When the regular expression has a capture group, the first group is the value.
type Extractor struct {
	XPath string `yaml:"xpath"`
	Regex string `yaml:"regex"`

	path *xmlpath.Path
	re   *regexp.Regexp
}

// Profile describes how to read the notifications of one bank.
type Profile struct {
	Name string `yaml:"name"`

	// From is matched case-insensitively against the sender address.
	From string `yaml:"from"`

	// Expense marks notifications that only report debits: positive amounts are negated.
	Expense bool `yaml:"expense"`

	// DateLayouts restricts date parsing to these Go layouts.
	DateLayouts []string `yaml:"date_layouts"`

	Payee  Extractor `yaml:"payee"`
	Amount Extractor `yaml:"amount"`

	// Date is optional, the message Date header is used when it is not configured.
	Date Extractor `yaml:"date"`
}

type profilesFile struct {
	Profiles []Profile `yaml:"profiles"`
}

// LoadProfiles reads and compiles the bank profiles file at path.
func LoadProfiles(path string) ([]Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: email profiles: %v", syncerror.ErrInvalidConfig, err)
	}
	return ParseProfiles(data)
}

// ParseProfiles decodes and compiles a YAML profiles document.
func ParseProfiles(data []byte) ([]Profile, error) {
	var file profilesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: email profiles: %v", syncerror.ErrInvalidConfig, err)
	}
	for i := range file.Profiles {
		if err := file.Profiles[i].compile(); err != nil {
			return nil, fmt.Errorf("%w: email profile %d: %v", syncerror.ErrInvalidConfig, i+1, err)
		}
	}
	return file.Profiles, nil
}

func (p *Profile) compile() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(p.From) == "" {
		return fmt.Errorf("%s: from is required", p.Name)
	}
	if p.Payee.empty() {
		return fmt.Errorf("%s: payee extractor is required", p.Name)
	}
	if p.Amount.empty() {
		return fmt.Errorf("%s: amount extractor is required", p.Name)
	}
	fields := []struct {
		name string
		e    *Extractor
	}{{"payee", &p.Payee}, {"amount", &p.Amount}, {"date", &p.Date}}
	for _, f := range fields {
		if err := f.e.compile(); err != nil {
			return fmt.Errorf("%s: %s: %w", p.Name, f.name, err)
		}
	}
	return nil
}

// Matches reports whether sender belongs to the profile.
func (p *Profile) Matches(sender string) bool {
	return strings.Contains(strings.ToLower(sender), strings.ToLower(strings.TrimSpace(p.From)))
}

func (e *Extractor) empty() bool {
	return e.XPath == "" && e.Regex == ""
}

func (e *Extractor) compile() error {
	if e.XPath != "" && e.Regex != "" {
		return fmt.Errorf("xpath and regex are mutually exclusive")
	}
	var err error
	if e.XPath != "" {
		if e.path, err = xmlpath.Compile(e.XPath); err != nil {
			return fmt.Errorf("invalid xpath %q: %w", e.XPath, err)
		}
	}
	if e.Regex != "" {
		if e.re, err = regexp.Compile(e.Regex); err != nil {
			return fmt.Errorf("invalid regex %q: %w", e.Regex, err)
		}
	}
	return nil
}

// extract returns the field value found in msg.
func (e *Extractor) extract(msg *message) (string, bool, error) {
	switch {
	case e.path != nil:
		root, err := msg.htmlRoot()
		if err != nil {
			return "", false, err
		}
		iter := e.path.Iter(root)
		for iter.Next() {
			if v := xmlutils.CleanText(iter.Node().String()); v != "" {
				return v, true, nil
			}
		}
		return "", false, nil
	case e.re != nil:
		m := e.re.FindStringSubmatch(msg.Text)
		if m == nil {
			return "", false, nil
		}
		v := m[0]
		if len(m) > 1 {
			v = m[1]
		}
		v = xmlutils.CleanText(v)
		return v, v != "", nil
	default:
		return "", false, nil
	}
}
