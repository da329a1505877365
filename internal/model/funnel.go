package model

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// StepKind identifies the page type of a funnel step.
type StepKind string

const (
	StepKindCheckout StepKind = "checkout"
	StepKindOffer    StepKind = "offer"
	StepKindThankYou StepKind = "thank_you"
	StepKindPage     StepKind = "page"
)

// PublishStatus is the publication state of a funnel.
type PublishStatus string

const (
	PublishStatusDraft     PublishStatus = "draft"
	PublishStatusPublished PublishStatus = "published"
)

// Funnel is an ordered sequence of steps. Step order is significant: the
// checkout splitter inserts new steps relative to existing ones.
type Funnel struct {
	ID      string      `json:"id"`
	Name    string      `json:"name,omitempty"`
	Steps   []Step      `json:"steps"`
	Publish PublishMeta `json:"publish"`
	Version int         `json:"version"`
}

// PublishMeta holds the publication state of a funnel.
type PublishMeta struct {
	Status      PublishStatus `json:"status,omitempty"`
	Slug        string        `json:"slug,omitempty"`
	PublishedAt *time.Time    `json:"publishedAt,omitempty"`
}

// StepIndex returns the position of the step with the given id, or -1.
func (f Funnel) StepIndex(stepID string) int {
	for i, s := range f.Steps {
		if s.ID == stepID {
			return i
		}
	}
	return -1
}

// Step returns the step with the given id.
func (f Funnel) Step(stepID string) (Step, bool) {
	if i := f.StepIndex(stepID); i >= 0 {
		return f.Steps[i], true
	}
	return Step{}, false
}

// HasPaymentSteps reports whether the funnel contains a checkout or offer step.
func (f Funnel) HasPaymentSteps() bool {
	for _, s := range f.Steps {
		if s.Kind == StepKindCheckout || s.Kind == StepKindOffer {
			return true
		}
	}
	return false
}

// CloneSteps returns a deep copy of the funnel's steps so callers can build
// a modified step list without touching the original snapshot.
func (f Funnel) CloneSteps() []Step {
	out := make([]Step, len(f.Steps))
	for i, s := range f.Steps {
		out[i] = s.Clone()
	}
	return out
}

// ErrDuplicateStepID is returned when two steps of a funnel share an id.
var ErrDuplicateStepID = eris.New("model: duplicate step id")

// CheckStepIDs reports the first step id that appears more than once.
func (f Funnel) CheckStepIDs() error {
	seen := make(map[string]bool, len(f.Steps))
	for _, s := range f.Steps {
		if seen[s.ID] {
			return eris.Wrapf(ErrDuplicateStepID, "funnel %s step %s", f.ID, s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}

// UnmarshalJSON decodes the funnel and rejects repeated step ids.
func (f *Funnel) UnmarshalJSON(data []byte) error {
	type plain Funnel
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return eris.Wrap(err, "model: decode funnel")
	}
	if err := Funnel(p).CheckStepIDs(); err != nil {
		return err
	}
	*f = Funnel(p)
	return nil
}

// Step is one node of a funnel. Config is a tagged union keyed by Kind.
type Step struct {
	ID     string     `json:"id"`
	Kind   StepKind   `json:"kind"`
	Name   string     `json:"name,omitempty"`
	Config StepConfig `json:"config"`
}

// Clone returns a deep copy of the step.
func (s Step) Clone() Step {
	if s.Config != nil {
		s.Config = s.Config.clone()
	}
	return s
}

// ResolvedConfig returns the step's config, or the zero config of its kind
// when none is set. It returns nil for unknown kinds.
func (s Step) ResolvedConfig() StepConfig {
	if s.Config != nil {
		return s.Config
	}
	cfg, err := zeroConfig(s.Kind)
	if err != nil {
		return nil
	}
	return cfg
}

// StepConfig is implemented by CheckoutConfig, OfferConfig, ThankYouConfig
// and PageConfig only.
type StepConfig interface {
	Kind() StepKind
	clone() StepConfig
}

// LineItem is a price placed on a checkout with a quantity.
type LineItem struct {
	PriceID  string `json:"priceId"`
	Quantity int    `json:"quantity"`
}

// OrderBump is an optional add-on offered on the checkout page.
type OrderBump struct {
	PriceID     string `json:"priceId"`
	Headline    string `json:"headline,omitempty"`
	Description string `json:"description,omitempty"`
	Highlight   bool   `json:"highlight,omitempty"`
}

// SubscriptionExperience selects how recurring checkouts are rendered.
type SubscriptionExperience string

const (
	ExperienceHostedCheckout   SubscriptionExperience = "hosted_checkout"
	ExperienceEmbeddedCheckout SubscriptionExperience = "embedded_checkout"
)

// SubscriptionConfig configures checkouts that collect recurring payments.
type SubscriptionConfig struct {
	Experience      SubscriptionExperience `json:"experience,omitempty"`
	CollectShipping bool                   `json:"collectShipping"`
	ReturnPath      string                 `json:"returnPath,omitempty"`
}

// CheckoutConfig configures a checkout step.
type CheckoutConfig struct {
	Items                 []LineItem         `json:"items"`
	OrderBumps            []OrderBump        `json:"orderBumps"`
	ScreensMode           int                `json:"screensMode"`
	OneClickOffersEnabled bool               `json:"oneClickOffersEnabled"`
	Subscription          SubscriptionConfig `json:"subscription"`
	OnSuccessStepID       string             `json:"onSuccessStepId,omitempty"`
}

func (CheckoutConfig) Kind() StepKind { return StepKindCheckout }

func (c CheckoutConfig) clone() StepConfig {
	c.Items = append([]LineItem(nil), c.Items...)
	c.OrderBumps = append([]OrderBump(nil), c.OrderBumps...)
	return c
}

// OfferRouting says where the buyer goes after accepting or declining.
type OfferRouting struct {
	OnAcceptStepID  string `json:"onAcceptStepId,omitempty"`
	OnDeclineStepID string `json:"onDeclineStepId,omitempty"`
}

// Complete reports whether both routes are set.
func (r OfferRouting) Complete() bool {
	return r.OnAcceptStepID != "" && r.OnDeclineStepID != ""
}

// OfferButtons holds the labels of the accept/decline buttons placed on the
// offer page. An empty label means the button is missing.
type OfferButtons struct {
	Accept  string `json:"accept,omitempty"`
	Decline string `json:"decline,omitempty"`
}

// OfferConfig configures a post-purchase one-click offer step.
type OfferConfig struct {
	CatalogPriceID  *string      `json:"catalogPriceId"`
	OneClickEnabled bool         `json:"oneClickEnabled"`
	Routing         OfferRouting `json:"routing"`
	Buttons         OfferButtons `json:"buttons"`
}

func (OfferConfig) Kind() StepKind { return StepKindOffer }

func (c OfferConfig) clone() StepConfig {
	if c.CatalogPriceID != nil {
		id := *c.CatalogPriceID
		c.CatalogPriceID = &id
	}
	return c
}

// PriceID returns the selected catalog price id, or "" when none is set.
func (c OfferConfig) PriceID() string {
	if c.CatalogPriceID == nil {
		return ""
	}
	return *c.CatalogPriceID
}

// ThankYouConfig configures a confirmation page.
type ThankYouConfig struct {
	Headline string `json:"headline,omitempty"`
}

func (ThankYouConfig) Kind() StepKind     { return StepKindThankYou }
func (c ThankYouConfig) clone() StepConfig { return c }

// PageConfig configures a generic content page.
type PageConfig struct {
	Path string `json:"path,omitempty"`
}

func (PageConfig) Kind() StepKind     { return StepKindPage }
func (c PageConfig) clone() StepConfig { return c }

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

type stepWire struct {
	ID     string          `json:"id"`
	Kind   StepKind        `json:"kind"`
	Name   string          `json:"name,omitempty"`
	Config json.RawMessage `json:"config"`
}

// MarshalJSON encodes the step with its config. A nil config is encoded as
// the zero config for the step's kind.
func (s Step) MarshalJSON() ([]byte, error) {
	cfg := s.Config
	if cfg == nil {
		zero, err := zeroConfig(s.Kind)
		if err != nil {
			return nil, err
		}
		cfg = zero
	}
	if cfg.Kind() != s.Kind {
		return nil, eris.Errorf("model: step %s has kind %s but %s config", s.ID, s.Kind, cfg.Kind())
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, eris.Wrapf(err, "model: marshal config of step %s", s.ID)
	}
	return json.Marshal(stepWire{ID: s.ID, Kind: s.Kind, Name: s.Name, Config: raw})
}

// UnmarshalJSON decodes the config according to the step's kind.
func (s *Step) UnmarshalJSON(data []byte) error {
	var w stepWire
	if err := json.Unmarshal(data, &w); err != nil {
		return eris.Wrap(err, "model: decode step")
	}
	cfg, err := decodeConfig(w.Kind, w.Config)
	if err != nil {
		return eris.Wrapf(err, "model: decode config of step %s", w.ID)
	}
	*s = Step{ID: w.ID, Kind: w.Kind, Name: w.Name, Config: cfg}
	return nil
}

func zeroConfig(kind StepKind) (StepConfig, error) {
	switch kind {
	case StepKindCheckout:
		return CheckoutConfig{ScreensMode: 1}, nil
	case StepKindOffer:
		return OfferConfig{}, nil
	case StepKindThankYou:
		return ThankYouConfig{}, nil
	case StepKindPage:
		return PageConfig{}, nil
	default:
		return nil, eris.Errorf("model: unknown step kind %q", kind)
	}
}

func decodeConfig(kind StepKind, raw json.RawMessage) (StepConfig, error) {
	zero, err := zeroConfig(kind)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return zero, nil
	}
	switch kind {
	case StepKindCheckout:
		cfg := CheckoutConfig{ScreensMode: 1}
		err = json.Unmarshal(raw, &cfg)
		return cfg, err
	case StepKindOffer:
		var cfg OfferConfig
		err = json.Unmarshal(raw, &cfg)
		return cfg, err
	case StepKindThankYou:
		var cfg ThankYouConfig
		err = json.Unmarshal(raw, &cfg)
		return cfg, err
	default:
		var cfg PageConfig
		err = json.Unmarshal(raw, &cfg)
		return cfg, err
	}
}
